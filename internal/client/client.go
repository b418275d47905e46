// Package client is a thin HTTP client for the portico server API, used by
// the portico CLI.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/portico-labs/portico/internal/registry"
)

// Client talks to one portico server.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a client for the given server URL and Bearer token.
func New(serverURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(serverURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

// RegisterRequest mirrors POST /v1/apis.
type RegisterRequest struct {
	Name               string                 `json:"api_name"`
	Description        string                 `json:"description,omitempty"`
	DocumentationURL   string                 `json:"documentation_url,omitempty"`
	Host               string                 `json:"host,omitempty"`
	BasePath           string                 `json:"base_path,omitempty"`
	AuthType           string                 `json:"auth_type,omitempty"`
	APIKeyParam        string                 `json:"api_key_param,omitempty"`
	Credential         string                 `json:"credential,omitempty"`
	AvailableEndpoints []registry.Endpoint    `json:"available_endpoints,omitempty"`
	ExampleCalls       []registry.ExampleCall `json:"example_calls,omitempty"`
	RequestedBy        string                 `json:"requested_by,omitempty"`
	Validated          bool                   `json:"validated,omitempty"`
}

// RegisterResponse is the server's acknowledgement of a registration.
type RegisterResponse struct {
	APIID   string `json:"api_id"`
	APIName string `json:"api_name"`
	Status  string `json:"status"`
}

// ExecuteRequest mirrors POST /v1/apis/:name/execute.
type ExecuteRequest struct {
	Path        string            `json:"path"`
	Method      string            `json:"http_method,omitempty"`
	QueryParams map[string]string `json:"query_params,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Body        json.RawMessage   `json:"body,omitempty"`
}

// ExecuteResult is the structured execution envelope.
type ExecuteResult struct {
	APIName    string          `json:"api_name"`
	Path       string          `json:"path"`
	StatusCode int             `json:"status_code"`
	ElapsedMS  int64           `json:"elapsed_ms"`
	Body       string          `json:"body"`
	JSON       json.RawMessage `json:"json,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// Register registers a new API.
func (c *Client) Register(req RegisterRequest) (*RegisterResponse, error) {
	var resp RegisterResponse
	if err := c.do(http.MethodPost, "/v1/apis", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Get looks up a registration by name.
func (c *Client) Get(name string) (*registry.API, error) {
	var api registry.API
	if err := c.do(http.MethodGet, "/v1/apis/"+name, nil, &api); err != nil {
		return nil, err
	}
	return &api, nil
}

// List enumerates registrations, optionally filtered by status.
func (c *Client) List(status string) ([]registry.API, error) {
	path := "/v1/apis"
	if status != "" {
		path += "?status=" + status
	}
	var apis []registry.API
	if err := c.do(http.MethodGet, path, nil, &apis); err != nil {
		return nil, err
	}
	return apis, nil
}

// Execute calls a dynamic path under a registered API.
func (c *Client) Execute(name string, req ExecuteRequest) (*ExecuteResult, error) {
	var res ExecuteResult
	if err := c.do(http.MethodPost, "/v1/apis/"+name+"/execute", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Rotate overwrites the stored credential for an API.
func (c *Client) Rotate(name, credential string) error {
	body := map[string]string{"credential": credential}
	return c.do(http.MethodPut, "/v1/apis/"+name+"/credential", body, nil)
}

// UpdateStatus transitions a pending registration to validated or failed.
func (c *Client) UpdateStatus(name, status, message string) error {
	body := map[string]string{"status": status, "validation_message": message}
	return c.do(http.MethodPut, "/v1/apis/"+name+"/status", body, nil)
}

// Deregister removes a registration and its credential.
func (c *Client) Deregister(name string) error {
	return c.do(http.MethodDelete, "/v1/apis/"+name, nil, nil)
}

func (c *Client) do(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var payload struct {
			Error string `json:"error"`
			Hint  string `json:"hint"`
		}
		if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
			if payload.Hint != "" {
				return fmt.Errorf("%s (%s)", payload.Error, payload.Hint)
			}
			return fmt.Errorf("%s", payload.Error)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
