// Package registry defines the data model shared by the API registry store,
// the secret vault and the execution gateway: one registration per external
// API (host + base path + auth mode), with advisory endpoint metadata that
// documents but never restricts which paths may be called.
package registry

import "time"

// AuthType is the closed set of authentication modes a registration may declare.
type AuthType string

const (
	AuthNone        AuthType = "none"
	AuthAPIKey      AuthType = "api_key"
	AuthBearerToken AuthType = "bearer_token"
)

// The two fixed, disjoint secret scopes. API-key secrets and bearer-token
// secrets never share a scope, and auth type "none" has no scope at all.
const (
	ScopeAPIKeys      = "portico-api-keys"
	ScopeBearerTokens = "portico-bearer-tokens"
)

// ParseAuthType validates v against the fixed enumeration.
func ParseAuthType(v string) (AuthType, error) {
	switch AuthType(v) {
	case AuthNone, AuthAPIKey, AuthBearerToken:
		return AuthType(v), nil
	case "":
		return AuthNone, nil
	}
	return "", &ValidationError{Field: "auth_type", Reason: "must be one of none|api_key|bearer_token"}
}

// Scope returns the secret scope implied by the auth type, or "" for AuthNone.
// The scope is always derived, never user-supplied.
func (a AuthType) Scope() string {
	switch a {
	case AuthAPIKey:
		return ScopeAPIKeys
	case AuthBearerToken:
		return ScopeBearerTokens
	}
	return ""
}

// Status is the registration validation state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusValidated Status = "validated"
	StatusFailed    Status = "failed"
)

// ParseStatus validates v against the fixed enumeration.
func ParseStatus(v string) (Status, error) {
	switch Status(v) {
	case StatusPending, StatusValidated, StatusFailed:
		return Status(v), nil
	}
	return "", &ValidationError{Field: "status", Reason: "must be one of pending|validated|failed"}
}

// Endpoint is one advisory entry in a registration's endpoint list.
// Purely descriptive: the gateway never consults it to permit or deny a call.
type Endpoint struct {
	Path        string `json:"path"`
	Description string `json:"description,omitempty"`
	Method      string `json:"method,omitempty"`
}

// ExampleCall is advisory example usage recorded with a registration.
type ExampleCall struct {
	Description string            `json:"description,omitempty"`
	Path        string            `json:"path"`
	Params      map[string]string `json:"params,omitempty"`
}

// API is one registered external API.
type API struct {
	ID                 string        `json:"api_id"`
	Name               string        `json:"api_name"`
	Description        string        `json:"description,omitempty"`
	DocumentationURL   string        `json:"documentation_url,omitempty"`
	Host               string        `json:"host"`
	BasePath           string        `json:"base_path,omitempty"`
	AuthType           AuthType      `json:"auth_type"`
	APIKeyParam        string        `json:"api_key_param,omitempty"`
	SecretScope        string        `json:"secret_scope,omitempty"`
	AvailableEndpoints []Endpoint    `json:"available_endpoints,omitempty"`
	ExampleCalls       []ExampleCall `json:"example_calls,omitempty"`
	Status             Status        `json:"status"`
	ValidationMessage  string        `json:"validation_message,omitempty"`
	RequestedBy        string        `json:"requested_by,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	ModifiedAt         time.Time     `json:"modified_at"`
}
