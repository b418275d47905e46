// Package docfetch implements the documentation-fetcher collaborator: a
// best-effort service that turns a documentation URL into candidate
// registration fields. The registry core never blocks on it; a registration
// can always be supplied manually.
package docfetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/portico-labs/portico/internal/registry"
)

// Summary is the candidate registration extracted from documentation.
type Summary struct {
	Host      string              `json:"host"`
	BasePath  string              `json:"base_path,omitempty"`
	AuthType  registry.AuthType   `json:"auth_type"`
	Endpoints []registry.Endpoint `json:"endpoints,omitempty"`
}

// Fetcher is the collaborator contract consumed by the registration handler.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Summary, error)
}

const maxDescriptorBytes = 1 << 20

// HTTPFetcher fetches a machine-readable JSON descriptor from the
// documentation URL. It only understands descriptors shaped like Summary;
// anything else is a fetch failure, which callers treat as "fill in by hand".
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher builds a fetcher with the given per-fetch timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPFetcher{client: &http.Client{Timeout: timeout}}
}

// Fetch retrieves and parses the descriptor at url.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*Summary, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build docs request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch docs: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch docs: status %d from %s", resp.StatusCode, url)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxDescriptorBytes))
	if err != nil {
		return nil, fmt.Errorf("read docs: %w", err)
	}

	var s Summary
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse docs descriptor: %w", err)
	}
	if s.Host == "" {
		return nil, fmt.Errorf("docs descriptor at %s has no host", url)
	}
	if s.AuthType == "" {
		s.AuthType = registry.AuthNone
	}
	if _, err := registry.ParseAuthType(string(s.AuthType)); err != nil {
		return nil, fmt.Errorf("docs descriptor at %s: %w", url, err)
	}
	s.BasePath = registry.NormalizeBasePath(s.BasePath)
	return &s, nil
}
