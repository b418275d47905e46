// Package gateway turns (api_name, path, method, query, headers, body) into
// an authenticated outbound HTTP call against the registered host. The
// composed authority is always exactly the registered host; credentials are
// resolved from the vault per the registration's auth type and injected
// through a fixed mapping. Advisory endpoint metadata is never consulted:
// register once, call any path.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/portico-labs/portico/internal/logx"
	"github.com/portico-labs/portico/internal/redact"
	"github.com/portico-labs/portico/internal/registry"
	"github.com/portico-labs/portico/internal/vault"
)

// Resolver looks up a registration by name. Satisfied by *db.Store.
// A missing registration is reported as (nil, nil).
type Resolver interface {
	GetAPIByName(name string) (*registry.API, error)
}

// SecretSource resolves credentials. Satisfied by *vault.Vault; absence is
// reported via vault.ErrSecretNotFound.
type SecretSource interface {
	Get(authType registry.AuthType, apiName string) (string, error)
}

// Request is one transient execution request. Never persisted.
type Request struct {
	APIName     string            `json:"api_name"`
	Path        string            `json:"path"`
	Method      string            `json:"http_method,omitempty"`
	QueryParams map[string]string `json:"query_params,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Body        []byte            `json:"body,omitempty"`
}

// Result is a classified 2xx response. Body is the remote body verbatim,
// except that any occurrence of the stored credential is replaced with
// "[REDACTED_BY_PORTICO]"; an upstream that echoes its own key back can never
// leak it through us. JSON is set only when the body happens to parse, purely
// as a convenience.
type Result struct {
	StatusCode int
	Body       string
	JSON       json.RawMessage
	Elapsed    time.Duration
}

// Responses larger than this are truncated rather than buffered unbounded.
const maxResponseBytes = 4 << 20

const defaultTimeout = 30 * time.Second

// Options tunes a Gateway. Zero values pick the defaults.
type Options struct {
	// Scheme for outbound calls: "https" (default) or "http" for tests and
	// plaintext-only upstreams.
	Scheme string
	// Timeout bounds each outbound call end to end.
	Timeout time.Duration
	// CredentialTTL bounds how long a vault read may be reused. Within this
	// window a rotated credential may still be used; rotation signals
	// invalidate eagerly via InvalidateCredential.
	CredentialTTL time.Duration
	// CredentialCacheSize caps the cache; 0 picks a small default.
	CredentialCacheSize int
}

// Gateway executes dynamic outbound calls for registered APIs. Safe for
// unbounded concurrent use; no lock is held across a network call and the
// credential cache is the only shared mutable state.
type Gateway struct {
	registry Resolver
	secrets  SecretSource
	client   *http.Client
	scheme   string
	creds    *expirable.LRU[string, string]
}

// New builds a Gateway over a registry resolver and a secret source.
func New(reg Resolver, secrets SecretSource, opts Options) *Gateway {
	scheme := opts.Scheme
	if scheme == "" {
		scheme = "https"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ttl := opts.CredentialTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	size := opts.CredentialCacheSize
	if size <= 0 {
		size = 256
	}

	return &Gateway{
		registry: reg,
		secrets:  secrets,
		client:   &http.Client{Timeout: timeout},
		scheme:   scheme,
		creds:    expirable.NewLRU[string, string](size, nil, ttl),
	}
}

var allowedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// Execute resolves the registration, composes the URL, injects the
// credential and issues a single outbound call. Each step short-circuits
// with its own error; nothing is retried.
func (g *Gateway) Execute(ctx context.Context, req Request) (*Result, error) {
	api, err := g.registry.GetAPIByName(req.APIName)
	if err != nil {
		return nil, fmt.Errorf("lookup api %q: %w", req.APIName, err)
	}
	if api == nil {
		return nil, fmt.Errorf("api %q: %w", req.APIName, ErrNotRegistered)
	}

	path, err := ComposePath(api.BasePath, req.Path)
	if err != nil {
		return nil, err
	}

	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	if !allowedMethods[method] {
		return nil, &registry.ValidationError{Field: "http_method", Reason: "must be one of GET|POST|PUT|PATCH|DELETE"}
	}

	var credential string
	if api.AuthType != registry.AuthNone {
		credential, err = g.credential(api.AuthType, api.Name)
		if err != nil {
			if errors.Is(err, vault.ErrSecretNotFound) {
				return nil, fmt.Errorf("api %q: %w", api.Name, ErrCredentialMissing)
			}
			return nil, fmt.Errorf("resolve credential for %q: %w", api.Name, err)
		}
	}

	// The authority is url.URL.Host, taken from the registration alone; a
	// host smuggled into path, query or headers never reaches it.
	u := &url.URL{Scheme: g.scheme, Host: api.Host, Path: path}
	q := url.Values{}
	for k, v := range req.QueryParams {
		q.Set(k, v)
	}
	if api.AuthType == registry.AuthAPIKey {
		// Injected after caller params, so the caller can never override it.
		q.Set(api.APIKeyParam, credential)
	}
	u.RawQuery = q.Encode()

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range req.Headers {
		if strings.EqualFold(k, "Host") {
			continue
		}
		httpReq.Header.Set(k, v)
	}
	if api.AuthType == registry.AuthBearerToken {
		// Wins over any caller-supplied Authorization header.
		httpReq.Header.Set("Authorization", "Bearer "+credential)
	}

	logx.Debugf("gateway.execute api=%q method=%s path=%s", api.Name, method, path)

	start := time.Now()
	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Host: api.Host, Path: path, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransportError{Host: api.Host, Path: path, Err: err}
	}
	elapsed := time.Since(start)

	masked := redact.New(credential).Mask(string(raw))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RemoteError{StatusCode: resp.StatusCode, Body: masked, Path: path}
	}

	res := &Result{StatusCode: resp.StatusCode, Body: masked, Elapsed: elapsed}
	if json.Valid([]byte(masked)) {
		res.JSON = json.RawMessage(masked)
	}
	return res, nil
}

// credential returns the cached credential for (authType, name), falling back
// to a vault read. Cache entries expire after the configured TTL; a rotation
// may therefore be observed late by at most that window.
func (g *Gateway) credential(authType registry.AuthType, name string) (string, error) {
	key := authType.Scope() + "/" + name
	if v, ok := g.creds.Get(key); ok {
		return v, nil
	}
	v, err := g.secrets.Get(authType, name)
	if err != nil {
		return "", err
	}
	g.creds.Add(key, v)
	return v, nil
}

// InvalidateCredential drops any cached credential for (authType, name).
// Called on rotation so the new value takes effect immediately.
func (g *Gateway) InvalidateCredential(authType registry.AuthType, name string) {
	g.creds.Remove(authType.Scope() + "/" + name)
}
