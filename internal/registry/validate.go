package registry

import (
	"fmt"
	"strings"
)

// ValidationError reports a malformed registration or execution field.
// It is surfaced to the caller and never persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// DefaultAPIKeyParam is the query parameter used to inject api_key credentials
// when a registration does not name its own.
const DefaultAPIKeyParam = "api_key"

// Normalize canonicalizes derived and optional fields in place: the secret
// scope implied by the auth type, a cleaned base path, and the api_key query
// parameter name. Call before Validate.
func (a *API) Normalize() {
	a.Name = strings.TrimSpace(a.Name)
	a.Host = strings.TrimSpace(a.Host)
	a.BasePath = NormalizeBasePath(a.BasePath)
	a.SecretScope = a.AuthType.Scope()
	if a.AuthType == AuthAPIKey && a.APIKeyParam == "" {
		a.APIKeyParam = DefaultAPIKeyParam
	}
	if a.AuthType != AuthAPIKey {
		a.APIKeyParam = ""
	}
}

// Validate checks the registration invariants: non-empty unique-key name,
// a bare host (no scheme, no path, no trailing slash) and a known auth type.
func (a *API) Validate() error {
	if a.Name == "" {
		return &ValidationError{Field: "api_name", Reason: "must not be empty"}
	}
	if a.Host == "" {
		return &ValidationError{Field: "host", Reason: "must not be empty"}
	}
	if strings.Contains(a.Host, "://") {
		return &ValidationError{Field: "host", Reason: "must not include a scheme"}
	}
	if strings.ContainsAny(a.Host, "/ \t") {
		return &ValidationError{Field: "host", Reason: "must be a bare host, no path or whitespace"}
	}
	if _, err := ParseAuthType(string(a.AuthType)); err != nil {
		return err
	}
	if a.SecretScope != a.AuthType.Scope() {
		return &ValidationError{Field: "secret_scope", Reason: "is derived from auth_type and cannot be set"}
	}
	return nil
}

// NormalizeBasePath returns "" for an empty prefix, otherwise a path with a
// single leading slash and no trailing slash.
func NormalizeBasePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return ""
	}
	return "/" + p
}
