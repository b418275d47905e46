package gateway

import (
	"errors"
	"fmt"
)

// Sentinel errors for execution short-circuits. Neither triggers a network call.
var (
	// ErrNotRegistered: execution was attempted against an unknown api_name.
	ErrNotRegistered = errors.New("api not registered")

	// ErrCredentialMissing: the registration declares an auth type but the
	// vault holds no credential for it.
	ErrCredentialMissing = errors.New("credential missing")
)

// PathError reports a rejected call path: empty, missing the leading slash,
// or containing traversal segments.
type PathError struct {
	Path   string
	Reason string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("invalid path %q: %s", e.Path, e.Reason)
}

// RemoteError carries a non-2xx response from the target API, verbatim except
// for credential redaction. It is never retried by the gateway; the status,
// body and attempted path give the caller enough to decide against blind retries.
type RemoteError struct {
	StatusCode int
	Body       string
	Path       string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote api returned %d for %s", e.StatusCode, e.Path)
}

// TransportError reports a network-level failure (DNS, connect, timeout)
// reaching the target API. Not retried.
type TransportError struct {
	Host string
	Path string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure calling %s%s: %v", e.Host, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
