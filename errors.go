package buddyline

import (
	"errors"
	"fmt"
)

// Sentinel members of the closed error taxonomy. Every failure surfaced by
// [SessionManager] or [Gateway] matches exactly one of these (or one of the
// typed errors below) under [errors.Is] / [errors.As].
var (
	// ErrUnauthorized is an HTTP 401 that survived the gateway's single
	// refresh-and-retry attempt.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is an HTTP 403. Terminal; never retried.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound is an HTTP 404.
	ErrNotFound = errors.New("not found")
	// ErrRateLimited is an HTTP 429. Terminal for the call; callers may back off.
	ErrRateLimited = errors.New("rate limited")
	// ErrMalformedResponse is a 2xx whose body was absent or unparsable where
	// one was expected.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrInvalidCredentials is returned by Login when the backend rejects the
	// supplied identifier/secret pair.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTooManyAttempts is returned by Login when the backend throttles the
	// token endpoint.
	ErrTooManyAttempts = errors.New("too many login attempts")
	// ErrSessionExpired is returned by Refresh when the refresh token is absent
	// or rejected; the local session has already been cleared when it surfaces.
	ErrSessionExpired = errors.New("session expired")
)

// NetworkError wraps a transport-level failure: timeout, connection refused,
// DNS failure. Retryable by caller policy, never retried automatically.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError is any HTTP status outside [200,300) without a more specific
// taxonomy member. Message is extracted from a JSON "message" field when the
// body parses, otherwise a generic description.
type ServerError struct {
	StatusCode int
	Message    string
	RawBody    []byte
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.StatusCode, e.Message)
}

// StorageError wraps a credential store failure. Login surfaces it instead of
// proceeding apparently-logged-in on a write that never landed.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("credential store %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("credential store %s %q failed: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsNetworkError reports whether err classifies as a transport failure.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}
