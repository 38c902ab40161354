package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized is returned when there is no usable credential for a request.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrSessionExpired is returned when the refresh token was rejected.
	// Stored credentials are already cleared when it is seen.
	ErrSessionExpired = errors.New("session expired")
)

// NetworkError wraps transport failures and timeouts.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError is a non-2xx response not related to authorization.
type ServerError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *ServerError) Error() string {
	status := e.Status
	if status == "" {
		status = fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	if e.Body == "" {
		return fmt.Sprintf("bad status: %s", status)
	}
	return fmt.Sprintf("bad status: %s: %s", status, e.Body)
}

// NotFound reports whether the backend answered 404.
func (e *ServerError) NotFound() bool { return e.StatusCode == http.StatusNotFound }

// ValidationError describes malformed input caught before a request is sent.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// IsAuth reports whether err means the user has to log in again.
func IsAuth(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrSessionExpired)
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var se *ServerError
	return errors.As(err, &se) && se.NotFound()
}
