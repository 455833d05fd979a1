package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Common error types for the admin session core
var (
	// Login errors
	ErrBadCredentials  = errors.New("bad credentials")
	ErrEmailUnverified = errors.New("email not verified")

	// Token errors
	ErrRefreshFailed = errors.New("refresh failed")
	ErrNoToken       = errors.New("no access token")
	ErrInvalidToken  = errors.New("invalid token")

	// Transport errors
	ErrNetwork        = errors.New("network error")
	ErrUpstreamServer = errors.New("upstream server error")

	// General errors
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

// StatusError is returned for HTTP responses that none of the sentinel errors classify.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// FromStatus returns nil for 2xx, ErrUpstreamServer for 5xx and a *StatusError otherwise.
func FromStatus(status int, body string) error {
	switch {
	case status >= http.StatusOK && status < http.StatusMultipleChoices:
		return nil
	case status >= http.StatusInternalServerError:
		return Wrapf(ErrUpstreamServer, "status %d", status)
	}
	return &StatusError{StatusCode: status, Body: body}
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
