// Package util provides utility functions and types shared across virtend.
//
// # Error Conventions
//
// This project follows a standardized error pattern across all packages:
//
//   - Sentinel errors (errors.New) for well-known, stable conditions
//     that callers check with errors.Is(). Example: ErrAlreadyCompleted.
//   - Structured error types for context-rich errors that carry
//     additional fields (e.g., StatusError, ProxyError). Each type
//     implements Error(), Unwrap() (if wrapping), and Is().
//   - fmt.Errorf with %w for ad-hoc wrapping that adds context to an
//     existing error without introducing a new type.
//
// All custom error types must implement:
//
//	Error() string           – human-readable message
//	Unwrap() error           – if the type wraps another error
//	Is(target error) bool    – for errors.Is() compatibility
package util

import (
	"errors"
	"fmt"
	"net/http"
)

// Common sentinel errors.
var (
	ErrAlreadyCompleted = errors.New("response already completed")
	ErrNotCompleted     = errors.New("handler did not complete the response")
	ErrDestroyed        = errors.New("interceptor destroyed")
	ErrNoDispatcher     = errors.New("request not bound to a dispatcher")
	ErrNoProxy          = errors.New("no proxy function configured")
	ErrNilHandler       = errors.New("nil handler")
	ErrInvalidPattern   = errors.New("invalid pattern")
	ErrShortAggregation = errors.New("aggregator returned fewer results than dispatched items")
)

// StatusError represents an HTTP-level failure: a synthesized response with
// a status code of 400 or above, or a proxied response that came back with
// an error status.
type StatusError struct {
	Code   int
	Status string
	Body   []byte
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("status %d %s", e.Code, e.Status)
	}
	return fmt.Sprintf("status %d", e.Code)
}

// Is checks if the error matches the target. A target with a zero Code
// matches any StatusError; a non-zero Code must match exactly.
func (e *StatusError) Is(target error) bool {
	t, ok := target.(*StatusError)
	if !ok {
		return false
	}
	return t.Code == 0 || t.Code == e.Code
}

// NewStatusError creates a StatusError with the standard reason phrase.
func NewStatusError(code int) *StatusError {
	return &StatusError{Code: code, Status: http.StatusText(code)}
}

// NewStatusErrorWithBody creates a StatusError carrying the response body.
func NewStatusErrorWithBody(code int, status string, body []byte) *StatusError {
	if status == "" {
		status = http.StatusText(code)
	}
	return &StatusError{Code: code, Status: status, Body: body}
}

// HandlerPanicError represents a panic recovered from an endpoint handler.
type HandlerPanicError struct {
	Value any
	Stack []byte
}

// Error implements the error interface.
func (e *HandlerPanicError) Error() string {
	return fmt.Sprintf("handler panicked: %v", e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *HandlerPanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Is checks if the error matches the target.
func (e *HandlerPanicError) Is(target error) bool {
	_, ok := target.(*HandlerPanicError)
	return ok
}

// ProxyError represents a transport-level failure while forwarding a request
// to the real network.
type ProxyError struct {
	URL   string
	Cause error
}

// Error implements the error interface.
func (e *ProxyError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("proxy request to %s failed: %v", e.URL, e.Cause)
	}
	return fmt.Sprintf("proxy request to %s failed", e.URL)
}

// Unwrap returns the underlying error.
func (e *ProxyError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *ProxyError) Is(target error) bool {
	_, ok := target.(*ProxyError)
	return ok || errors.Is(e.Cause, target)
}

// NewProxyError creates a new ProxyError.
func NewProxyError(url string, cause error) *ProxyError {
	return &ProxyError{URL: url, Cause: cause}
}

// WrapError wraps an error with additional context.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// StatusCode extracts the HTTP status code from an error chain. The second
// return value reports whether a StatusError was found.
func StatusCode(err error) (int, bool) {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code, true
	}
	return 0, false
}

// IsRetryable returns true if the error is retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Gateway-class statuses are transient by nature.
	if code, ok := StatusCode(err); ok {
		return code == http.StatusBadGateway ||
			code == http.StatusServiceUnavailable ||
			code == http.StatusGatewayTimeout
	}

	// Transport failures may succeed on a later attempt.
	var proxyErr *ProxyError
	return errors.As(err, &proxyErr)
}

// IsClientError returns true if the error carries a 4xx status.
func IsClientError(err error) bool {
	code, ok := StatusCode(err)
	return ok && code >= 400 && code < 500
}

// IsServerError returns true if the error carries a 5xx status.
func IsServerError(err error) bool {
	code, ok := StatusCode(err)
	return ok && code >= 500 && code < 600
}
