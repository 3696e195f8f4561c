package transport

import (
	"fmt"
	"net/http"
)

// Error reports a failed page request against a table endpoint.
type Error struct {
	operation  string
	statusCode int
	message    string
	cause      error
}

// NewError creates a new Error.
func NewError(operation string, statusCode int, message string, cause error) *Error {
	return &Error{
		operation:  operation,
		statusCode: statusCode,
		message:    message,
		cause:      cause,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.message
	if e.statusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.statusCode)
	}
	if e.cause != nil {
		msg = msg + ": " + e.cause.Error()
	}
	return "transport: " + e.operation + ": " + msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.cause }

// Operation returns the operation that failed.
func (e *Error) Operation() string { return e.operation }

// StatusCode returns the HTTP status code, or zero when no response was
// received.
func (e *Error) StatusCode() int { return e.statusCode }

// Message returns the error message.
func (e *Error) Message() string { return e.message }

// Temporary reports whether retrying the request may succeed.
func (e *Error) Temporary() bool {
	switch e.statusCode {
	case 0:
		return e.cause != nil
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
