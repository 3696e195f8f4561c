package query

import "fmt"

// InvalidArgumentError reports a builder call with an argument that can never
// produce a valid query: a negative bound, a reserved parameter key, or a
// secondary ordering without a primary one.
type InvalidArgumentError struct {
	operation string
	argument  string
	message   string
}

// NewInvalidArgumentError creates a new InvalidArgumentError.
func NewInvalidArgumentError(operation, argument, message string) *InvalidArgumentError {
	return &InvalidArgumentError{
		operation: operation,
		argument:  argument,
		message:   message,
	}
}

// Error implements the error interface.
func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("query: %s: invalid %s: %s", e.operation, e.argument, e.message)
}

// Operation returns the builder operation that failed.
func (e *InvalidArgumentError) Operation() string { return e.operation }

// Argument returns the name of the offending argument.
func (e *InvalidArgumentError) Argument() string { return e.argument }

// Message returns the error message.
func (e *InvalidArgumentError) Message() string { return e.message }

// UnsupportedExpressionError reports an expression node that has no wire
// representation.
type UnsupportedExpressionError struct {
	construct string
	reason    string
}

// NewUnsupportedExpressionError creates a new UnsupportedExpressionError.
func NewUnsupportedExpressionError(construct, reason string) *UnsupportedExpressionError {
	return &UnsupportedExpressionError{
		construct: construct,
		reason:    reason,
	}
}

// Error implements the error interface.
func (e *UnsupportedExpressionError) Error() string {
	return fmt.Sprintf("query: unsupported expression %q: %s", e.construct, e.reason)
}

// Construct returns a description of the offending expression.
func (e *UnsupportedExpressionError) Construct() string { return e.construct }

// Reason returns why the construct was rejected.
func (e *UnsupportedExpressionError) Reason() string { return e.reason }
