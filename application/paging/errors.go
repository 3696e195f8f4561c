package paging

import "fmt"

// PagingProtocolError reports continuation state from the server that cannot
// be followed, such as a next link on an empty page.
type PagingProtocolError struct {
	reason   string
	nextLink string
}

// NewPagingProtocolError creates a new PagingProtocolError.
func NewPagingProtocolError(reason, nextLink string) *PagingProtocolError {
	return &PagingProtocolError{reason: reason, nextLink: nextLink}
}

// Error implements the error interface.
func (e *PagingProtocolError) Error() string {
	if e.nextLink == "" {
		return "paging: protocol error: " + e.reason
	}
	return fmt.Sprintf("paging: protocol error: %s (next link %q)", e.reason, e.nextLink)
}

// Reason returns a description of the inconsistency.
func (e *PagingProtocolError) Reason() string { return e.reason }

// NextLink returns the offending continuation link, if any.
func (e *PagingProtocolError) NextLink() string { return e.nextLink }

// DecodeError reports a record that could not be decoded into the result type.
type DecodeError struct {
	index int
	cause error
}

// NewDecodeError creates a new DecodeError for the record at index.
func NewDecodeError(index int, cause error) *DecodeError {
	return &DecodeError{index: index, cause: cause}
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("paging: decode record %d: %v", e.index, e.cause)
}

// Unwrap returns the underlying cause.
func (e *DecodeError) Unwrap() error { return e.cause }

// Index returns the position of the record in the overall result.
func (e *DecodeError) Index() int { return e.index }
