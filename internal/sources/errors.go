package sources

import (
	"errors"
	"fmt"
)

// ErrMissingAnchor is returned when a structured query has none of its
// anchor fields set. The request would be rejected upstream, so it
// fails fast and is never retried.
var ErrMissingAnchor = errors.New("at least one of query, project name, organization name, or lg code is required")

// TransportError is a network-level failure. It is the only error kind
// the retry policy will retry.
type TransportError struct {
	Err error
}

// Error returns the error message.
func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError is a source-level rejection: a non-2xx HTTP status or
// an error marker embedded in an otherwise well-formed response.
// Fatal for the fetch; never retried.
type ProtocolError struct {
	StatusCode int
	Message    string
}

// Error returns the error message.
func (e *ProtocolError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("source rejected request (HTTP %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("source reported error: %s", e.Message)
}

// ParseError is a malformed response document. Fatal for the fetch and
// distinguishable from transport failures.
type ParseError struct {
	Err error
}

// Error returns the error message.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}
