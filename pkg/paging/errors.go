package paging

import (
	"fmt"
	"net/http"
)

// TransportError reports a failed page fetch: a non-success HTTP status or
// a network-level failure. For status failures the response headers and
// body are captured so callers can log diagnostics.
type TransportError struct {
	URL        string
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
	Err        error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transport error for %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("transport error for %s: %s", e.URL, e.Status)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// MalformedPageError reports a first page whose body is not a valid MDS
// payload. Malformed pages after the first terminate the walk silently;
// see Walker.
type MalformedPageError struct {
	URL string
	Err error
}

// Error implements the error interface.
func (e *MalformedPageError) Error() string {
	return fmt.Sprintf("malformed page from %s: %v", e.URL, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *MalformedPageError) Unwrap() error {
	return e.Err
}
