package clinicapi

import (
	"fmt"
	"net/http"
	"strings"
)

// TransportError indicates the request never completed: the server was
// unreachable or the response could not be read.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("clinicapi: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// APIError indicates the server answered with a failure envelope or a
// non-2xx status. Errors carries the structured validation messages.
type APIError struct {
	StatusCode int
	Message    string
	Errors     []FieldError
}

func (e *APIError) Error() string {
	return fmt.Sprintf("clinicapi: status %d: %s", e.StatusCode, e.JoinedMessages())
}

// JoinedMessages joins the structured error messages verbatim, falling
// back to the envelope message and then the HTTP status text.
func (e *APIError) JoinedMessages() string {
	if len(e.Errors) > 0 {
		parts := make([]string, 0, len(e.Errors))
		for _, fe := range e.Errors {
			if fe.Message != "" {
				parts = append(parts, fe.Message)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, "; ")
		}
	}
	if e.Message != "" {
		return e.Message
	}
	return http.StatusText(e.StatusCode)
}

// IsServerFault reports whether the failure was on the server side (5xx),
// as opposed to a validation or business rejection.
func (e *APIError) IsServerFault() bool {
	return e.StatusCode >= http.StatusInternalServerError
}
