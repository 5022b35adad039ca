package fincert

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sufield/fincert/internal/tlsverify"
)

// Sentinel errors for API failures
// Use with errors.Is() for checking and fmt.Errorf("%w", ...) for wrapping with context

var (
	// ErrAuth indicates the session could not be opened (transport or login failure)
	ErrAuth = errors.New("authentication failed")

	// ErrTLSRejected indicates the server certificate was refused by the identity policy
	ErrTLSRejected = tlsverify.ErrRejected

	// ErrTimedOut indicates the wait budget of a call was spent on retryable responses
	ErrTimedOut = errors.New("request timed out")

	// ErrUnexpectedStatus indicates a terminal (non-200, non-retryable) HTTP status
	ErrUnexpectedStatus = errors.New("unexpected status")

	// ErrTransport indicates the request could not be sent or the response not read
	ErrTransport = errors.New("transport error")

	// ErrDecode indicates a response body was not the expected JSON
	ErrDecode = errors.New("decode response")
)

// StatusError carries a terminal HTTP status. It matches ErrUnexpectedStatus.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string // first bytes of the response body, for diagnostics
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%v: %s %s: %d %s", ErrUnexpectedStatus, e.Method, e.Path, e.Code, http.StatusText(e.Code))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Is reports ErrUnexpectedStatus so callers can use errors.Is.
func (e *StatusError) Is(target error) bool {
	return target == ErrUnexpectedStatus
}
