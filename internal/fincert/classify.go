package fincert

import "net/http"

// Outcome is the executor's reading of an HTTP status code.
type Outcome int

const (
	// Terminal fails the call without retrying.
	Terminal Outcome = iota
	// Success returns the response to the caller.
	Success
	// Retryable waits and sends the request again.
	Retryable
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Retryable:
		return "retryable"
	default:
		return "terminal"
	}
}

// Classify maps a status code to an Outcome.
//
// 204 is retried because the API answers it while a requested resource is
// still being prepared.
func Classify(code int) Outcome {
	switch {
	case code == http.StatusOK:
		return Success
	case code >= 500 && code <= 599,
		code == http.StatusRequestTimeout,
		code == http.StatusTooManyRequests,
		code == http.StatusNoContent:
		return Retryable
	default:
		return Terminal
	}
}
