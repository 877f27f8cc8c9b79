package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable is returned when the circuit is open or every retry
	// attempt failed on a transient error.
	ErrUnavailable = errors.New("gateway unavailable")
	// ErrNotFound is returned for a 404 from the gateway.
	ErrNotFound = errors.New("resource not found at gateway")
	// ErrAlreadyTerminal is returned when the gateway rejects a cancel or
	// refund because the payment is already in a terminal state.
	ErrAlreadyTerminal = errors.New("payment already in terminal state")
)

// APIError is a permanent (4xx) gateway error. It is never retried.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway api error: status=%d message=%s", e.StatusCode, e.Message)
}
