package rest

import "fmt"

// StatusError is a request the service received and rejected. Transport
// failures (no connectivity, timeout) are returned as plain errors and are
// retryable; a StatusError is not.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("rest: status %d", e.Code)
	}
	return fmt.Sprintf("rest: status %d: %s", e.Code, e.Message)
}
