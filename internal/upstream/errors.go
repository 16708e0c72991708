package upstream

import (
	"errors"
	"fmt"
)

// ErrUnsuccessful marks a 2xx response whose body reported success=false.
var ErrUnsuccessful = errors.New("upstream reported failure")

// ErrEmptyResponse marks a 2xx response that carried no usable payload.
var ErrEmptyResponse = errors.New("upstream returned an empty result")

// Error describes a failed call to the AI backend. Status is the HTTP status
// when a response was received and 0 for transport failures.
type Error struct {
	Endpoint string
	Status   int
	Err      error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("upstream %s: status %d: %v", e.Endpoint, e.Status, e.Err)
	}
	return fmt.Sprintf("upstream %s: %v", e.Endpoint, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Temporary reports whether retrying the same request may succeed: transport
// failures, 429 and 5xx responses.
func (e *Error) Temporary() bool {
	return e.Status == 0 || e.Status == 429 || e.Status >= 500
}
