package recommend

import (
	"errors"
	"fmt"
)

var (
	// ErrInFlight is returned when a generation is already running.
	ErrInFlight = errors.New("recommendation already in progress")
	// ErrInvalidRequest means the form lacks category or shipping mode.
	ErrInvalidRequest = errors.New("invalid recommendation request")
	// ErrRateLimited means the upstream refused the call for quota reasons.
	ErrRateLimited = errors.New("recommendation quota exhausted")
)

// ServerError is a non-OK answer that is not a rate limit.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("recommend: server returned %d", e.Status)
	}
	return fmt.Sprintf("recommend: server returned %d: %s", e.Status, e.Message)
}
