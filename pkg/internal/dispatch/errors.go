package dispatch

import (
	"errors"
	"fmt"
)

var (
	ErrRateLimited    = errors.New("too many commands, slow down")
	ErrNotCommand     = errors.New("input is not a slash command")
	ErrCommandDisable = errors.New("command is disabled")
	ErrNotConfigured  = errors.New("endpoint is not configured")
)

// TransportError means the external service could not be reached.
type TransportError struct {
	Endpoint string
	Err      error
}

func (v *TransportError) Error() string {
	return fmt.Sprintf("unable to reach %s: %v", v.Endpoint, v.Err)
}

func (v *TransportError) Unwrap() error {
	return v.Err
}

// ServiceError is a failure reported by the external service itself.
type ServiceError struct {
	Status  int
	Message string
}

func (v *ServiceError) Error() string {
	return fmt.Sprintf("service responded %d: %s", v.Status, v.Message)
}
