package app

import (
	"errors"
	"fmt"
)

// ErrConfig represents a configuration error.
type ErrConfig struct {
	Cause error
}

func (e *ErrConfig) Error() string {
	return fmt.Sprintf("config error: %v", e.Cause)
}

func (e *ErrConfig) Unwrap() error {
	return e.Cause
}

// ErrNoStream is returned when a batch is requested with no open stream.
var ErrNoStream = errors.New("no open stream")
