package dronelink

import (
	"errors"
)

type unrecoverableError struct {
	error
}

func (e unrecoverableError) Error() string {
	if e.error == nil {
		return "unrecoverable error"
	}
	return e.error.Error()
}

func (e unrecoverableError) Unwrap() error {
	return e.error
}

// Unrecoverable wraps an error in `unrecoverableError` struct
func Unrecoverable(err error) error {
	return unrecoverableError{err}
}

// IsRecoverable checks if error is an instance of `unrecoverableError`
func IsRecoverable(err error) bool {
	var u unrecoverableError
	return !errors.As(err, &u)
}

var (
	ErrAlreadyConnected   = errors.New("port is already connected")
	ErrNotConnected       = errors.New("port is not connected")
	ErrAlreadyInitialized = errors.New("port has already been initialized")
	ErrNotInitialized     = errors.New("port must be initialized before starting it")
	ErrAlreadyRunning     = errors.New("port already started")
	ErrNoPortAvailable    = errors.New("could not find an available port")
	ErrUnknownDriver      = errors.New("unknown driver")
	ErrInvalidConfig      = errors.New("invalid config")
	ErrNilDriver          = errors.New("driver is nil")
)
