package lifecycle

import (
	"fmt"

	"github.com/pkg/errors"
)

// Lifecycle errors.
var (
	ErrNotFound       = errors.New("object not found")
	ErrExpired        = errors.New("object expired")
	ErrEmpty          = errors.New("empty payload")
	ErrTooLarge       = errors.New("payload too large")
	ErrTypeNotAllowed = errors.New("content type not allowed")
	ErrSizeMismatch   = errors.New("payload size does not match the declared size")
)

// A BackendError is an I/O failure of the blob backend.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend %s: %s", e.Op, e.Err)
}

// Unwrap returns the backend error.
func (e *BackendError) Unwrap() error {
	return e.Err
}

// IsBackend returns true if err is a BackendError.
func IsBackend(err error) bool {
	var be *BackendError
	return errors.As(err, &be)
}

func backendError(op string, err error) error {
	return &BackendError{Op: op, Err: err}
}
