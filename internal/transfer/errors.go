package transfer

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/usman-khan12/one-shot/internal/lifecycle"
)

// A Kind is the stable category of a transfer failure.
type Kind string

// Failure kinds.
const (
	KindRateLimited    Kind = "rate_limited"
	KindTooLarge       Kind = "too_large"
	KindTypeNotAllowed Kind = "type_not_allowed"
	KindInvalidRequest Kind = "invalid_request"
	KindNotFound       Kind = "not_found"
	KindExpired        Kind = "expired"
	KindBackendFailure Kind = "backend_failure"
)

// Validation returns true for the kinds rejected before any storage mutation.
func (k Kind) Validation() bool {
	return k == KindTooLarge || k == KindTypeNotAllowed || k == KindInvalidRequest
}

// An Error is a failure surfaced to the caller.
type Error struct {
	Kind    Kind
	Message string
	// RetryAfter is set on KindRateLimited.
	RetryAfter time.Duration

	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the internal cause.
func (e *Error) Unwrap() error {
	return e.cause
}

// KindOf returns the kind of err, KindBackendFailure for unknown errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindBackendFailure
}

func newError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// translate maps lifecycle outcomes to transfer errors.
// Unknown errors become a generic failure, their text never reaches the caller.
func translate(err error, maxSize int64, failure string) error {
	switch errors.Cause(err) {
	case lifecycle.ErrNotFound:
		return newError(KindNotFound, "File not found or already downloaded", nil)
	case lifecycle.ErrExpired:
		return newError(KindExpired, "File has expired", nil)
	case lifecycle.ErrTooLarge:
		return newError(KindTooLarge, fmt.Sprintf("File too large. Maximum size is %s.", humanize.IBytes(uint64(maxSize))), nil)
	case lifecycle.ErrTypeNotAllowed:
		return newError(KindTypeNotAllowed, "File type not allowed", nil)
	case lifecycle.ErrEmpty:
		return newError(KindInvalidRequest, "No file provided", nil)
	case lifecycle.ErrSizeMismatch:
		return newError(KindInvalidRequest, "File size does not match its content", err)
	}
	return newError(KindBackendFailure, failure, err)
}
