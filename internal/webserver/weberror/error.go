package weberror

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/usman-khan12/one-shot/internal/transfer"
)

// Kinds of errors that do not come from the transfer service.
const (
	KindInternal = "internal"
	KindHTTP     = "http"
)

type (
	// HTTPCoder interface is implemented by application errors.
	HTTPCoder interface {
		// HTTPCode return the HTTP status code for the given error.
		HTTPCode() int
	}

	// Error is the payload rendered in case of error.
	Error struct {
		Code       int           `json:"-"`
		RetryAfter time.Duration `json:"-"`
		Kind       string        `json:"kind"`
		Message    string        `json:"message"`
	}
)

// StatusCode the know HHTP status for the given err. If unknown, it returns 500.
func StatusCode(err error) int {
	if hc, ok := err.(HTTPCoder); ok {
		return hc.HTTPCode()
	}
	return http.StatusInternalServerError
}

// New returns a new Error.
func New(code int, kind, message string) *Error {
	return &Error{
		Code:    code,
		Kind:    kind,
		Message: message,
	}
}

// From converts any error to its rendered form.
// Messages of unknown errors are not exposed.
func From(err error) *Error {
	var (
		werr *Error
		terr *transfer.Error
		herr *echo.HTTPError
	)

	switch {
	case errors.As(err, &werr):
		return werr
	case errors.As(err, &terr):
		e := New(status(terr.Kind), string(terr.Kind), terr.Message)
		e.RetryAfter = terr.RetryAfter
		return e
	case errors.As(err, &herr):
		if herr.Code == http.StatusRequestEntityTooLarge {
			return New(herr.Code, string(transfer.KindTooLarge), "File too large")
		}
		return New(herr.Code, KindHTTP, fmt.Sprint(herr.Message))
	}
	return New(http.StatusInternalServerError, KindInternal, http.StatusText(http.StatusInternalServerError))
}

func status(kind transfer.Kind) int {
	switch kind {
	case transfer.KindRateLimited:
		return http.StatusTooManyRequests
	case transfer.KindTooLarge:
		return http.StatusRequestEntityTooLarge
	case transfer.KindTypeNotAllowed, transfer.KindInvalidRequest:
		return http.StatusBadRequest
	case transfer.KindNotFound:
		return http.StatusNotFound
	case transfer.KindExpired:
		return http.StatusGone
	case transfer.KindBackendFailure:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// Error stringifies the error.
func (e *Error) Error() string {
	return fmt.Sprintf("[%d] %s: %s", e.Code, e.Kind, e.Message)
}

// HTTPCode returns the HTTP status code.
func (e *Error) HTTPCode() int {
	return e.Code
}
