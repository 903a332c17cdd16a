package storage

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/usman-khan12/one-shot/internal/xpath"
)

// ErrNotFound is returned when no payload is stored under the requested key.
var ErrNotFound = errors.New("payload not found")

// Attributes describe a payload being stored.
type Attributes struct {
	Size        int64
	ContentType string
	// ExpiresAt lets backends with native expiry drop the payload on their own.
	ExpiresAt time.Time
}

// Backend is the interface that wraps the basic payload operations.
// Keys are flat identifiers, see xpath.Valid.
type Backend interface {
	// Name returns the name of the backend implementation.
	Name() string

	// Put stores the payload read from r under the given key.
	Put(ctx context.Context, key string, r io.Reader, attrs Attributes) error
	// Reader returns a ReadCloser of the payload.
	Reader(ctx context.Context, key string) (io.ReadCloser, error)
	// Remove deletes the given payload. Removing a missing payload is not an error.
	Remove(ctx context.Context, key string) error
	// Cleanup cleans useless artifacts in storage.
	Cleanup() error
}

// IsNotFound returns true if err means that the payload does not exist.
func IsNotFound(err error) bool {
	return errors.Cause(err) == ErrNotFound
}

func checkKey(key string) error {
	if !xpath.Valid(key) {
		return errors.Errorf("invalid storage key %q", key)
	}
	return nil
}
