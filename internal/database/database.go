package database

import (
	"time"

	"github.com/pkg/errors"
	"github.com/usman-khan12/one-shot/internal/model"
)

// ErrDuplicateID is returned when an object is registered twice under the same identifier.
var ErrDuplicateID = errors.New("duplicate object id")

type (
	// A Client can interacts with the database.
	// All methods are safe for concurrent use.
	Client interface {
		// Close the database.
		Close() error
		// IsNotFound returns true if err is a not found error.
		IsNotFound(err error) bool

		ObjectInteraction
		WindowInteraction
	}

	// A ObjectInteraction defines all the methods used to interact with an object record.
	ObjectInteraction interface {
		// CreateObject registers a new object, ErrDuplicateID is returned if the ID is already taken.
		CreateObject(o *model.Object) error
		FindObject(id string) (*model.Object, error)
		// TakeObject removes and returns the object in a single step, leaving a tombstone.
		// Only one of several concurrent callers can win, the others get a not found error.
		TakeObject(id string) (*model.Object, error)
		FindTombstone(id string) (*model.Tombstone, error)
		// SaveTombstone creates or replaces a tombstone.
		SaveTombstone(t *model.Tombstone) error
		// PendingTombstones returns the tombstones whose payload removal is not done yet.
		PendingTombstones() ([]*model.Tombstone, error)
		// DeleteTombstones removes the tombstones of the objects expired before the given time.
		// Tombstones with a pending payload removal are kept.
		DeleteTombstones(before time.Time) (int, error)
		// ExpiredObjects returns all the objects with an expiry reached at now.
		ExpiredObjects(now time.Time) ([]*model.Object, error)
		CountObjects() (int, error)
	}

	// A WindowInteraction defines all the methods used to interact with a rate-limit window record.
	WindowInteraction interface {
		// HitWindow atomically counts a request in the client's current window,
		// opening a new window when none exists or the previous one is over.
		HitWindow(key string, now time.Time, length time.Duration) (*model.Window, error)
		// DeleteExpiredWindows removes the windows over at now and returns how many were removed.
		DeleteExpiredWindows(now time.Time) (int, error)
	}
)
