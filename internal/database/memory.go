package database

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/usman-khan12/one-shot/internal/model"
)

// ErrNotFound is returned by the in-memory client for unknown records.
var ErrNotFound = errors.New("not found")

type memory struct {
	mu         sync.Mutex
	objects    map[string]model.Object
	tombstones map[string]model.Tombstone
	windows    map[string]model.Window
}

// NewMemory returns a Client backed by process memory.
// A single lock guards every record, the state is lost on exit.
func NewMemory() Client {
	return &memory{
		objects:    map[string]model.Object{},
		tombstones: map[string]model.Tombstone{},
		windows:    map[string]model.Window{},
	}
}

func (c *memory) Close() error {
	return nil
}

func (c *memory) IsNotFound(err error) bool {
	return errors.Cause(err) == ErrNotFound
}

//
// Object
//

func (c *memory) CreateObject(o *model.Object) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.objects[o.ID]; ok {
		return ErrDuplicateID
	}
	c.objects[o.ID] = *o
	return nil
}

func (c *memory) FindObject(id string) (*model.Object, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	object, ok := c.objects[id]
	if !ok {
		return nil, errors.Wrap(ErrNotFound, "could not find object")
	}
	return &object, nil
}

func (c *memory) TakeObject(id string) (*model.Object, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	object, ok := c.objects[id]
	if !ok {
		return nil, errors.Wrap(ErrNotFound, "could not find object")
	}
	delete(c.objects, id)
	c.tombstones[id] = model.Tombstone{ID: id, ExpiresAt: object.ExpiresAt}
	return &object, nil
}

func (c *memory) FindTombstone(id string) (*model.Tombstone, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tombstone, ok := c.tombstones[id]
	if !ok {
		return nil, errors.Wrap(ErrNotFound, "could not find tombstone")
	}
	return &tombstone, nil
}

func (c *memory) SaveTombstone(t *model.Tombstone) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tombstones[t.ID] = *t
	return nil
}

func (c *memory) PendingTombstones() ([]*model.Tombstone, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pending := make([]*model.Tombstone, 0)
	for _, tombstone := range c.tombstones {
		if !tombstone.PayloadRemoved {
			tombstone := tombstone
			pending = append(pending, &tombstone)
		}
	}
	return pending, nil
}

func (c *memory) DeleteTombstones(before time.Time) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var n int
	for id, tombstone := range c.tombstones {
		if tombstone.PayloadRemoved && tombstone.ExpiresAt.Before(before) {
			delete(c.tombstones, id)
			n++
		}
	}
	return n, nil
}

func (c *memory) ExpiredObjects(now time.Time) ([]*model.Object, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expired := make([]*model.Object, 0)
	for _, object := range c.objects {
		if object.Expired(now) {
			object := object
			expired = append(expired, &object)
		}
	}
	return expired, nil
}

func (c *memory) CountObjects() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.objects), nil
}

//
// Window
//

func (c *memory) HitWindow(key string, now time.Time, length time.Duration) (*model.Window, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	window, ok := c.windows[key]
	if !ok || window.Expired(now) {
		window = model.Window{Key: key, Count: 1, ResetAt: now.Add(length)}
	} else {
		window.Count++
	}
	c.windows[key] = window
	return &window, nil
}

func (c *memory) DeleteExpiredWindows(now time.Time) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var n int
	for key, window := range c.windows {
		if window.Expired(now) {
			delete(c.windows, key)
			n++
		}
	}
	return n, nil
}
