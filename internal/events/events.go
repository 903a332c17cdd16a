package events

import (
	"context"
	"time"
)

// A Type names what happened to an object.
type Type string

// Lifecycle event types.
const (
	ObjectCreated  Type = "object.created"
	ObjectConsumed Type = "object.consumed"
	ObjectExpired  Type = "object.expired"
)

// An Event is emitted at each lifecycle transition of an object.
type Event struct {
	Type        Type      `json:"type"`
	ObjectID    string    `json:"object_id"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// A Publisher delivers lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

type discard struct{}

// Discard returns a Publisher dropping every event.
func Discard() Publisher {
	return discard{}
}

func (discard) Publish(context.Context, Event) error { return nil }
func (discard) Close() error                          { return nil }
