package model

import "time"

// A Status is the lifecycle state of an Object. It is derived, never stored.
type Status string

const (
	// StatusActive is an Object within its TTL that has not been retrieved yet.
	StatusActive Status = "active"
	// StatusConsumed is an Object whose single retrieval succeeded.
	StatusConsumed Status = "consumed"
	// StatusExpired is an Object past its TTL.
	StatusExpired Status = "expired"
)

// An Object represents the meta data of an uploaded payload awaiting a single download.
type Object struct {
	ID string `json:"id" storm:"id"`

	OriginalName string    `json:"original_name"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type"`
	Checksum     string    `json:"checksum"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"   storm:"index"`
}

// Status returns the state of the object at the given time.
// A registered object is never consumed: consumption removes it from the registry.
func (o *Object) Status(now time.Time) Status {
	if o.Expired(now) {
		return StatusExpired
	}
	return StatusActive
}

// Expired reports whether the TTL boundary has been reached.
func (o *Object) Expired(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}

// Remaining returns the time left before expiry, never negative.
func (o *Object) Remaining(now time.Time) time.Duration {
	if d := o.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}
