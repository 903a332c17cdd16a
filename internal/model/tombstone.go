package model

import "time"

// A Tombstone remembers a removed Object until its retention is over,
// so that an identifier past its TTL keeps answering as expired.
// It also tracks the removal of the payload, a pending removal is retried by the sweep.
type Tombstone struct {
	ID             string    `json:"id"              storm:"id"`
	ExpiresAt      time.Time `json:"expires_at"      storm:"index"`
	PayloadRemoved bool      `json:"payload_removed"`
}

// Expired reports whether the TTL boundary of the removed object has been reached.
func (t *Tombstone) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
