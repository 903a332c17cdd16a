package model

import "time"

// A Window is the fixed rate-limit window of one client.
type Window struct {
	Key     string    `json:"key"      storm:"id"`
	Count   int       `json:"count"`
	ResetAt time.Time `json:"reset_at" storm:"index"`
}

// Expired reports whether the window is over.
func (w *Window) Expired(now time.Time) bool {
	return now.After(w.ResetAt)
}
