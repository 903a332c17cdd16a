package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestObjectStatus(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	o := &Object{CreatedAt: now, ExpiresAt: now.Add(5 * time.Minute)}

	assert.Equal(t, StatusActive, o.Status(now))
	assert.Equal(t, StatusActive, o.Status(now.Add(5*time.Minute-time.Nanosecond)))
	assert.Equal(t, StatusExpired, o.Status(now.Add(5*time.Minute)))
	assert.Equal(t, StatusExpired, o.Status(now.Add(time.Hour)))
}

func TestObjectRemaining(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	o := &Object{CreatedAt: now, ExpiresAt: now.Add(5 * time.Minute)}

	assert.Equal(t, 5*time.Minute, o.Remaining(now))
	assert.Equal(t, 2*time.Minute, o.Remaining(now.Add(3*time.Minute)))
	assert.Equal(t, time.Duration(0), o.Remaining(now.Add(10*time.Minute)))
}

func TestWindowExpired(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	w := &Window{Key: "10.0.0.1", Count: 3, ResetAt: now}

	assert.False(t, w.Expired(now))
	assert.True(t, w.Expired(now.Add(time.Millisecond)))
}
