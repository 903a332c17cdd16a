package ratelimit

import (
	"context"
	"time"

	"github.com/mdouchement/logger"
	"github.com/pkg/errors"
	"github.com/usman-khan12/one-shot/internal/database"
)

// Defaults used when the Controller leaves them empty.
const (
	DefaultWindow = 15 * time.Minute
	DefaultMax    = 10
)

// unknownClient is the key of callers without network identity.
const unknownClient = "unknown"

// A Decision is the outcome of an admission request.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns how long the caller should wait before its next attempt.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if d.Allowed || !d.ResetAt.After(now) {
		return 0
	}
	return d.ResetAt.Sub(now)
}

// A Controller is an Iversion Of Control pattern used to init the limiter.
type Controller struct {
	Logger logger.Logger
	Store  database.WindowInteraction
	Window time.Duration
	Max    int
	Now    func() time.Time
}

// A Limiter performs fixed-window admission control per client.
type Limiter struct {
	log    logger.Logger
	store  database.WindowInteraction
	window time.Duration
	max    int
	now    func() time.Time
}

// New returns a new Limiter.
func New(c Controller) *Limiter {
	l := &Limiter{
		log:    c.Logger.WithPrefix("[ratelimit]"),
		store:  c.Store,
		window: c.Window,
		max:    c.Max,
		now:    c.Now,
	}
	if l.window <= 0 {
		l.window = DefaultWindow
	}
	if l.max <= 0 {
		l.max = DefaultMax
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l
}

// Admit counts a request of the given client and tells whether it is allowed.
func (l *Limiter) Admit(ctx context.Context, client string) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}
	if client == "" {
		client = unknownClient
	}

	w, err := l.store.HitWindow(client, l.now(), l.window)
	if err != nil {
		return Decision{}, errors.Wrap(err, "could not count request")
	}

	d := Decision{
		Allowed: w.Count <= l.max,
		ResetAt: w.ResetAt,
	}
	if d.Allowed {
		d.Remaining = l.max - w.Count
	} else {
		l.log.Debugf("%s exceeded %d requests until %s", client, l.max, w.ResetAt.Format(time.RFC3339))
	}
	return d, nil
}

// Sweep drops the windows that are over to bound memory.
func (l *Limiter) Sweep(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	n, err := l.store.DeleteExpiredWindows(l.now())
	if err != nil {
		return 0, errors.Wrap(err, "could not sweep windows")
	}
	if n > 0 {
		l.log.Debugf("Removed %d expired windows", n)
	}
	return n, nil
}
