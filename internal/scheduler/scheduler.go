package scheduler

import (
	"context"
	"time"

	"github.com/mdouchement/logger"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/usman-khan12/one-shot/internal/lifecycle"
	"github.com/usman-khan12/one-shot/internal/ratelimit"
)

// DefaultSpecification is the default sweep schedule.
const DefaultSpecification = "@every 30s"

// A Controller is an Iversion Of Control pattern used to init the scheduler package.
type Controller struct {
	Logger        logger.Logger
	Lifecycle     *lifecycle.Manager
	Limiter       *ratelimit.Limiter
	Specification string
	// Timeout bounds one sweep run, zero means no bound.
	Timeout time.Duration
	Now     func() time.Time
}

// Start lauches the scheduler asynchronously.
// The returned cron must be stopped on shutdown.
func Start(c Controller) (*cron.Cron, error) {
	if c.Specification == "" {
		c.Specification = DefaultSpecification
	}

	cron := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DiscardLogger),
	))

	log := c.Logger.WithPrefix("[scheduler]")

	_, err := cron.AddFunc(c.Specification, Task(c))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid schedule %q", c.Specification)
	}
	log.Infof("Sweep task registred (%s)", c.Specification)

	cron.Start()
	log.Info("Scheduler is running")
	return cron, nil
}

// Task returns the sweep job: expired objects, tombstones and rate limit windows.
func Task(c Controller) func() {
	now := c.Now
	if now == nil {
		now = time.Now
	}
	log := c.Logger.WithPrefix("[TTL]")

	return func() {
		ctx := context.Background()
		if c.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.Timeout)
			defer cancel()
		}

		n, err := c.Lifecycle.Sweep(ctx, now())
		if err != nil {
			log.Error(err)
		}
		if n > 0 {
			log.Infof("Purged %d expired objects", n)
		}

		if c.Limiter == nil {
			return
		}
		w, err := c.Limiter.Sweep(ctx)
		if err != nil {
			log.Error(err)
			return
		}
		if w > 0 {
			log.Debugf("Dropped %d rate limit windows", w)
		}
	}
}
