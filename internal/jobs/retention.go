// Package jobs runs background work: the retention purge of stored runs and
// the worker queue used for batch extraction.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Purger deletes stored runs created before cutoff.
type Purger interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Retention deletes runs older than MaxAge on a cron schedule.
type Retention struct {
	purger   Purger
	maxAge   time.Duration
	schedule string
	timeout  time.Duration
	now      func() time.Time
	cron     *cron.Cron
	logger   *slog.Logger
}

func NewRetention(p Purger, maxAge time.Duration, schedule string, logger *slog.Logger) *Retention {
	if logger == nil {
		logger = slog.Default()
	}
	if schedule == "" {
		schedule = "0 3 * * *"
	}
	return &Retention{
		purger:   p,
		maxAge:   maxAge,
		schedule: schedule,
		timeout:  time.Minute,
		now:      time.Now,
		logger:   logger,
	}
}

// RunOnce purges immediately. A non-positive MaxAge keeps everything.
func (r *Retention) RunOnce(ctx context.Context) (int64, error) {
	if r.maxAge <= 0 {
		return 0, nil
	}
	cutoff := r.now().Add(-r.maxAge)
	n, err := r.purger.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		r.logger.Error("retention.purge.failed", "cutoff", cutoff, "error", err)
		return 0, err
	}
	r.logger.Info("retention.purge.ok", "cutoff", cutoff, "deleted", n)
	return n, nil
}

// Start registers the purge with the standard 5-field cron parser and starts
// the scheduler.
func (r *Retention) Start() error {
	if r.cron != nil {
		return nil
	}
	c := cron.New()
	_, err := c.AddFunc(r.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		_, _ = r.RunOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("retention schedule %q: %w", r.schedule, err)
	}
	c.Start()
	r.cron = c
	r.logger.Info("retention.started", "schedule", r.schedule, "max_age", r.maxAge.String())
	return nil
}

// Stop halts the scheduler and waits for a running purge until ctx is done.
func (r *Retention) Stop(ctx context.Context) {
	if r.cron == nil {
		return
	}
	select {
	case <-r.cron.Stop().Done():
	case <-ctx.Done():
		r.logger.Warn("retention.stop.interrupted")
	}
	r.cron = nil
}
