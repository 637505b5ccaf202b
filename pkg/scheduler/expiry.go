// Package scheduler runs periodic maintenance over the plan store.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

var ErrInvalidTTL = errors.New("draft ttl must be positive")

// Expirer cancels drafts created before a cutoff. *services.Plans implements it.
type Expirer interface {
	ExpireDrafts(ctx context.Context, cutoff time.Time) (int, error)
}

// DraftExpiry cancels draft plans nobody approved within the TTL.
type DraftExpiry struct {
	expirer  Expirer
	logger   *slog.Logger
	ttl      time.Duration
	schedule string
	now      func() time.Time
}

// Option configures a DraftExpiry.
type Option func(*DraftExpiry)

// WithClock overrides the time source used to compute the cutoff.
func WithClock(now func() time.Time) Option {
	return func(d *DraftExpiry) {
		d.now = now
	}
}

// NewDraftExpiry validates the cron schedule (standard five fields or a
// descriptor such as "@every 1m") and the TTL.
func NewDraftExpiry(expirer Expirer, logger *slog.Logger, ttl time.Duration, schedule string, opts ...Option) (*DraftExpiry, error) {
	if ttl <= 0 {
		return nil, ErrInvalidTTL
	}

	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid cron expression '%s': %w", schedule, err)
	}

	d := &DraftExpiry{
		expirer:  expirer,
		logger:   logger.With("module", "draft_expiry"),
		ttl:      ttl,
		schedule: schedule,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d, nil
}

// Sweep expires drafts older than the TTL once.
func (d *DraftExpiry) Sweep(ctx context.Context) (int, error) {
	cutoff := d.now().Add(-d.ttl)

	expired, err := d.expirer.ExpireDrafts(ctx, cutoff)
	if err != nil {
		return expired, err
	}

	if expired > 0 {
		d.logger.InfoContext(ctx, "Expired draft plans", "count", expired, "cutoff", cutoff)
	}

	return expired, nil
}

// Run sweeps on the schedule until ctx is done, then waits for a running
// sweep to return.
func (d *DraftExpiry) Run(ctx context.Context) error {
	logger := cronLogger{d.logger}

	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(logger),
		cron.Recover(logger),
	))

	entryID, err := c.AddFunc(d.schedule, func() {
		_, err := d.Sweep(ctx)
		if err != nil {
			d.logger.ErrorContext(ctx, "Draft expiry sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	d.logger.InfoContext(ctx, "Draft expiry started", "schedule", d.schedule, "ttl", d.ttl, "entry_id", entryID)

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()

	d.logger.Info("Draft expiry stopped")

	return nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
