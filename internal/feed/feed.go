// Package feed periodically ranks rivers around the default reference
// location and publishes each ranking as a batch.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"

	"github.com/couchcryptid/river-conditions-service/internal/domain"
	"github.com/couchcryptid/river-conditions-service/internal/observability"
)

// Ranker produces the ranked records for a reference location.
type Ranker interface {
	Rank(ctx context.Context, ref domain.Coordinate, radiusMiles float64) ([]domain.ConditionRecord, error)
}

// Publisher writes a batch to the downstream sink.
type Publisher interface {
	PublishBatch(ctx context.Context, batch domain.ConditionBatch) error
}

// Options configures a Feed.
type Options struct {
	Schedule    string // standard five-field cron expression
	Location    *time.Location
	Reference   domain.Coordinate
	RadiusMiles float64
	MaxAttempts int // publish attempts per batch; defaults to 3
}

// Feed publishes a ranked batch on every cron tick.
type Feed struct {
	ranker    Ranker
	publisher Publisher
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics
	opts      Options
	ready     atomic.Bool
	running   atomic.Bool
}

// New creates a Feed with the given ranker, sink, and observability.
func New(r Ranker, p Publisher, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Feed {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 3
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Feed{
		ranker:    r,
		publisher: p,
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
		opts:      opts,
	}
}

// CheckReadiness returns nil once the feed has published at least one batch.
func (f *Feed) CheckReadiness(_ context.Context) error {
	if !f.ready.Load() {
		return errors.New("feed has not published a batch yet")
	}
	return nil
}

// Run publishes one batch immediately, then one per schedule tick until ctx
// is cancelled. It waits for an in-flight batch before returning.
func (f *Feed) Run(ctx context.Context) error {
	c := cron.New(cron.WithLocation(f.opts.Location))
	if _, err := c.AddFunc(f.opts.Schedule, func() { f.tick(ctx) }); err != nil {
		return fmt.Errorf("schedule feed: %w", err)
	}

	f.logger.Info("feed started",
		"schedule", f.opts.Schedule,
		"lat", f.opts.Reference.Lat,
		"lon", f.opts.Reference.Lon,
		"radius_miles", f.opts.RadiusMiles,
	)
	f.metrics.FeedEnabled.Set(1)
	defer f.metrics.FeedEnabled.Set(0)

	f.tick(ctx)
	c.Start()

	<-ctx.Done()
	f.logger.Info("feed stopping", "reason", ctx.Err())
	<-c.Stop().Done()
	return nil
}

// tick skips the run when the previous batch is still in flight.
func (f *Feed) tick(ctx context.Context) {
	if !f.running.CompareAndSwap(false, true) {
		return
	}
	defer f.running.Store(false)

	if _, err := f.RunOnce(ctx); err != nil && ctx.Err() == nil {
		f.logger.Error("feed batch failed", "error", err)
	}
}

// RunOnce ranks the reference location and publishes the result, retrying the
// publish with exponential backoff. It returns the batch that was attempted.
func (f *Feed) RunOnce(ctx context.Context) (domain.ConditionBatch, error) {
	batch := domain.ConditionBatch{
		ID:          uuid.NewString(),
		Reference:   f.opts.Reference,
		RadiusMiles: f.opts.RadiusMiles,
		GeneratedAt: f.clock.Now().In(f.opts.Location),
	}

	records, err := f.ranker.Rank(ctx, f.opts.Reference, f.opts.RadiusMiles)
	if err != nil {
		f.metrics.FeedBatches.WithLabelValues(observability.OutcomeError).Inc()
		return batch, fmt.Errorf("rank: %w", err)
	}
	batch.Records = records

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for attempt := 1; ; attempt++ {
		err = f.publisher.PublishBatch(ctx, batch)
		if err == nil {
			break
		}
		if attempt >= f.opts.MaxAttempts || ctx.Err() != nil {
			f.metrics.FeedBatches.WithLabelValues(observability.OutcomeError).Inc()
			return batch, fmt.Errorf("publish after %d attempts: %w", attempt, err)
		}
		f.logger.Warn("publish failed, retrying",
			"batch_id", batch.ID,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)
		if !sleepWithContext(ctx, f.clock, backoff) {
			f.metrics.FeedBatches.WithLabelValues(observability.OutcomeError).Inc()
			return batch, ctx.Err()
		}
		backoff = nextBackoff(backoff, maxBackoff)
	}

	f.metrics.FeedBatches.WithLabelValues(observability.OutcomeSuccess).Inc()
	f.ready.Store(true)
	f.logger.Info("feed batch published",
		"batch_id", batch.ID,
		"records", len(batch.Records),
	)
	return batch, nil
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
