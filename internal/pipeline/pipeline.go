package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/dam-data-etl/internal/observability"
)

// Job is one scheduled unit of work, such as a realtime fetch.
type Job func(ctx context.Context) error

// Scheduler runs a job immediately and then once per interval until its
// context is cancelled. A failed run is logged and retried at the next
// interval.
type Scheduler struct {
	name     string
	job      Job
	interval time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
	ready    atomic.Bool
}

// New creates a Scheduler for the named job.
func New(name string, job Job, interval time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Scheduler {
	return &Scheduler{
		name:     name,
		job:      job,
		interval: interval,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
	}
}

// CheckReadiness returns nil once the job has completed successfully at least
// once, or an error describing why the service is not yet ready.
func (s *Scheduler) CheckReadiness(_ context.Context) error {
	if !s.ready.Load() {
		return errors.New("no successful run yet")
	}
	return nil
}

// Run executes the schedule until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", "job", s.name, "interval", s.interval)
	s.metrics.SchedulerRunning.Set(1)
	defer s.metrics.SchedulerRunning.Set(0)

	for {
		s.runOnce(ctx)
		if !sleepWithContext(ctx, s.clock, s.interval) {
			s.logger.Info("scheduler stopping", "job", s.name, "reason", ctx.Err())
			return nil
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := s.clock.Now()
	if err := s.job(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("scheduled run failed", "job", s.name, "error", err)
		return
	}
	s.ready.Store(true)
	s.logger.Info("scheduled run complete", "job", s.name, "duration", s.clock.Since(start))
}

func sleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
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
