package tracestore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs RunRetentionSweep on a cron schedule against a Store and
// Lister pair.
type Scheduler struct {
	store   Store
	lister  Lister
	cron    *cron.Cron
	mu      sync.Mutex
	logger  *slog.Logger
	running bool
}

// NewScheduler constructs a Scheduler bound to store/lister.
func NewScheduler(store Store, lister Lister) *Scheduler {
	return &Scheduler{
		store:  store,
		lister: lister,
		cron:   cron.New(),
		logger: slog.Default().With("component", "tracestore.scheduler"),
	}
}

// Start validates schedule (a standard 5-field cron expression) and
// begins running the retention sweep on that cadence until ctx is
// cancelled. An empty schedule disables the scheduler.
func (s *Scheduler) Start(ctx context.Context, schedule string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if schedule == "" {
		s.logger.Info("retention schedule not configured, scheduler disabled")
		return nil
	}

	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("tracestore: invalid retention schedule %q: %w", schedule, err)
	}

	if _, err := s.cron.AddFunc(schedule, func() {
		s.runSweep(ctx)
	}); err != nil {
		return fmt.Errorf("tracestore: failed to schedule retention sweep: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("retention scheduler started", "schedule", schedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

func (s *Scheduler) runSweep(ctx context.Context) {
	s.logger.Info("starting scheduled retention sweep")
	result := RunRetentionSweep(ctx, s.store, s.lister, time.Now().UTC())
	s.logger.Info("scheduled retention sweep complete",
		"deleted", len(result.Deleted), "skipped_held", len(result.SkippedHeld), "errored", len(result.Errored))
}

// Stop stops the scheduler, waiting for any in-flight sweep to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil && s.running {
		stopCtx := s.cron.Stop()
		<-stopCtx.Done()
		s.running = false
		s.logger.Info("retention scheduler stopped")
	}
}

// IsRunning reports whether the scheduler is currently active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled sweep time, or nil if no sweep has
// been scheduled. The entry stays registered after Stop.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return nil
	}
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
