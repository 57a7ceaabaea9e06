package service

import (
	"context"
	"log/slog"
	"time"
)

// SweepFunc removes expired records from one store and reports how many.
type SweepFunc func(ctx context.Context) (int, error)

type sweepTask struct {
	name  string
	sweep SweepFunc
}

// HousekeepingService periodically cleans up expired records so the refresh
// token table and the CSRF store don't grow without bound.
type HousekeepingService struct {
	Logger   *slog.Logger
	Interval time.Duration

	tasks []sweepTask

	// Internal channels for lifecycle management
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a new housekeeping service with the given
// interval. If interval is 0 or negative, defaults to 5 minutes.
func NewHousekeepingService(logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	return &HousekeepingService{
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Register adds a named cleanup task. Must be called before Start.
func (s *HousekeepingService) Register(name string, sweep SweepFunc) {
	s.tasks = append(s.tasks, sweepTask{name: name, sweep: sweep})
}

// Start begins the background worker that periodically runs cleanup.
// This is non-blocking and should be called after the database is ready.
// Call Stop() to gracefully shutdown the worker.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop gracefully shuts down the background worker.
// Blocks until the worker has finished any in-progress cleanup.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

// run is the main background worker loop.
func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run cleanup immediately on startup
	s.Cleanup()

	for {
		select {
		case <-ticker.C:
			s.Cleanup()
		case <-s.stopCh:
			return
		}
	}
}

// Cleanup runs every registered task once. Each task is independent, a
// failure in one won't stop the others. Exported so tests can trigger a
// sweep without waiting on wall-clock ticks.
func (s *HousekeepingService) Cleanup() {
	ctx := context.Background()
	s.Logger.Debug("starting housekeeping cleanup")

	for _, t := range s.tasks {
		n, err := t.sweep(ctx)
		if err != nil {
			s.Logger.Error("housekeeping task failed", "task", t.name, "error", err)
			continue
		}
		if n > 0 {
			s.Logger.Info("housekeeping task removed records", "task", t.name, "count", n)
		}
	}
}
