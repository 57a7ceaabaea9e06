package ttlstore

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Sweeper periodically runs a store's Sweep in an owned background goroutine.
// It is started at process init and stopped at shutdown. A tick that fires
// while the previous run is still executing is skipped rather than stacked;
// sweeps are cheap and idempotent, so losing one is harmless.
type Sweeper struct {
	name     string
	interval time.Duration
	sweep    func(context.Context) (int, error)
	logger   *slog.Logger

	running atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSweeper builds a Sweeper over any Sweep-shaped function. Intervals <= 0
// default to 5 minutes.
func NewSweeper(
	name string,
	interval time.Duration,
	sweep func(context.Context) (int, error),
	logger *slog.Logger,
) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Sweeper{
		name:     name,
		interval: interval,
		sweep:    sweep,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the background loop. Non-blocking.
func (s *Sweeper) Start() {
	go s.run()
	s.logger.Info("sweeper started", "name", s.name, "interval", s.interval)
}

// Stop shuts the loop down and blocks until any in-progress sweep finishes.
func (s *Sweeper) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.logger.Info("sweeper stopped", "name", s.name)
}

// RunOnce triggers a single sweep immediately. Used by tests to avoid
// waiting on wall-clock ticks, and by the loop itself.
func (s *Sweeper) RunOnce() {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Debug("sweep still running, skipping tick", "name", s.name)
		return
	}
	defer s.running.Store(false)

	removed, err := s.sweep(context.Background())
	if err != nil {
		s.logger.Error("sweep failed", "name", s.name, "error", err)
		return
	}
	if removed > 0 {
		s.logger.Debug("sweep removed entries", "name", s.name, "removed", removed)
	}
}

func (s *Sweeper) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.RunOnce()
		case <-s.stopCh:
			return
		}
	}
}
