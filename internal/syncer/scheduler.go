package syncer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/starford/scraps/internal/apperr"
)

// Syncer runs a single pass.
type Syncer interface {
	Sync(ctx context.Context) (*Report, error)
}

// Scheduler drives passes from a ticker and from manual triggers. Both go
// through the engine guard, so a trigger during a pass is dropped.
type Scheduler struct {
	syncer   Syncer
	interval time.Duration
	trigger  chan struct{}
	logger   *slog.Logger
}

// NewScheduler returns a scheduler. A non-positive interval disables the
// ticker and leaves only manual triggers.
func NewScheduler(s Syncer, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		syncer:   s,
		interval: interval,
		trigger:  make(chan struct{}, 1),
		logger:   logger,
	}
}

// Trigger requests a pass without blocking. Requests made while one is
// already pending collapse into it.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is cancelled. A pass starts right away so a restart
// does not wait a full interval. Passes do not see the cancellation: a pass
// in flight when ctx ends runs to completion before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if s.interval > 0 {
		t := time.NewTicker(s.interval)
		defer t.Stop()
		tick = t.C
	}
	s.logger.Info("scheduler: started", slog.Duration("interval", s.interval))

	s.once(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler: stopped")
			return nil
		case <-tick:
			s.once(ctx)
		case <-s.trigger:
			s.once(ctx)
		}
	}
}

func (s *Scheduler) once(ctx context.Context) {
	_, err := s.syncer.Sync(context.WithoutCancel(ctx))
	switch {
	case err == nil:
	case errors.Is(err, apperr.ErrSyncInProgress):
		s.logger.Debug("scheduler: pass already running")
	default:
		s.logger.Warn("scheduler: pass failed", slog.String("error", err.Error()))
	}
}
