package services

import (
	"context"
	"time"

	"actrack/internal/infrastructure/logging"
	"actrack/internal/infrastructure/metrics"

	"github.com/coder/quartz"
)

// RetentionStore deletes aggregates older than the retention window.
type RetentionStore interface {
	Cleanup(ctx context.Context, retentionDays int) (int64, error)
}

// Optimizer compacts the database file.
type Optimizer interface {
	Optimize(ctx context.Context) error
}

// RetentionSweeper prunes old aggregates on a schedule and occasionally
// optimizes the database. Failures are logged and never stop sampling.
type RetentionSweeper struct {
	store          RetentionStore
	optimizer      Optimizer
	retentionDays  int
	interval       time.Duration
	vacuumInterval time.Duration
	clock          quartz.Clock
	metrics        *metrics.Metrics
	logger         logging.Logger

	lastVacuum time.Time
}

// SweeperOptions configures a RetentionSweeper. A nil Optimizer or a zero
// VacuumInterval disables optimization; a zero Interval sweeps only when
// Sweep is called.
type SweeperOptions struct {
	Store          RetentionStore
	Optimizer      Optimizer
	RetentionDays  int
	Interval       time.Duration
	VacuumInterval time.Duration
	Clock          quartz.Clock
	Metrics        *metrics.Metrics
	Logger         logging.Logger
}

// NewRetentionSweeper creates a sweeper.
func NewRetentionSweeper(opts SweeperOptions) *RetentionSweeper {
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewDefaultLogger()
	}
	return &RetentionSweeper{
		store:          opts.Store,
		optimizer:      opts.Optimizer,
		retentionDays:  opts.RetentionDays,
		interval:       opts.Interval,
		vacuumInterval: opts.VacuumInterval,
		clock:          opts.Clock,
		metrics:        opts.Metrics,
		logger:         opts.Logger,
		lastVacuum:     opts.Clock.Now(),
	}
}

// Sweep runs one cleanup, followed by an optimize pass when the vacuum
// interval has elapsed.
func (s *RetentionSweeper) Sweep(ctx context.Context) (int64, error) {
	deleted, err := s.store.Cleanup(ctx, s.retentionDays)
	if err != nil {
		s.metrics.Retention(metrics.ResultError, 0)
		s.logger.Warn("Retention sweep failed", "retention_days", s.retentionDays, "error", err)
		return 0, err
	}
	s.metrics.Retention(metrics.ResultOK, deleted)

	if s.optimizer != nil && s.vacuumInterval > 0 {
		if now := s.clock.Now(); now.Sub(s.lastVacuum) >= s.vacuumInterval {
			s.lastVacuum = now
			if err := s.optimizer.Optimize(ctx); err != nil {
				s.logger.Warn("Database optimize failed", "error", err)
			}
		}
	}
	return deleted, nil
}

// Run sweeps every interval until ctx is done.
func (s *RetentionSweeper) Run(ctx context.Context) error {
	if s.interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := s.clock.NewTicker(s.interval, "sweeper")
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_, _ = s.Sweep(ctx)
		}
	}
}
