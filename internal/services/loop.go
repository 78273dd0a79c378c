package services

import (
	"context"
	"fmt"
	"time"

	"actrack/internal/infrastructure/logging"

	"github.com/coder/quartz"
)

// DefaultFinalFlushTimeout bounds the flush performed on shutdown.
const DefaultFinalFlushTimeout = 10 * time.Second

// Loop drives one sampler. Ticks and flushes run on the same goroutine, so a
// sampler's segment state needs no lock.
type Loop struct {
	sampler      Sampler
	interval     time.Duration
	saveInterval time.Duration
	finalTimeout time.Duration
	clock        quartz.Clock
	logger       logging.Logger
}

// NewLoop ticks sampler every interval and flushes it once saveInterval has
// elapsed since the previous flush.
func NewLoop(sampler Sampler, interval, saveInterval time.Duration, clock quartz.Clock, logger logging.Logger) *Loop {
	if clock == nil {
		clock = quartz.NewReal()
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Loop{
		sampler:      sampler,
		interval:     interval,
		saveInterval: saveInterval,
		finalTimeout: DefaultFinalFlushTimeout,
		clock:        clock,
		logger:       logger,
	}
}

// SetFinalFlushTimeout changes the shutdown flush bound.
func (l *Loop) SetFinalFlushTimeout(d time.Duration) {
	if d > 0 {
		l.finalTimeout = d
	}
}

// Run blocks until ctx is done, then flushes one last time and returns that
// flush's error. A failed periodic flush is retried at the next save
// interval.
func (l *Loop) Run(ctx context.Context) error {
	if l.interval <= 0 {
		return fmt.Errorf("%s sampler: interval must be positive, got %v", l.sampler.Name(), l.interval)
	}

	ticker := l.clock.NewTicker(l.interval, "loop", l.sampler.Name())
	defer ticker.Stop()

	lastFlush := l.clock.Now()
	l.logger.Info("Sampler started",
		"sampler", l.sampler.Name(),
		"interval", l.interval.String(),
		"save_interval", l.saveInterval.String())

	for {
		select {
		case <-ctx.Done():
			return l.finalFlush(ctx)
		case <-ticker.C:
			l.sampler.Tick(ctx)

			now := l.clock.Now()
			if l.saveInterval > 0 && now.Sub(lastFlush) >= l.saveInterval {
				// errors are logged by the flusher; the buffer is kept
				_ = l.sampler.Flush(ctx)
				lastFlush = now
			}
		}
	}
}

func (l *Loop) finalFlush(ctx context.Context) error {
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.finalTimeout)
	defer cancel()

	if err := l.sampler.Flush(flushCtx); err != nil {
		l.logger.Error("Final flush failed", "sampler", l.sampler.Name(), "error", err)
		return fmt.Errorf("%s sampler final flush: %w", l.sampler.Name(), err)
	}
	l.logger.Info("Sampler stopped", "sampler", l.sampler.Name())
	return nil
}
