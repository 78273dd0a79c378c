package services

import (
	"context"
	"errors"
	"time"

	"actrack/internal/infrastructure/logging"
	"actrack/internal/infrastructure/metrics"
	"actrack/internal/platform"
	"actrack/internal/types"

	"github.com/coder/quartz"
)

// ForegroundSampler attributes wall-clock time to whichever application owns
// the foreground. Time is credited per segment, delimited by timestamps, so
// tick jitter never changes the total.
type ForegroundSampler struct {
	observer     platform.ForegroundObserver
	resolver     platform.ProcessResolver
	exclusions   ProcessExclusions
	buffer       *AccumulationBuffer
	flusher      *Flusher
	clock        quartz.Clock
	location     *time.Location
	queryTimeout time.Duration
	metrics      *metrics.Metrics
	logger       logging.Logger

	// Only touched from the owning loop.
	current      string
	segmentStart time.Time
}

// ForegroundOptions configures a ForegroundSampler.
type ForegroundOptions struct {
	Observer     platform.ForegroundObserver
	Resolver     platform.ProcessResolver
	Exclusions   ProcessExclusions
	Store        BatchMerger
	Clock        quartz.Clock
	Location     *time.Location
	QueryTimeout time.Duration
	Metrics      *metrics.Metrics
	Logger       logging.Logger
}

// NewForegroundSampler creates a sampler with an empty buffer.
func NewForegroundSampler(opts ForegroundOptions) *ForegroundSampler {
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewDefaultLogger()
	}

	buffer := NewAccumulationBuffer()
	return &ForegroundSampler{
		observer:     opts.Observer,
		resolver:     opts.Resolver,
		exclusions:   opts.Exclusions,
		buffer:       buffer,
		flusher:      NewFlusher(SamplerForeground, types.EntityApplication, buffer, opts.Store, opts.Clock, opts.Location, opts.Metrics, opts.Logger),
		clock:        opts.Clock,
		location:     opts.Location,
		queryTimeout: opts.QueryTimeout,
		metrics:      opts.Metrics,
		logger:       opts.Logger,
	}
}

func (s *ForegroundSampler) Name() string { return SamplerForeground }

// Buffer exposes the sampler's accumulation buffer.
func (s *ForegroundSampler) Buffer() *AccumulationBuffer { return s.buffer }

// Current returns the entity owning the open segment ("" when none) and
// when that segment started.
func (s *ForegroundSampler) Current() (string, time.Time) {
	return s.current, s.segmentStart
}

// Tick observes the foreground once. A failed observation leaves the open
// segment untouched.
func (s *ForegroundSampler) Tick(ctx context.Context) {
	name, err := s.observe(ctx)
	now := s.clock.Now()
	if err != nil {
		s.metrics.Tick(SamplerForeground, metrics.ResultSkipped)
		if !errors.Is(err, platform.ErrNoForeground) {
			s.logger.Debug("Foreground query failed", "error", err)
		}
		return
	}
	s.metrics.Tick(SamplerForeground, metrics.ResultOK)

	if s.exclusions.Excluded(name) {
		name = ""
	}
	if name == s.current {
		return
	}

	s.closeSegment(now)
	s.current = name
	s.segmentStart = now
}

// Flush closes the open segment at the current instant, reopens it from that
// instant, then persists the buffer.
func (s *ForegroundSampler) Flush(ctx context.Context) error {
	now := s.clock.Now()
	if s.current != "" {
		s.closeSegment(now)
		s.segmentStart = now
	}
	_, err := s.flusher.Flush(ctx)
	s.metrics.SetBufferEntries(SamplerForeground, s.buffer.Len())
	return err
}

func (s *ForegroundSampler) observe(ctx context.Context) (string, error) {
	qctx, cancel := queryContext(ctx, s.queryTimeout)
	defer cancel()

	ref, err := s.observer.ForegroundProcess(qctx)
	if err != nil {
		return "", err
	}
	name, err := s.resolver.ProcessName(qctx, ref)
	if err != nil {
		return "", err
	}
	if name == "" {
		return "", platform.ErrNoForeground
	}
	return name, nil
}

// closeSegment credits [segmentStart, now) to the current entity, split at
// each local midnight so every part lands on its own day.
func (s *ForegroundSampler) closeSegment(now time.Time) {
	if s.current == "" || s.segmentStart.IsZero() {
		return
	}

	start := s.segmentStart.In(s.location)
	end := now.In(s.location)
	for start.Before(end) {
		boundary := types.NextMidnight(start)
		if boundary.After(end) {
			boundary = end
		}
		s.buffer.Add(types.DayOf(start), s.current, boundary.Sub(start))
		start = boundary
	}
}
