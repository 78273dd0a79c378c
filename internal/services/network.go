package services

import (
	"context"
	"slices"
	"time"

	"actrack/internal/infrastructure/logging"
	"actrack/internal/infrastructure/metrics"
	"actrack/internal/platform"
	"actrack/internal/types"

	"github.com/coder/quartz"
	"github.com/samber/lo"
)

// NetworkSampler estimates domain usage from the OS resolver cache. Every
// distinct domain present during a tick is credited with the whole tick
// interval, so simultaneous domains each receive full credit.
type NetworkSampler struct {
	source       platform.ResolvedHostnameSource
	exclusions   DomainExclusions
	interval     time.Duration
	buffer       *AccumulationBuffer
	flusher      *Flusher
	clock        quartz.Clock
	location     *time.Location
	queryTimeout time.Duration
	metrics      *metrics.Metrics
	logger       logging.Logger
}

// NetworkOptions configures a NetworkSampler.
type NetworkOptions struct {
	Source       platform.ResolvedHostnameSource
	Exclusions   DomainExclusions
	Interval     time.Duration
	Store        BatchMerger
	Clock        quartz.Clock
	Location     *time.Location
	QueryTimeout time.Duration
	Metrics      *metrics.Metrics
	Logger       logging.Logger
}

// NewNetworkSampler creates a sampler with an empty buffer.
func NewNetworkSampler(opts NetworkOptions) *NetworkSampler {
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
	return &NetworkSampler{
		source:       opts.Source,
		exclusions:   opts.Exclusions,
		interval:     opts.Interval,
		buffer:       buffer,
		flusher:      NewFlusher(SamplerNetwork, types.EntityDomain, buffer, opts.Store, opts.Clock, opts.Location, opts.Metrics, opts.Logger),
		clock:        opts.Clock,
		location:     opts.Location,
		queryTimeout: opts.QueryTimeout,
		metrics:      opts.Metrics,
		logger:       opts.Logger,
	}
}

func (s *NetworkSampler) Name() string { return SamplerNetwork }

// Buffer exposes the sampler's accumulation buffer.
func (s *NetworkSampler) Buffer() *AccumulationBuffer { return s.buffer }

// Tick reads the resolver cache once and credits each distinct domain.
func (s *NetworkSampler) Tick(ctx context.Context) {
	s.tick(ctx)
}

// tick returns the domains it credited.
func (s *NetworkSampler) tick(ctx context.Context) []string {
	qctx, cancel := queryContext(ctx, s.queryTimeout)
	defer cancel()

	hosts, err := s.source.ResolvedHostnames(qctx)
	if err != nil {
		s.metrics.Tick(SamplerNetwork, metrics.ResultSkipped)
		s.logger.Debug("Hostname query failed", "error", err)
		return nil
	}

	var domains []string
	if hosts != nil {
		domains = lo.Uniq(lo.FilterMap(slices.Collect(hosts), func(h string, _ int) (string, bool) {
			d := NormalizeDomain(h)
			return d, d != "" && !s.exclusions.Excluded(d)
		}))
	}

	date := types.DayOf(s.clock.Now().In(s.location))
	for _, d := range domains {
		s.buffer.Add(date, d, s.interval)
	}

	s.metrics.Tick(SamplerNetwork, metrics.ResultOK)
	s.metrics.SetBufferEntries(SamplerNetwork, s.buffer.Len())
	return domains
}

// Flush persists the buffer.
func (s *NetworkSampler) Flush(ctx context.Context) error {
	_, err := s.flusher.Flush(ctx)
	return err
}
