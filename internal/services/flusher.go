package services

import (
	"context"
	"time"

	"actrack/internal/infrastructure/logging"
	"actrack/internal/infrastructure/metrics"
	"actrack/internal/types"

	"github.com/coder/quartz"
	"github.com/samber/lo"
)

// BatchMerger is the part of the aggregate store a flush needs.
type BatchMerger interface {
	MergeBatch(ctx context.Context, kind types.EntityKind, credits []types.Credit) error
}

// Flusher merges one sampler's buffer into the store. The buffer is only
// drained after the whole batch commits; a failed flush leaves it intact for
// the next attempt. Days before today are settled by each successful flush.
type Flusher struct {
	sampler  string
	kind     types.EntityKind
	buffer   *AccumulationBuffer
	store    BatchMerger
	clock    quartz.Clock
	location *time.Location
	metrics  *metrics.Metrics
	logger   logging.Logger
}

// NewFlusher creates a flusher for sampler's buffer.
func NewFlusher(sampler string, kind types.EntityKind, buffer *AccumulationBuffer, store BatchMerger, clock quartz.Clock, loc *time.Location, m *metrics.Metrics, logger logging.Logger) *Flusher {
	if clock == nil {
		clock = quartz.NewReal()
	}
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Flusher{
		sampler:  sampler,
		kind:     kind,
		buffer:   buffer,
		store:    store,
		clock:    clock,
		location: loc,
		metrics:  m,
		logger:   logger,
	}
}

// Flush merges the current snapshot and returns the seconds it persisted.
func (f *Flusher) Flush(ctx context.Context) (int64, error) {
	start := time.Now()
	today := types.DayOf(f.clock.Now().In(f.location))
	snapshot := f.buffer.Snapshot(today)
	if len(snapshot) == 0 {
		f.buffer.Settle(today)
		f.metrics.Flush(f.sampler, metrics.ResultSkipped, 0)
		return 0, nil
	}

	if err := f.store.MergeBatch(ctx, f.kind, snapshot); err != nil {
		f.metrics.Flush(f.sampler, metrics.ResultError, 0)
		logging.LogError(f.logger, err, "Flush", map[string]any{
			"sampler": f.sampler,
			"entries": len(snapshot),
		})
		return 0, err
	}

	f.buffer.Subtract(snapshot)
	f.buffer.Settle(today)
	total := lo.SumBy(snapshot, func(c types.Credit) int64 { return c.Seconds })

	f.metrics.Flush(f.sampler, metrics.ResultOK, total)
	f.metrics.SetBufferEntries(f.sampler, f.buffer.Len())
	logging.LogOperation(f.logger, "Flush", time.Since(start), map[string]any{
		"sampler": f.sampler,
		"entries": len(snapshot),
		"seconds": total,
	})
	return total, nil
}
