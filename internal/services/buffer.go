package services

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"actrack/internal/types"

	"github.com/samber/lo"
)

type bufferKey struct {
	date string
	name string
}

// AccumulationBuffer holds time owed to entities since the last successful
// flush, keyed by local date and entity name. Safe for concurrent use.
type AccumulationBuffer struct {
	mu      sync.Mutex
	entries map[bufferKey]time.Duration
}

// NewAccumulationBuffer creates an empty buffer.
func NewAccumulationBuffer() *AccumulationBuffer {
	return &AccumulationBuffer{entries: make(map[bufferKey]time.Duration)}
}

// Add credits d to name on date. Non-positive durations and empty names are
// ignored.
func (b *AccumulationBuffer) Add(date, name string, d time.Duration) {
	if d <= 0 || name == "" || date == "" {
		return
	}
	b.mu.Lock()
	b.entries[bufferKey{date: date, name: name}] += d
	b.mu.Unlock()
}

// Snapshot returns the whole seconds currently owed, ordered by date then
// name. The buffer is not modified. Entries dated before settledBefore are
// rounded to the nearest second since no more time can reach them; later
// entries leave their sub-second remainder out. An empty settledBefore
// rounds nothing.
func (b *AccumulationBuffer) Snapshot(settledBefore string) []types.Credit {
	b.mu.Lock()
	credits := make([]types.Credit, 0, len(b.entries))
	for k, d := range b.entries {
		if settledBefore != "" && k.date < settledBefore {
			d = d.Round(time.Second)
		}
		if secs := int64(d / time.Second); secs > 0 {
			credits = append(credits, types.Credit{Date: k.date, Name: k.name, Seconds: secs})
		}
	}
	b.mu.Unlock()

	slices.SortFunc(credits, func(a, c types.Credit) int {
		return cmp.Or(cmp.Compare(a.Date, c.Date), cmp.Compare(a.Name, c.Name))
	})
	return credits
}

// Subtract removes credits that were durably merged. Time added after the
// snapshot was taken survives; drained entries are dropped.
func (b *AccumulationBuffer) Subtract(credits []types.Credit) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, c := range credits {
		k := bufferKey{date: c.Date, name: c.Name}
		left := b.entries[k] - time.Duration(c.Seconds)*time.Second
		if left <= 0 {
			delete(b.entries, k)
			continue
		}
		b.entries[k] = left
	}
}

// Settle drops entries dated before the given day that hold less than a
// second. Call it only after the whole seconds for those days have committed.
// It returns the number of entries dropped.
func (b *AccumulationBuffer) Settle(before string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	dropped := 0
	for k, d := range b.entries {
		if k.date < before && d < time.Second {
			delete(b.entries, k)
			dropped++
		}
	}
	return dropped
}

// Pending returns what is owed to name on date.
func (b *AccumulationBuffer) Pending(date, name string) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.entries[bufferKey{date: date, name: name}]
}

// Total returns the sum of everything owed.
func (b *AccumulationBuffer) Total() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return lo.Sum(lo.Values(b.entries))
}

// Len returns the number of (date, name) entries.
func (b *AccumulationBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}
