package services

import (
	"context"
	"errors"
	"iter"
	"slices"
	"sync"
	"testing"
	"time"

	"actrack/internal/platform"
	"actrack/internal/types"
)

var errStoreDown = errors.New("store unavailable")

// fakeStore is an in-memory BatchMerger and RetentionStore.
type fakeStore struct {
	mu       sync.Mutex
	totals   map[types.EntityKind]map[string]int64 // "date|name" -> seconds
	batches  int
	failNext int
	onMerge  func()

	cleanups  int
	deleted   int64
	cleanErr  error
	cleanedCh chan int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		totals: map[types.EntityKind]map[string]int64{
			types.EntityApplication: {},
			types.EntityDomain:      {},
		},
		cleanedCh: make(chan int, 16),
	}
}

func (f *fakeStore) MergeBatch(_ context.Context, kind types.EntityKind, credits []types.Credit) error {
	if f.onMerge != nil {
		f.onMerge()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches++
	if f.failNext > 0 {
		f.failNext--
		return errStoreDown
	}
	for _, c := range credits {
		f.totals[kind][c.Date+"|"+c.Name] += c.Seconds
	}
	return nil
}

func (f *fakeStore) Cleanup(_ context.Context, retentionDays int) (int64, error) {
	f.mu.Lock()
	f.cleanups++
	n, err := f.deleted, f.cleanErr
	f.mu.Unlock()
	f.cleanedCh <- retentionDays
	return n, err
}

func (f *fakeStore) seconds(kind types.EntityKind, date, name string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.totals[kind][date+"|"+name]
}

func (f *fakeStore) sum(kind types.EntityKind) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var total int64
	for _, s := range f.totals[kind] {
		total += s
	}
	return total
}

func (f *fakeStore) failTimes(n int) {
	f.mu.Lock()
	f.failNext = n
	f.mu.Unlock()
}

// fakeForeground scripts the foreground owner. It is both observer and
// resolver.
type fakeForeground struct {
	mu   sync.Mutex
	name string
	err  error
}

func (f *fakeForeground) set(name string, err error) {
	f.mu.Lock()
	f.name, f.err = name, err
	f.mu.Unlock()
}

func (f *fakeForeground) ForegroundProcess(context.Context) (platform.ProcessRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return platform.ProcessRef{}, f.err
	}
	return platform.ProcessRef{PID: 42}, nil
}

func (f *fakeForeground) ProcessName(context.Context, platform.ProcessRef) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.name, nil
}

// fakeHostnames returns a fixed list of hostnames or an error.
type fakeHostnames struct {
	hosts []string
	err   error
}

func (f *fakeHostnames) ResolvedHostnames(context.Context) (iter.Seq[string], error) {
	if f.err != nil {
		return nil, f.err
	}
	return slices.Values(f.hosts), nil
}

// recordingSampler reports Tick and Flush calls on channels.
type recordingSampler struct {
	ticks    chan struct{}
	flushes  chan struct{}
	flushErr error
}

func newRecordingSampler() *recordingSampler {
	return &recordingSampler{
		ticks:   make(chan struct{}, 16),
		flushes: make(chan struct{}, 16),
	}
}

func (r *recordingSampler) Name() string { return "recording" }

func (r *recordingSampler) Tick(context.Context) { r.ticks <- struct{}{} }

func (r *recordingSampler) Flush(context.Context) error {
	r.flushes <- struct{}{}
	return r.flushErr
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func receive(ctx context.Context, t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-ctx.Done():
		t.Fatal("timed out waiting for signal")
	}
}
