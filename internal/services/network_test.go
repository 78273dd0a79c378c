package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"actrack/internal/infrastructure/logging"
	"actrack/internal/infrastructure/metrics"
	"actrack/internal/types"

	"github.com/coder/quartz"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNetworkSampler(t *testing.T, source *fakeHostnames, store *fakeStore, m *metrics.Metrics) *NetworkSampler {
	t.Helper()
	clock := quartz.NewMock(t)
	clock.Set(morning)

	return NewNetworkSampler(NetworkOptions{
		Source:       source,
		Exclusions:   NewDomainExclusions([]string{"microsoft", "arpa"}),
		Interval:     5 * time.Second,
		Store:        store,
		Clock:        clock,
		Location:     testZone,
		QueryTimeout: time.Second,
		Metrics:      m,
		Logger:       logging.Nop{},
	})
}

func TestNetworkSampler_CreditsDistinctDomains(t *testing.T) {
	source := &fakeHostnames{hosts: []string{
		"www.example.com",
		"api.example.com",
		"telemetry.microsoft.com",
		"1.0.0.127.in-addr.arpa",
		"localhost",
		"github.com",
		"",
	}}
	store := newFakeStore()
	s := newTestNetworkSampler(t, source, store, metrics.New())

	got := s.tick(context.Background())
	assert.Equal(t, []string{"example.com", "localhost", "github.com"}, got)

	s.Tick(context.Background())
	require.NoError(t, s.Flush(context.Background()))

	assert.Equal(t, int64(10), store.seconds(types.EntityDomain, day, "example.com"))
	assert.Equal(t, int64(10), store.seconds(types.EntityDomain, day, "localhost"))
	assert.Equal(t, int64(10), store.seconds(types.EntityDomain, day, "github.com"))
	assert.Equal(t, int64(0), store.seconds(types.EntityDomain, day, "microsoft.com"))
	assert.Equal(t, int64(0), store.sum(types.EntityApplication))
}

func TestNetworkSampler_FailedQuerySkipsTick(t *testing.T) {
	m := metrics.New()
	s := newTestNetworkSampler(t, &fakeHostnames{err: errors.New("spawn failed")}, newFakeStore(), m)

	s.Tick(context.Background())

	assert.Equal(t, 0, s.Buffer().Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SamplerTicks.WithLabelValues(SamplerNetwork, metrics.ResultSkipped)))
}

func TestNetworkSampler_EmptyCache(t *testing.T) {
	store := newFakeStore()
	s := newTestNetworkSampler(t, &fakeHostnames{}, store, nil)

	s.Tick(context.Background())
	require.NoError(t, s.Flush(context.Background()))

	assert.Equal(t, 0, store.batches)
}

func TestNetworkSampler_FailedFlushRetriesWholeSnapshot(t *testing.T) {
	store := newFakeStore()
	s := newTestNetworkSampler(t, &fakeHostnames{hosts: []string{"example.com"}}, store, nil)

	s.Tick(context.Background())
	store.failTimes(1)
	require.Error(t, s.Flush(context.Background()))

	s.Tick(context.Background())
	require.NoError(t, s.Flush(context.Background()))

	assert.Equal(t, int64(10), store.seconds(types.EntityDomain, day, "example.com"))
	assert.Equal(t, 2, store.batches)
}
