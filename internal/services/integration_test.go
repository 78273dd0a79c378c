package services

import (
	"context"
	"testing"
	"time"

	"actrack/internal/database"
	repoerrors "actrack/internal/infrastructure/errors"
	"actrack/internal/infrastructure/logging"
	"actrack/internal/repository"
	"actrack/internal/types"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var noon = time.Date(2026, 10, 18, 12, 0, 0, 0, time.Local)

func setupStore(t *testing.T) (*repository.SQLiteRepository, *database.SQLiteService, *quartz.Mock) {
	t.Helper()

	dbService, err := database.Open(context.Background(), database.TestConfig(t.TempDir()), logging.Nop{})
	require.NoError(t, err)
	t.Cleanup(func() { dbService.Close() })

	clock := quartz.NewMock(t)
	clock.Set(noon)

	retry := repoerrors.DefaultRetryConfig()
	retry.InitialDelay = time.Millisecond
	retry.Jitter = false

	return repository.NewSQLiteRepositoryWithConfig(dbService, retry, clock, logging.Nop{}), dbService, clock
}

func TestIntegration_ForegroundFlushIntoStore(t *testing.T) {
	ctx := context.Background()
	store, _, clock := setupStore(t)
	fg := &fakeForeground{}

	s := NewForegroundSampler(ForegroundOptions{
		Observer: fg,
		Resolver: fg,
		Store:    store,
		Clock:    clock,
		Logger:   logging.Nop{},
	})

	fg.set("editor", nil)
	s.Tick(ctx)
	clock.Advance(5 * time.Second)
	require.NoError(t, s.Flush(ctx))

	clock.Advance(5 * time.Second)
	s.Tick(ctx)
	fg.set("browser", nil)
	clock.Advance(3 * time.Second)
	s.Tick(ctx)
	clock.Advance(2 * time.Second)
	require.NoError(t, s.Flush(ctx))

	got, err := store.QueryToday(ctx, types.EntityApplication)
	require.NoError(t, err)
	assert.Equal(t, []types.ActivityTotal{
		{Name: "editor", Seconds: 13},
		{Name: "browser", Seconds: 2},
	}, got)
}

func TestIntegration_NetworkFlushIntoStore(t *testing.T) {
	ctx := context.Background()
	store, _, clock := setupStore(t)

	s := NewNetworkSampler(NetworkOptions{
		Source:   &fakeHostnames{hosts: []string{"www.example.com", "cdn.github.com"}},
		Interval: 5 * time.Second,
		Store:    store,
		Clock:    clock,
		Logger:   logging.Nop{},
	})

	for range 3 {
		s.Tick(ctx)
		clock.Advance(5 * time.Second)
	}
	require.NoError(t, s.Flush(ctx))

	got, err := store.QueryToday(ctx, types.EntityDomain)
	require.NoError(t, err)
	assert.Equal(t, []types.ActivityTotal{
		{Name: "example.com", Seconds: 15},
		{Name: "github.com", Seconds: 15},
	}, got)

	apps, err := store.QueryToday(ctx, types.EntityApplication)
	require.NoError(t, err)
	assert.Empty(t, apps)
}

func TestIntegration_FailedMergeRetriesWithoutDoubleApply(t *testing.T) {
	ctx := context.Background()
	store, dbService, clock := setupStore(t)
	fg := &fakeForeground{}

	s := NewForegroundSampler(ForegroundOptions{
		Observer: fg,
		Resolver: fg,
		Store:    store,
		Clock:    clock,
		Logger:   logging.Nop{},
	})

	// "alpha" sorts first and merges before "poison" aborts the transaction
	fg.set("alpha", nil)
	s.Tick(ctx)
	clock.Advance(10 * time.Second)
	fg.set("poison", nil)
	s.Tick(ctx)
	clock.Advance(5 * time.Second)

	_, err := dbService.DB().ExecContext(ctx, `
		CREATE TRIGGER reject_poison BEFORE INSERT ON Applications
		WHEN NEW.Name = 'poison'
		BEGIN SELECT RAISE(ABORT, 'injected failure'); END`)
	require.NoError(t, err)

	require.Error(t, s.Flush(ctx))
	got, err := store.QueryToday(ctx, types.EntityApplication)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = dbService.DB().ExecContext(ctx, `DROP TRIGGER reject_poison`)
	require.NoError(t, err)

	require.NoError(t, s.Flush(ctx))
	got, err = store.QueryToday(ctx, types.EntityApplication)
	require.NoError(t, err)
	assert.Equal(t, []types.ActivityTotal{
		{Name: "alpha", Seconds: 10},
		{Name: "poison", Seconds: 5},
	}, got)
}
