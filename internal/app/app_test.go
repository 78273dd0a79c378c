package app

import (
	"context"
	"iter"
	"net"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"actrack/internal/config"
	"actrack/internal/infrastructure/errors"
	"actrack/internal/infrastructure/logging"
	"actrack/internal/platform"
	"actrack/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticForeground struct{ name string }

func (s staticForeground) ForegroundProcess(context.Context) (platform.ProcessRef, error) {
	return platform.ProcessRef{PID: 7}, nil
}

func (s staticForeground) ProcessName(context.Context, platform.ProcessRef) (string, error) {
	return s.name, nil
}

type staticHostnames []string

func (h staticHostnames) ResolvedHostnames(context.Context) (iter.Seq[string], error) {
	return slices.Values([]string(h)), nil
}

type unsupported struct{}

func (unsupported) ForegroundProcess(context.Context) (platform.ProcessRef, error) {
	return platform.ProcessRef{}, platform.ErrUnsupported
}

func (unsupported) ProcessName(context.Context, platform.ProcessRef) (string, error) {
	return "", platform.ErrUnsupported
}

func (unsupported) ResolvedHostnames(context.Context) (iter.Seq[string], error) {
	return nil, platform.ErrUnsupported
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "activity.db")
	cfg.Monitoring.ProcessCheckInterval = config.Duration{Duration: 10 * time.Millisecond}
	cfg.Monitoring.NetworkCheckInterval = config.Duration{Duration: 100 * time.Millisecond}
	cfg.Monitoring.DataSaveInterval = config.Duration{Duration: time.Hour}
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config, p *platform.Platform) *App {
	t.Helper()
	a, err := New(context.Background(), Options{Config: cfg, Logger: logging.Nop{}, Platform: p})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestNew_UnopenableStoreIsFatal(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	cfg := testConfig(t)
	cfg.Database.Path = filepath.Join(blocker, "activity.db")

	_, err := New(context.Background(), Options{Config: cfg, Logger: logging.Nop{}})
	require.Error(t, err)
}

func TestApp_QuerySurface(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, testConfig(t), &platform.Platform{})
	earlier := types.DayOf(time.Now().AddDate(0, 0, -3))

	require.NoError(t, a.Record(ctx, "editor", "", 120, ""))
	require.NoError(t, a.Record(ctx, "browser", "example.com", 300, ""))
	require.NoError(t, a.Record(ctx, "editor", "", 60, earlier))

	apps, err := a.Report(ctx, types.EntityApplication, "")
	require.NoError(t, err)
	assert.Equal(t, []types.ActivityTotal{
		{Name: "browser", Seconds: 300},
		{Name: "editor", Seconds: 120},
	}, apps)

	domains, err := a.Report(ctx, types.EntityDomain, "")
	require.NoError(t, err)
	assert.Equal(t, []types.ActivityTotal{{Name: "example.com", Seconds: 300}}, domains)

	old, err := a.Report(ctx, types.EntityApplication, earlier)
	require.NoError(t, err)
	assert.Equal(t, []types.ActivityTotal{{Name: "editor", Seconds: 60}}, old)

	ranged, err := a.ReportRange(ctx, types.EntityApplication, earlier, types.DayOf(time.Now()))
	require.NoError(t, err)
	assert.Equal(t, []types.ActivityTotal{
		{Name: "browser", Seconds: 300},
		{Name: "editor", Seconds: 180},
	}, ranged)

	_, err = a.GetConfig(ctx, "ReportTime")
	assert.True(t, errors.IsNotFound(err))
	require.NoError(t, a.SetConfig(ctx, "ReportTime", "21:00"))
	v, err := a.GetConfig(ctx, "ReportTime")
	require.NoError(t, err)
	assert.Equal(t, "21:00", v)
}

func TestApp_Cleanup(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, testConfig(t), &platform.Platform{})

	old := types.DayOf(time.Now().AddDate(0, 0, -30))
	require.NoError(t, a.Record(ctx, "editor", "", 60, old))
	require.NoError(t, a.Record(ctx, "editor", "", 60, ""))

	deleted, err := a.Cleanup(ctx, -1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	today, err := a.Report(ctx, types.EntityApplication, "")
	require.NoError(t, err)
	assert.Len(t, today, 1)
}

func TestApp_RunWithoutSupportedSamplers(t *testing.T) {
	a := newTestApp(t, testConfig(t), &platform.Platform{
		Foreground: unsupported{},
		Resolver:   unsupported{},
		Hostnames:  unsupported{},
	})

	err := a.Run(context.Background())
	require.Error(t, err)
}

func TestApp_RunFlushesOnShutdown(t *testing.T) {
	fg := staticForeground{name: "editor"}
	a := newTestApp(t, testConfig(t), &platform.Platform{
		Foreground: fg,
		Resolver:   fg,
		Hostnames:  staticHostnames{"www.example.com"},
	})

	old := types.DayOf(time.Now().AddDate(0, 0, -30))
	require.NoError(t, a.Record(context.Background(), "stale", "", 60, old))

	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()
	require.NoError(t, a.Run(ctx))

	apps, err := a.Report(context.Background(), types.EntityApplication, "")
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, "editor", apps[0].Name)
	assert.GreaterOrEqual(t, apps[0].Seconds, int64(1))

	domains, err := a.Report(context.Background(), types.EntityDomain, "")
	require.NoError(t, err)
	require.Len(t, domains, 1)
	assert.Equal(t, "example.com", domains[0].Name)

	stale, err := a.Report(context.Background(), types.EntityApplication, old)
	require.NoError(t, err)
	assert.Empty(t, stale, "startup sweep should have removed rows past retention")
}

func TestApp_RunSurvivesMetricsBindFailure(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	cfg := testConfig(t)
	cfg.Metrics.ListenAddr = taken.Addr().String()

	fg := staticForeground{name: "editor"}
	a := newTestApp(t, cfg, &platform.Platform{
		Foreground: fg,
		Resolver:   fg,
		Hostnames:  staticHostnames{"www.example.com"},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()
	start := time.Now()
	require.NoError(t, a.Run(ctx))
	assert.GreaterOrEqual(t, time.Since(start), time.Second, "sampling stopped before shutdown")

	apps, err := a.Report(context.Background(), types.EntityApplication, "")
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.GreaterOrEqual(t, apps[0].Seconds, int64(1))
}
