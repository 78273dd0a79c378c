// Package app wires the store, the samplers, and the retention sweeper into
// one process lifecycle.
package app

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"time"

	"actrack/internal/config"
	"actrack/internal/database"
	"actrack/internal/infrastructure/errors"
	"actrack/internal/infrastructure/logging"
	"actrack/internal/infrastructure/metrics"
	"actrack/internal/platform"
	"actrack/internal/repository"
	"actrack/internal/services"
	"actrack/internal/types"

	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"
)

const (
	// healthCheckTimeout bounds the startup health probe.
	healthCheckTimeout = 5 * time.Second

	// closeTimeout bounds closing the database on shutdown.
	closeTimeout = 10 * time.Second
)

// Options injects collaborators. Nil fields are built from Config.
type Options struct {
	Config   *config.Config
	Logger   logging.Logger
	Platform *platform.Platform
	Clock    quartz.Clock
}

// App owns the store and everything that writes to it.
type App struct {
	cfg        *config.Config
	dbService  *database.SQLiteService
	repository *repository.SQLiteRepository
	metrics    *metrics.Metrics
	platform   *platform.Platform
	clock      quartz.Clock
	logger     logging.Logger
	logCloser  io.Closer
}

// New opens the store. Failing to open or migrate it is fatal: nothing can
// be recorded without it.
func New(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = quartz.NewReal()
	}

	logger := opts.Logger
	var logCloser io.Closer
	if logger == nil {
		fileLogger, closer, err := logging.NewFileLogger(cfg.LogFileOptions(), cfg.LogLevel())
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		logger, logCloser = fileLogger, closer
	}
	errors.SetRetryLogger(errors.NewLoggerBridge(logger))

	dbCfg, err := cfg.DatabaseConfig()
	if err != nil {
		closeQuietly(logCloser)
		return nil, err
	}

	dbService, err := database.Open(ctx, dbCfg, logger)
	if err != nil {
		closeQuietly(logCloser)
		return nil, errors.NewRepositoryErrorWithContext("startup",
			err,
			errors.ClassifyError(err),
			map[string]string{
				"operation": "open",
				"db_path":   dbCfg.Path,
			})
	}

	m := metrics.New()
	if err := m.RegisterDB(dbService.DB(), "activity"); err != nil {
		logger.Warn("Failed to register database metrics", "error", err)
	}

	p := opts.Platform
	if p == nil {
		p = platform.New(platform.Options{
			QueryTimeout:    cfg.Monitoring.QueryTimeout.Duration,
			HostnameCommand: cfg.Monitoring.HostnameCommand,
		})
	}

	return &App{
		cfg:        cfg,
		dbService:  dbService,
		repository: repository.NewSQLiteRepositoryWithConfig(dbService, nil, clock, logger),
		metrics:    m,
		platform:   p,
		clock:      clock,
		logger:     logger,
		logCloser:  logCloser,
	}, nil
}

// Store exposes the aggregate store for the query commands.
func (a *App) Store() repository.AggregateStore { return a.repository }

// Metrics exposes the collectors.
func (a *App) Metrics() *metrics.Metrics { return a.metrics }

// Logger returns the application's structured logger.
func (a *App) Logger() logging.Logger { return a.logger }

// Run samples until ctx is done. Each sampler flushes one last time before
// Run returns; Run only returns after those flushes complete.
func (a *App) Run(ctx context.Context) error {
	if err := a.initializeDatabase(ctx); err != nil {
		return err
	}

	sweeper := services.NewRetentionSweeper(services.SweeperOptions{
		Store:          a.repository,
		Optimizer:      a.dbService,
		RetentionDays:  a.dbService.Config().RetentionDays,
		Interval:       a.dbService.Config().CleanupInterval,
		VacuumInterval: a.dbService.Config().VacuumInterval,
		Clock:          a.clock,
		Metrics:        a.metrics,
		Logger:         a.logger,
	})
	// a failed startup sweep is logged by the sweeper and retried on schedule
	_, _ = sweeper.Sweep(ctx)

	loops := a.buildLoops(ctx)
	if len(loops) == 0 {
		return fmt.Errorf("no sampler is supported on this platform")
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, loop := range loops {
		g.Go(func() error { return loop.Run(gctx) })
	}
	g.Go(func() error { return sweeper.Run(gctx) })
	if addr := a.cfg.Metrics.ListenAddr; addr != "" {
		g.Go(func() error { return a.serveMetrics(gctx, addr) })
	}

	a.logger.Info("Activity tracking started", "samplers", len(loops))
	err := g.Wait()
	a.logger.Info("Activity tracking stopped")
	return err
}

// serveMetrics runs the optional /metrics listener. A listener failure is
// logged and leaves sampling running.
func (a *App) serveMetrics(ctx context.Context, addr string) error {
	if err := a.metrics.Serve(ctx, addr, a.logger); err != nil {
		a.logger.Error("Metrics server stopped", "addr", addr, "error", err)
	}
	return nil
}

// buildLoops returns a loop per sampler the platform supports.
func (a *App) buildLoops(ctx context.Context) []*services.Loop {
	mon := a.cfg.Monitoring
	var loops []*services.Loop

	if a.supported(ctx, services.SamplerForeground, func(ctx context.Context) error {
		_, err := a.platform.Foreground.ForegroundProcess(ctx)
		return err
	}) {
		fg := services.NewForegroundSampler(services.ForegroundOptions{
			Observer:     a.platform.Foreground,
			Resolver:     a.platform.Resolver,
			Exclusions:   services.NewProcessExclusions(a.cfg.SystemProcesses),
			Store:        a.repository,
			Clock:        a.clock,
			QueryTimeout: mon.QueryTimeout.Duration,
			Metrics:      a.metrics,
			Logger:       a.logger,
		})
		loops = append(loops, services.NewLoop(fg, mon.ProcessCheckInterval.Duration, mon.DataSaveInterval.Duration, a.clock, a.logger))
	}

	if a.supported(ctx, services.SamplerNetwork, func(ctx context.Context) error {
		_, err := a.platform.Hostnames.ResolvedHostnames(ctx)
		return err
	}) {
		ns := services.NewNetworkSampler(services.NetworkOptions{
			Source:       a.platform.Hostnames,
			Exclusions:   services.NewDomainExclusions(a.cfg.SystemDomains),
			Interval:     mon.NetworkCheckInterval.Duration,
			Store:        a.repository,
			Clock:        a.clock,
			QueryTimeout: mon.QueryTimeout.Duration,
			Metrics:      a.metrics,
			Logger:       a.logger,
		})
		loops = append(loops, services.NewLoop(ns, mon.NetworkCheckInterval.Duration, mon.DataSaveInterval.Duration, a.clock, a.logger))
	}

	return loops
}

// supported probes a capability once. Only ErrUnsupported disables a
// sampler; transient failures are left to the per-tick handling.
func (a *App) supported(ctx context.Context, sampler string, probe func(context.Context) error) bool {
	probeCtx, cancel := context.WithTimeout(ctx, a.cfg.Monitoring.QueryTimeout.Duration)
	defer cancel()

	if err := probe(probeCtx); stderrors.Is(err, platform.ErrUnsupported) {
		a.logger.Warn("Sampler disabled", "sampler", sampler, "reason", err.Error())
		return false
	}
	return true
}

// initializeDatabase checks the store is usable before sampling starts.
func (a *App) initializeDatabase(ctx context.Context) error {
	healthCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	if err := a.dbService.Health(healthCtx); err != nil {
		return errors.NewRepositoryErrorWithContext("startup",
			err,
			errors.ClassifyError(err),
			map[string]string{
				"operation": "health_check",
			})
	}

	if version, err := a.dbService.GetMigrationVersion(ctx); err == nil {
		a.logger.Debug("Database ready", "schema_version", version)
	}
	return nil
}

// Report returns ordered totals for kind on date; an empty date means today.
func (a *App) Report(ctx context.Context, kind types.EntityKind, date string) ([]types.ActivityTotal, error) {
	if date == "" {
		return a.repository.QueryToday(ctx, kind)
	}
	return a.repository.QueryDay(ctx, kind, date)
}

// ReportRange returns totals for kind summed over [from, to].
func (a *App) ReportRange(ctx context.Context, kind types.EntityKind, from, to string) ([]types.ActivityTotal, error) {
	return a.repository.QueryRange(ctx, kind, from, to)
}

// Record credits seconds directly, bypassing the samplers.
func (a *App) Record(ctx context.Context, appName, domainName string, seconds int64, date string) error {
	return a.repository.RecordActivity(ctx, appName, domainName, seconds, date)
}

// Cleanup runs one retention sweep. days < 0 uses the configured window.
func (a *App) Cleanup(ctx context.Context, days int) (int64, error) {
	if days < 0 {
		days = a.dbService.Config().RetentionDays
	}
	return a.repository.Cleanup(ctx, days)
}

// GetConfig reads a persisted configuration value.
func (a *App) GetConfig(ctx context.Context, key string) (string, error) {
	return a.repository.GetConfig(ctx, key)
}

// SetConfig writes a persisted configuration value.
func (a *App) SetConfig(ctx context.Context, key, value string) error {
	return a.repository.SetConfig(ctx, key, value)
}

// Close closes the database and the log file. Safe to call once Run has
// returned.
func (a *App) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	err := a.closeDatabaseConnection(ctx)
	if err != nil {
		a.logger.Error("Error during database closure", "error", err)
	}
	errors.SetRetryLogger(nil)
	closeQuietly(a.logCloser)
	return err
}

// closeDatabaseConnection closes the database, giving up after ctx expires.
func (a *App) closeDatabaseConnection(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- a.dbService.Close() }()

	select {
	case err := <-done:
		if err != nil {
			return errors.NewRepositoryErrorWithContext("shutdown",
				err,
				errors.ClassifyError(err),
				map[string]string{
					"operation": "close_connection",
				})
		}
		a.logger.Debug("Database connection closed")
		return nil
	case <-ctx.Done():
		return errors.NewRepositoryError("shutdown", ctx.Err(), errors.ErrCodeTimeout)
	}
}

func closeQuietly(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}
