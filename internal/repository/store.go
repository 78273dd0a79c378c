package repository

import (
	"context"
	"database/sql"
	"time"

	"actrack/internal/database"
	repoerrors "actrack/internal/infrastructure/errors"
	"actrack/internal/infrastructure/logging"
	"actrack/internal/types"

	"github.com/coder/quartz"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteRepository implements AggregateStore on top of the activity database.
type SQLiteRepository struct {
	db          *sql.DB
	q           dbtx
	inTx        bool
	retryConfig *repoerrors.RetryConfig
	clock       quartz.Clock
	location    *time.Location
	logger      logging.Logger
}

var _ AggregateStore = (*SQLiteRepository)(nil)

// NewSQLiteRepository creates a new SQLite repository instance
func NewSQLiteRepository(dbService database.Service, logger logging.Logger) *SQLiteRepository {
	return NewSQLiteRepositoryWithConfig(dbService, nil, nil, logger)
}

// NewSQLiteRepositoryWithConfig creates a repository with a custom retry
// policy and clock. Nil arguments fall back to defaults.
func NewSQLiteRepositoryWithConfig(dbService database.Service, retryConfig *repoerrors.RetryConfig, clock quartz.Clock, logger logging.Logger) *SQLiteRepository {
	if retryConfig == nil {
		retryConfig = repoerrors.DefaultRetryConfig()
	}
	if clock == nil {
		clock = quartz.NewReal()
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	db := dbService.DB()
	return &SQLiteRepository{
		db:          db,
		q:           db,
		retryConfig: retryConfig,
		clock:       clock,
		location:    time.Local,
		logger:      logger,
	}
}

// SetRetryConfig updates the retry configuration for the repository
func (r *SQLiteRepository) SetRetryConfig(config *repoerrors.RetryConfig) {
	if config != nil {
		r.retryConfig = config
	}
}

// SetLogger updates the logger for the repository
func (r *SQLiteRepository) SetLogger(logger logging.Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// SetLocation sets the zone whose calendar defines "today".
func (r *SQLiteRepository) SetLocation(loc *time.Location) {
	if loc != nil {
		r.location = loc
	}
}

// GetRetryConfig returns the current retry configuration
func (r *SQLiteRepository) GetRetryConfig() *repoerrors.RetryConfig {
	return r.retryConfig
}

// Today returns the current local calendar day.
func (r *SQLiteRepository) Today() string {
	return types.DayOf(r.clock.Now().In(r.location))
}

// HealthCheck pings the database and runs a trivial query, with retry.
func (r *SQLiteRepository) HealthCheck(ctx context.Context) error {
	start := r.clock.Now()

	err := repoerrors.WithRetryContext(ctx, r.retryConfig, func() error {
		if err := r.db.PingContext(ctx); err != nil {
			return r.wrapError("HealthCheck.Ping", err, nil)
		}
		var count int
		err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type='table'").Scan(&count)
		if err != nil {
			return r.wrapError("HealthCheck.Query", err, nil)
		}
		return nil
	}, "HealthCheck")

	if err == nil {
		logging.LogOperation(r.logger, "HealthCheck", r.clock.Since(start), nil)
	}
	return err
}
