package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sync"

	"actrack/internal/infrastructure/logging"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// goose.SetDialect and goose.SetBaseFS mutate package globals, so they are
// applied exactly once no matter how many runners exist.
var (
	gooseConfigOnce sync.Once
	gooseConfigErr  error
)

// SentinelID and SentinelName identify the placeholder row in Applications
// and Domains that fills the unused side of every DailyAggregate row.
const (
	SentinelID   int64 = -1
	SentinelName       = "(none)"
)

// entityTables hold the deduplicated names a DailyAggregate row points at.
var entityTables = []string{"Applications", "Domains"}

// ErrSchemaIncomplete is returned when a migrated database is missing
// a sentinel row the aggregate store depends on.
var ErrSchemaIncomplete = errors.New("activity schema incomplete")

// MigrationRunner applies the embedded goose migrations.
type MigrationRunner struct {
	db     *sql.DB
	logger logging.Logger
}

var _ MigrationManager = (*MigrationRunner)(nil)

// NewMigrationRunner creates a new migration runner
func NewMigrationRunner(db *sql.DB, logger logging.Logger) *MigrationRunner {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	gooseConfigOnce.Do(func() {
		gooseConfigErr = configureGoose()
	})

	return &MigrationRunner{
		db:     db,
		logger: logger,
	}
}

func configureGoose() error {
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())
	return nil
}

// RunMigrations executes all pending migrations using embedded files
func (mr *MigrationRunner) RunMigrations(ctx context.Context) error {
	if mr.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	if gooseConfigErr != nil {
		return fmt.Errorf("goose configuration failed: %w", gooseConfigErr)
	}

	mr.logger.Debug("Running database migrations from embedded filesystem")

	if err := goose.UpContext(ctx, mr.db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if version, err := goose.GetDBVersionContext(ctx, mr.db); err == nil {
		mr.logger.Info("Database migrated to version", "version", version)
	}

	return mr.VerifySchema(ctx)
}

// VerifySchema checks that both entity tables carry the sentinel row.
// Aggregate rows default to SentinelID, so a missing or renamed sentinel
// would let the "(none)" side of a row show up in reports.
func (mr *MigrationRunner) VerifySchema(ctx context.Context) error {
	if mr.db == nil {
		return fmt.Errorf("database connection is nil")
	}

	for _, table := range entityTables {
		var name string
		err := mr.db.QueryRowContext(ctx, "SELECT Name FROM "+table+" WHERE Id = ?", SentinelID).Scan(&name)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("%w: %s has no sentinel row", ErrSchemaIncomplete, table)
		case err != nil:
			return fmt.Errorf("failed to read %s sentinel: %w", table, err)
		case name != SentinelName:
			return fmt.Errorf("%w: %s sentinel is named %q", ErrSchemaIncomplete, table, name)
		}
	}
	return nil
}

// GetCurrentVersion returns the current migration version
func (mr *MigrationRunner) GetCurrentVersion(ctx context.Context) (int64, error) {
	if mr.db == nil {
		return 0, fmt.Errorf("database connection is nil")
	}
	if gooseConfigErr != nil {
		return 0, fmt.Errorf("goose configuration failed: %w", gooseConfigErr)
	}

	version, err := goose.GetDBVersionContext(ctx, mr.db)
	if err != nil {
		return 0, fmt.Errorf("failed to get version: %w", err)
	}
	return version, nil
}

// ValidateMigrations checks that the embedded migration set is non-empty and parseable.
func (mr *MigrationRunner) ValidateMigrations() error {
	if gooseConfigErr != nil {
		return fmt.Errorf("goose configuration failed: %w", gooseConfigErr)
	}

	migrations, err := goose.CollectMigrations("migrations", 0, goose.MaxVersion)
	if err != nil {
		return fmt.Errorf("failed to collect migrations: %w", err)
	}
	if len(migrations) == 0 {
		return fmt.Errorf("no migrations found in embedded filesystem")
	}

	mr.logger.Debug("Found valid migrations in embedded filesystem", "count", len(migrations))
	return nil
}
