package database

import (
	"context"
	"database/sql"
)

// Service abstracts connection management, migrations, and maintenance of
// the activity database.
type Service interface {
	// Connection management
	Connect(ctx context.Context, config *Config) error
	Close() error
	Health(ctx context.Context) error

	DB() *sql.DB

	// Migration management
	Migrate(ctx context.Context) error
	GetMigrationVersion(ctx context.Context) (int64, error)

	// Maintenance operations; Optimize runs from the retention sweeper
	Optimize(ctx context.Context) error
	GetStats() sql.DBStats
}

// MigrationManager brings a database file up to the activity schema.
// RunMigrations only succeeds once VerifySchema does.
type MigrationManager interface {
	RunMigrations(ctx context.Context) error
	GetCurrentVersion(ctx context.Context) (int64, error)
	ValidateMigrations() error
	VerifySchema(ctx context.Context) error
}
