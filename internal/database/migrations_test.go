package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"actrack/internal/infrastructure/logging"

	_ "github.com/mattn/go-sqlite3"
)

func openRawDB(t *testing.T) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "migrations.db")
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrationRunner_RunMigrations(t *testing.T) {
	db := openRawDB(t)
	runner := NewMigrationRunner(db, logging.Nop{})
	ctx := context.Background()

	if err := runner.RunMigrations(ctx); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	for _, table := range []string{"Applications", "Domains", "DailyAggregate", "Configuration", "goose_db_version"} {
		var count int
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
			t.Errorf("Table %s was not created: %v", table, err)
		}
	}

	// Sentinel rows
	for _, table := range []string{"Applications", "Domains"} {
		var name string
		if err := db.QueryRowContext(ctx, "SELECT Name FROM "+table+" WHERE Id = -1").Scan(&name); err != nil {
			t.Fatalf("sentinel row missing from %s: %v", table, err)
		}
		if name != "(none)" {
			t.Errorf("%s sentinel name = %q", table, name)
		}
	}
}

func TestMigrationRunner_SchemaDefaults(t *testing.T) {
	db := openRawDB(t)
	ctx := context.Background()
	if err := NewMigrationRunner(db, nil).RunMigrations(ctx); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	if _, err := db.ExecContext(ctx, "INSERT INTO DailyAggregate (Date) VALUES ('2026-10-18')"); err != nil {
		t.Fatalf("insert with defaults failed: %v", err)
	}
	var appID, domainID, seconds int64
	err := db.QueryRowContext(ctx, "SELECT AppId, DomainId, Seconds FROM DailyAggregate").Scan(&appID, &domainID, &seconds)
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if appID != -1 || domainID != -1 || seconds != 0 {
		t.Errorf("defaults = %d/%d/%d, want -1/-1/0", appID, domainID, seconds)
	}

	if _, err := db.ExecContext(ctx, "INSERT INTO DailyAggregate (Date) VALUES ('2026-10-18')"); err == nil {
		t.Error("expected UNIQUE(Date, AppId, DomainId) violation")
	}
}

func TestMigrationRunner_VerifySchema(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		damage string
	}{
		{"missing application sentinel", "DELETE FROM Applications WHERE Id = -1"},
		{"missing domain sentinel", "DELETE FROM Domains WHERE Id = -1"},
		{"renamed sentinel", "UPDATE Applications SET Name = 'system' WHERE Id = -1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := openRawDB(t)
			runner := NewMigrationRunner(db, logging.Nop{})
			if err := runner.RunMigrations(ctx); err != nil {
				t.Fatalf("Failed to run migrations: %v", err)
			}
			if err := runner.VerifySchema(ctx); err != nil {
				t.Fatalf("fresh schema should verify: %v", err)
			}

			if _, err := db.ExecContext(ctx, tt.damage); err != nil {
				t.Fatalf("damage failed: %v", err)
			}
			if err := runner.VerifySchema(ctx); !errors.Is(err, ErrSchemaIncomplete) {
				t.Errorf("VerifySchema() = %v, want ErrSchemaIncomplete", err)
			}
			// goose sees nothing pending, so the rerun fails on verification
			if err := runner.RunMigrations(ctx); !errors.Is(err, ErrSchemaIncomplete) {
				t.Errorf("RunMigrations() = %v, want ErrSchemaIncomplete", err)
			}
		})
	}
}

func TestMigrationRunner_RunMigrations_NilDB(t *testing.T) {
	runner := NewMigrationRunner(nil, logging.Nop{})

	err := runner.RunMigrations(context.Background())
	if err == nil {
		t.Fatal("Expected error for nil database, got nil")
	}
	if err.Error() != "database connection is nil" {
		t.Errorf("unexpected error message %q", err.Error())
	}

	if _, err := runner.GetCurrentVersion(context.Background()); err == nil {
		t.Error("Expected error from GetCurrentVersion with nil database")
	}
}

func TestMigrationRunner_RunMigrations_Cancelled(t *testing.T) {
	db := openRawDB(t)
	runner := NewMigrationRunner(db, logging.Nop{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := runner.RunMigrations(ctx); err == nil {
		t.Error("Expected error for cancelled context")
	}
}

func TestMigrationRunner_VersionAndIdempotence(t *testing.T) {
	db := openRawDB(t)
	runner := NewMigrationRunner(db, logging.Nop{})
	ctx := context.Background()

	for range 2 {
		if err := runner.RunMigrations(ctx); err != nil {
			t.Fatalf("RunMigrations failed: %v", err)
		}
	}

	version, err := runner.GetCurrentVersion(ctx)
	if err != nil {
		t.Fatalf("GetCurrentVersion failed: %v", err)
	}
	if version != 1 {
		t.Errorf("version = %d, want 1", version)
	}

	var sentinels int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM Applications WHERE Id = -1").Scan(&sentinels); err != nil {
		t.Fatal(err)
	}
	if sentinels != 1 {
		t.Errorf("sentinel inserted %d times", sentinels)
	}
}

func TestMigrationRunner_ValidateMigrations(t *testing.T) {
	if err := NewMigrationRunner(nil, logging.Nop{}).ValidateMigrations(); err != nil {
		t.Fatalf("embedded migrations should validate: %v", err)
	}
}

func TestMigrationRunner_ConcurrentConstruction(t *testing.T) {
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = NewMigrationRunner(nil, logging.Nop{})
		}()
	}
	wg.Wait()
	if gooseConfigErr != nil {
		t.Fatalf("goose configuration failed: %v", gooseConfigErr)
	}
}
