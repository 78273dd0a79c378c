package database

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// parseBoolEnv reads an environment variable and parses it as a boolean.
// Returns the parsed value and a boolean indicating if the variable was present.
// Supports true/false, 1/0, yes/no, on/off, t/f, y/n (case-insensitive).
func parseBoolEnv(key string) (bool, bool) {
	value := os.Getenv(key)
	if value == "" {
		return false, false
	}

	if parsed, err := strconv.ParseBool(value); err == nil {
		return parsed, true
	}

	switch strings.ToLower(value) {
	case "yes", "y", "on":
		return true, true
	case "no", "n", "off":
		return false, true
	default:
		return false, false
	}
}

// Config holds all database configuration options
type Config struct {
	// Connection settings
	Path                  string        // Database file path
	MaxConnections        int           // Maximum number of open connections
	MaxIdleConns          int           // Maximum number of idle connections
	ConnMaxLifetime       time.Duration // Maximum connection lifetime
	ConnMaxIdleTime       time.Duration // Maximum connection idle time
	ForceSingleConnection bool          // Force single connection mode

	AutoMigrate bool // Run embedded migrations on Connect

	// Performance settings
	JournalMode     string // SQLite journal mode (WAL, DELETE, etc.)
	SynchronousMode string // SQLite synchronous mode (FULL, NORMAL, OFF)
	CacheSize       int    // SQLite cache size in KB
	BusyTimeout     int    // SQLite busy timeout in milliseconds
	ForeignKeys     bool   // Enable foreign key constraints

	// Maintenance settings
	VacuumInterval  time.Duration // Interval between ANALYZE/VACUUM passes (0 = never)
	RetentionDays   int           // Days of history kept by the retention sweep
	CleanupInterval time.Duration // Interval between retention sweeps (0 = startup only)
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Path:            "activity.db",
		MaxConnections:  4,
		MaxIdleConns:    2,
		ConnMaxLifetime: 24 * time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,

		AutoMigrate: true,

		JournalMode:     "WAL",
		SynchronousMode: "NORMAL",
		CacheSize:       2000,
		BusyTimeout:     5000,
		ForeignKeys:     true,

		VacuumInterval:  24 * time.Hour,
		RetentionDays:   7,
		CleanupInterval: 6 * time.Hour,
	}
}

// TestConfig returns a file-backed configuration rooted in dir. Tests use a
// file rather than :memory: so every pooled connection sees the same data.
func TestConfig(dir string) *Config {
	config := DefaultConfig()
	config.Path = filepath.Join(dir, "activity_test.db")
	config.SynchronousMode = "OFF"
	config.CacheSize = 1000
	config.BusyTimeout = 2000
	config.VacuumInterval = 0
	config.CleanupInterval = 0
	return config
}

// InMemoryConfig returns a single-connection in-memory configuration.
func InMemoryConfig() *Config {
	config := DefaultConfig()
	config.Path = ":memory:"
	config.JournalMode = "MEMORY"
	config.SynchronousMode = "OFF"
	config.ForceSingleConnection = true
	config.VacuumInterval = 0
	config.CleanupInterval = 0
	return config
}

// LoadFromEnvironment applies ACTRACK_DB_* overrides. Unparseable values are ignored.
func (c *Config) LoadFromEnvironment() error {
	if path := os.Getenv("ACTRACK_DB_PATH"); path != "" {
		c.Path = path
	}

	if maxConns := os.Getenv("ACTRACK_DB_MAX_CONNECTIONS"); maxConns != "" {
		if val, err := strconv.Atoi(maxConns); err == nil && val > 0 {
			c.MaxConnections = val
		}
	}

	if maxIdle := os.Getenv("ACTRACK_DB_MAX_IDLE_CONNECTIONS"); maxIdle != "" {
		if val, err := strconv.Atoi(maxIdle); err == nil && val > 0 {
			c.MaxIdleConns = val
		}
	}

	if lifetime := os.Getenv("ACTRACK_DB_CONN_MAX_LIFETIME"); lifetime != "" {
		if val, err := time.ParseDuration(lifetime); err == nil {
			c.ConnMaxLifetime = val
		}
	}

	if autoMigrate, present := parseBoolEnv("ACTRACK_DB_AUTO_MIGRATE"); present {
		c.AutoMigrate = autoMigrate
	}

	if journalMode := os.Getenv("ACTRACK_DB_JOURNAL_MODE"); journalMode != "" {
		c.JournalMode = journalMode
	}

	if syncMode := os.Getenv("ACTRACK_DB_SYNCHRONOUS_MODE"); syncMode != "" {
		c.SynchronousMode = strings.ToUpper(syncMode)
	}

	if busyTimeout := os.Getenv("ACTRACK_DB_BUSY_TIMEOUT"); busyTimeout != "" {
		if val, err := strconv.Atoi(busyTimeout); err == nil && val >= 0 {
			c.BusyTimeout = val
		}
	}

	if foreignKeys, present := parseBoolEnv("ACTRACK_DB_FOREIGN_KEYS"); present {
		c.ForeignKeys = foreignKeys
	}

	if forceSingle, present := parseBoolEnv("ACTRACK_DB_FORCE_SINGLE_CONNECTION"); present {
		c.ForceSingleConnection = forceSingle
	}

	if vacuumInterval := os.Getenv("ACTRACK_DB_VACUUM_INTERVAL"); vacuumInterval != "" {
		if val, err := time.ParseDuration(vacuumInterval); err == nil && val >= 0 {
			c.VacuumInterval = val
		}
	}

	if retentionDays := os.Getenv("ACTRACK_DB_RETENTION_DAYS"); retentionDays != "" {
		if val, err := strconv.Atoi(retentionDays); err == nil && val >= 0 {
			c.RetentionDays = val
		}
	}

	if cleanupInterval := os.Getenv("ACTRACK_DB_CLEANUP_INTERVAL"); cleanupInterval != "" {
		if val, err := time.ParseDuration(cleanupInterval); err == nil && val >= 0 {
			c.CleanupInterval = val
		}
	}

	return nil
}

// Validate validates the configuration parameters and creates the
// database directory when missing.
func (c *Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}

	if !c.IsInMemory() {
		dir := filepath.Dir(c.Path)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create database directory %s: %w", dir, err)
			}
		}
	}

	if c.MaxConnections <= 0 {
		return fmt.Errorf("maxConnections must be positive, got %d", c.MaxConnections)
	}
	if c.MaxIdleConns < 0 {
		return fmt.Errorf("maxIdleConns cannot be negative, got %d", c.MaxIdleConns)
	}
	if c.MaxIdleConns > c.MaxConnections {
		return fmt.Errorf("maxIdleConns (%d) cannot be greater than maxConnections (%d)", c.MaxIdleConns, c.MaxConnections)
	}
	if c.ConnMaxLifetime < 0 {
		return fmt.Errorf("connMaxLifetime cannot be negative, got %v", c.ConnMaxLifetime)
	}
	if c.ConnMaxIdleTime < 0 {
		return fmt.Errorf("connMaxIdleTime cannot be negative, got %v", c.ConnMaxIdleTime)
	}

	switch strings.ToUpper(c.JournalMode) {
	case "DELETE", "TRUNCATE", "PERSIST", "MEMORY", "WAL", "OFF":
	default:
		return fmt.Errorf("invalid journalMode: %s", c.JournalMode)
	}
	if c.IsInMemory() && strings.EqualFold(c.JournalMode, "WAL") {
		return fmt.Errorf("journalMode cannot be WAL when using in-memory database")
	}

	switch c.SynchronousMode {
	case "OFF", "NORMAL", "FULL", "EXTRA":
	default:
		return fmt.Errorf("invalid synchronousMode: %s", c.SynchronousMode)
	}

	if c.CacheSize <= 0 {
		return fmt.Errorf("cacheSize must be positive, got %d", c.CacheSize)
	}
	if c.BusyTimeout < 0 {
		return fmt.Errorf("busyTimeout cannot be negative, got %d", c.BusyTimeout)
	}
	if c.VacuumInterval < 0 {
		return fmt.Errorf("vacuumInterval cannot be negative, got %v", c.VacuumInterval)
	}
	if c.RetentionDays < 0 {
		return fmt.Errorf("retentionDays cannot be negative, got %d", c.RetentionDays)
	}
	if c.CleanupInterval < 0 {
		return fmt.Errorf("cleanupInterval cannot be negative, got %v", c.CleanupInterval)
	}

	return nil
}

// GetConnectionString builds the go-sqlite3 DSN. Transactions begin with
// BEGIN IMMEDIATE so concurrent flushes queue on the busy timeout instead of
// failing on lock upgrade.
func (c *Config) GetConnectionString() string {
	values := url.Values{}

	if c.ForeignKeys {
		values.Set("_foreign_keys", "on")
	} else {
		values.Set("_foreign_keys", "off")
	}
	values.Set("_journal_mode", c.JournalMode)
	values.Set("_synchronous", c.SynchronousMode)
	// negative so SQLite reads it as KiB
	values.Set("_cache_size", strconv.Itoa(-c.CacheSize))
	values.Set("_busy_timeout", strconv.Itoa(c.BusyTimeout))
	values.Set("_txlock", "immediate")

	// Escape only what would break query parsing
	path := c.Path
	if strings.ContainsAny(path, "?&") {
		path = strings.ReplaceAll(path, "?", "%3F")
		path = strings.ReplaceAll(path, "&", "%26")
	}

	return path + "?" + values.Encode()
}

// Clone creates a copy of the configuration
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// IsInMemory returns true if the database is configured to use in-memory storage
func (c *Config) IsInMemory() bool {
	return c.Path == ":memory:"
}
