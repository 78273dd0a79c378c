package database

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		modifier func(*Config)
		errorMsg string // empty means valid
	}{
		{name: "defaults are valid", modifier: func(c *Config) {}},
		{name: "in-memory config is valid", modifier: func(c *Config) { *c = *InMemoryConfig() }},
		{name: "empty path", modifier: func(c *Config) { c.Path = "" }, errorMsg: "database path cannot be empty"},
		{name: "zero max connections", modifier: func(c *Config) { c.MaxConnections = 0 }, errorMsg: "maxConnections must be positive"},
		{name: "negative idle", modifier: func(c *Config) { c.MaxIdleConns = -1 }, errorMsg: "maxIdleConns cannot be negative"},
		{
			name:     "idle above max",
			modifier: func(c *Config) { c.MaxConnections = 2; c.MaxIdleConns = 3 },
			errorMsg: "cannot be greater than maxConnections",
		},
		{name: "negative lifetime", modifier: func(c *Config) { c.ConnMaxLifetime = -time.Second }, errorMsg: "connMaxLifetime cannot be negative"},
		{name: "journal mode is case-insensitive", modifier: func(c *Config) { c.JournalMode = "wal" }},
		{name: "bad journal mode", modifier: func(c *Config) { c.JournalMode = "FAST" }, errorMsg: "invalid journalMode"},
		{
			name:     "WAL on in-memory",
			modifier: func(c *Config) { c.Path = ":memory:"; c.JournalMode = "WAL" },
			errorMsg: "journalMode cannot be WAL when using in-memory database",
		},
		{name: "bad synchronous mode", modifier: func(c *Config) { c.SynchronousMode = "SOMETIMES" }, errorMsg: "invalid synchronousMode"},
		{name: "zero cache", modifier: func(c *Config) { c.CacheSize = 0 }, errorMsg: "cacheSize must be positive"},
		{name: "negative busy timeout", modifier: func(c *Config) { c.BusyTimeout = -1 }, errorMsg: "busyTimeout cannot be negative"},
		{name: "negative vacuum interval", modifier: func(c *Config) { c.VacuumInterval = -time.Hour }, errorMsg: "vacuumInterval cannot be negative"},
		{name: "negative retention", modifier: func(c *Config) { c.RetentionDays = -1 }, errorMsg: "retentionDays cannot be negative"},
		{name: "zero retention keeps today only", modifier: func(c *Config) { c.RetentionDays = 0 }},
		{name: "negative cleanup interval", modifier: func(c *Config) { c.CleanupInterval = -time.Minute }, errorMsg: "cleanupInterval cannot be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			config := DefaultConfig()
			config.Path = filepath.Join(t.TempDir(), "activity.db")
			tt.modifier(config)

			err := config.Validate()
			if tt.errorMsg == "" {
				if err != nil {
					t.Errorf("Expected no error but got: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Expected error containing %q, got nil", tt.errorMsg)
			}
			if !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("Expected error message to contain %q, got %q", tt.errorMsg, err.Error())
			}
		})
	}
}

func TestConfig_Validate_CreatesDirectory(t *testing.T) {
	t.Parallel()
	config := DefaultConfig()
	config.Path = filepath.Join(t.TempDir(), "nested", "deeper", "activity.db")

	if err := config.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if _, err := os.Stat(filepath.Dir(config.Path)); err != nil {
		t.Fatalf("directory not created: %v", err)
	}
}

func TestConfig_LoadFromEnvironment(t *testing.T) {
	t.Setenv("ACTRACK_DB_PATH", "/tmp/override.db")
	t.Setenv("ACTRACK_DB_MAX_CONNECTIONS", "3")
	t.Setenv("ACTRACK_DB_AUTO_MIGRATE", "off")
	t.Setenv("ACTRACK_DB_JOURNAL_MODE", "DELETE")
	t.Setenv("ACTRACK_DB_SYNCHRONOUS_MODE", "full")
	t.Setenv("ACTRACK_DB_BUSY_TIMEOUT", "250")
	t.Setenv("ACTRACK_DB_FORCE_SINGLE_CONNECTION", "yes")
	t.Setenv("ACTRACK_DB_RETENTION_DAYS", "30")
	t.Setenv("ACTRACK_DB_CLEANUP_INTERVAL", "1h")
	t.Setenv("ACTRACK_DB_VACUUM_INTERVAL", "not-a-duration")

	config := DefaultConfig()
	if err := config.LoadFromEnvironment(); err != nil {
		t.Fatalf("LoadFromEnvironment failed: %v", err)
	}

	if config.Path != "/tmp/override.db" {
		t.Errorf("Path = %q", config.Path)
	}
	if config.MaxConnections != 3 {
		t.Errorf("MaxConnections = %d", config.MaxConnections)
	}
	if config.AutoMigrate {
		t.Error("AutoMigrate should be disabled by \"off\"")
	}
	if config.JournalMode != "DELETE" || config.SynchronousMode != "FULL" {
		t.Errorf("modes = %s/%s", config.JournalMode, config.SynchronousMode)
	}
	if config.BusyTimeout != 250 {
		t.Errorf("BusyTimeout = %d", config.BusyTimeout)
	}
	if !config.ForceSingleConnection {
		t.Error("ForceSingleConnection should be set by \"yes\"")
	}
	if config.RetentionDays != 30 || config.CleanupInterval != time.Hour {
		t.Errorf("retention = %d/%v", config.RetentionDays, config.CleanupInterval)
	}
	if config.VacuumInterval != DefaultConfig().VacuumInterval {
		t.Errorf("unparseable override should be ignored, got %v", config.VacuumInterval)
	}
}

func TestParseBoolEnv(t *testing.T) {
	cases := map[string]struct {
		value   bool
		present bool
	}{
		"true":  {true, true},
		"0":     {false, true},
		"Yes":   {true, true},
		"OFF":   {false, true},
		"maybe": {false, false},
	}
	for in, want := range cases {
		t.Setenv("ACTRACK_TEST_BOOL", in)
		got, present := parseBoolEnv("ACTRACK_TEST_BOOL")
		if got != want.value || present != want.present {
			t.Errorf("parseBoolEnv(%q) = %v,%v want %v,%v", in, got, present, want.value, want.present)
		}
	}
}

func TestConfig_GetConnectionString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		modifier   func(*Config)
		expected   map[string]string
		pathPrefix string
	}{
		{
			name: "defaults",
			modifier: func(c *Config) {
				c.Path = "activity.db"
			},
			expected: map[string]string{
				"_foreign_keys": "on",
				"_journal_mode": "WAL",
				"_synchronous":  "NORMAL",
				"_cache_size":   "-2000",
				"_busy_timeout": "5000",
				"_txlock":       "immediate",
			},
			pathPrefix: "activity.db?",
		},
		{
			name:     "in-memory database",
			modifier: func(c *Config) { *c = *InMemoryConfig(); c.ForeignKeys = false },
			expected: map[string]string{
				"_foreign_keys": "off",
				"_journal_mode": "MEMORY",
				"_synchronous":  "OFF",
				"_cache_size":   "-2000",
				"_busy_timeout": "5000",
				"_txlock":       "immediate",
			},
			pathPrefix: ":memory:?",
		},
		{
			name: "path with special characters",
			modifier: func(c *Config) {
				c.Path = "my database?.db&test=1"
			},
			expected: map[string]string{
				"_foreign_keys": "on",
				"_journal_mode": "WAL",
				"_synchronous":  "NORMAL",
				"_cache_size":   "-2000",
				"_busy_timeout": "5000",
				"_txlock":       "immediate",
			},
			pathPrefix: "my database%3F.db%26test=1?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			config := DefaultConfig()
			tt.modifier(config)

			connStr := config.GetConnectionString()
			if !strings.HasPrefix(connStr, tt.pathPrefix) {
				t.Fatalf("Connection string path format check failed: %s", connStr)
			}

			values, err := url.ParseQuery(strings.SplitN(connStr, "?", 2)[1])
			if err != nil {
				t.Fatalf("Failed to parse query parameters: %v", err)
			}
			for key, expectedValue := range tt.expected {
				if actual := values.Get(key); actual != expectedValue {
					t.Errorf("Expected %s=%s, got %s=%s", key, expectedValue, key, actual)
				}
			}
			for key := range values {
				if _, ok := tt.expected[key]; !ok {
					t.Errorf("Unexpected parameter in connection string: %s=%s", key, values.Get(key))
				}
			}
		})
	}
}

func TestConfig_Clone(t *testing.T) {
	original := DefaultConfig()
	clone := original.Clone()
	clone.Path = "other.db"
	clone.RetentionDays = 90

	if original.Path == clone.Path || original.RetentionDays == clone.RetentionDays {
		t.Error("Clone must not alias the original")
	}
}
