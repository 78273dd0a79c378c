// Package config loads the engine settings: a TOML file, an optional .env
// file, and ACTRACK_* environment overrides, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"actrack/internal/database"
	"actrack/internal/infrastructure/logging"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
)

// Duration is a time.Duration written as "5s", "5m" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config is the full settings tree.
type Config struct {
	Monitoring      MonitoringConfig `toml:"monitoring"`
	Database        DatabaseConfig   `toml:"database"`
	Logging         LoggingConfig    `toml:"logging"`
	Metrics         MetricsConfig    `toml:"metrics"`
	SystemProcesses []string         `toml:"system_processes"`
	SystemDomains   []string         `toml:"system_domains"`
}

// MonitoringConfig holds the sampler cadences.
type MonitoringConfig struct {
	ProcessCheckInterval Duration `toml:"process_check_interval"`
	NetworkCheckInterval Duration `toml:"network_check_interval"`
	DataSaveInterval     Duration `toml:"data_save_interval"`
	QueryTimeout         Duration `toml:"query_timeout"`

	// HostnameCommand replaces the built-in DNS cache reader, e.g.
	// ["resolvectl", "query-cache"]. One hostname per output line.
	HostnameCommand []string `toml:"hostname_command"`
}

// DatabaseConfig holds the store settings exposed to users. Pool and pragma
// tuning stays in database.Config and its ACTRACK_DB_* variables.
type DatabaseConfig struct {
	Path            string   `toml:"path"`
	RetentionDays   int      `toml:"retention_days"`
	CleanupInterval Duration `toml:"cleanup_interval"`
	VacuumInterval  Duration `toml:"vacuum_interval"`
}

// LoggingConfig selects the log level and sink.
type LoggingConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"` // empty logs to stderr
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// MetricsConfig enables the Prometheus listener when ListenAddr is set.
type MetricsConfig struct {
	ListenAddr string `toml:"listen_addr"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Monitoring: MonitoringConfig{
			ProcessCheckInterval: Duration{time.Second},
			NetworkCheckInterval: Duration{5 * time.Second},
			DataSaveInterval:     Duration{5 * time.Minute},
			QueryTimeout:         Duration{3 * time.Second},
		},
		Database: DatabaseConfig{
			Path:            "activity.db",
			RetentionDays:   7,
			CleanupInterval: Duration{6 * time.Hour},
			VacuumInterval:  Duration{24 * time.Hour},
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 7,
			MaxAgeDays: 7,
			Compress:   true,
		},
		SystemProcesses: []string{
			"explorer",
			"ShellExperienceHost",
			"StartMenuExperienceHost",
			"SearchHost",
			"LockApp",
			"ApplicationFrameHost",
			"dwm",
		},
		SystemDomains: []string{
			"microsoft",
			"windowsupdate",
			"msftncsi",
			"msedge.net",
			"arpa",
		},
	}
}

// Dir returns the per-user settings directory: $XDG_CONFIG_HOME/actrack on
// Unix, %AppData%\actrack on Windows.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("could not determine config directory: %w", err)
	}
	return filepath.Join(base, "actrack"), nil
}

// DefaultPath returns the settings file used when none is given.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "settings.toml"), nil
}

// Load reads path (DefaultPath when empty), then .env, then the environment.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	if err := LoadTOML(cfg, path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	// .env is optional
	_ = godotenv.Load()

	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes path over cfg. Unknown keys are rejected so typos do not
// silently fall back to defaults.
func LoadTOML(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := lo.Map(undecoded, func(k toml.Key, _ int) string { return k.String() })
		return fmt.Errorf("unknown settings in %s: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// Save writes cfg to path, creating the directory.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	return file.Close()
}

// ApplyEnvOverrides applies ACTRACK_* variables on top of cfg.
func (c *Config) ApplyEnvOverrides() error {
	durations := []struct {
		key    string
		target *Duration
	}{
		{"ACTRACK_PROCESS_CHECK_INTERVAL", &c.Monitoring.ProcessCheckInterval},
		{"ACTRACK_NETWORK_CHECK_INTERVAL", &c.Monitoring.NetworkCheckInterval},
		{"ACTRACK_DATA_SAVE_INTERVAL", &c.Monitoring.DataSaveInterval},
		{"ACTRACK_QUERY_TIMEOUT", &c.Monitoring.QueryTimeout},
	}
	for _, d := range durations {
		if v := os.Getenv(d.key); v != "" {
			if err := d.target.UnmarshalText([]byte(v)); err != nil {
				return fmt.Errorf("invalid %s: %w", d.key, err)
			}
		}
	}

	if v := os.Getenv("ACTRACK_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("ACTRACK_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
	if v := os.Getenv("ACTRACK_METRICS_ADDR"); v != "" {
		c.Metrics.ListenAddr = v
	}
	if v := os.Getenv("ACTRACK_SYSTEM_PROCESSES"); v != "" {
		c.SystemProcesses = splitList(v)
	}
	if v := os.Getenv("ACTRACK_SYSTEM_DOMAINS"); v != "" {
		c.SystemDomains = splitList(v)
	}
	return nil
}

func splitList(v string) []string {
	return lo.Compact(lo.Map(strings.Split(v, ","), func(s string, _ int) string {
		return strings.TrimSpace(s)
	}))
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	msgs := lo.Map(e, func(v ValidationError, _ int) string { return v.Error() })
	return strings.Join(msgs, "; ")
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs ValidateErrors

	positive := []struct {
		field string
		value time.Duration
	}{
		{"monitoring.process_check_interval", c.Monitoring.ProcessCheckInterval.Duration},
		{"monitoring.network_check_interval", c.Monitoring.NetworkCheckInterval.Duration},
		{"monitoring.data_save_interval", c.Monitoring.DataSaveInterval.Duration},
		{"monitoring.query_timeout", c.Monitoring.QueryTimeout.Duration},
	}
	for _, p := range positive {
		if p.value <= 0 {
			errs = append(errs, ValidationError{Field: p.field, Message: fmt.Sprintf("must be positive, got %v", p.value)})
		}
	}

	if c.Database.Path == "" {
		errs = append(errs, ValidationError{Field: "database.path", Message: "must not be empty"})
	}
	if c.Database.RetentionDays < 0 {
		errs = append(errs, ValidationError{Field: "database.retention_days", Message: "must not be negative"})
	}
	if c.Database.CleanupInterval.Duration < 0 {
		errs = append(errs, ValidationError{Field: "database.cleanup_interval", Message: "must not be negative"})
	}
	if c.Database.VacuumInterval.Duration < 0 {
		errs = append(errs, ValidationError{Field: "database.vacuum_interval", Message: "must not be negative"})
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, ValidationError{Field: "logging.level", Message: err.Error()})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// LogLevel returns the parsed logging level.
func (c *Config) LogLevel() logging.Level {
	level, _ := logging.ParseLevel(c.Logging.Level)
	return level
}

// LogFileOptions returns the rotating-file settings for the log sink.
func (c *Config) LogFileOptions() logging.FileOptions {
	opts := logging.DefaultFileOptions(c.Logging.File)
	opts.MaxSizeMB = c.Logging.MaxSizeMB
	opts.MaxBackups = c.Logging.MaxBackups
	opts.MaxAgeDays = c.Logging.MaxAgeDays
	opts.Compress = c.Logging.Compress
	return opts
}

// DatabaseConfig builds the store configuration. ACTRACK_DB_* variables
// take precedence over the settings file.
func (c *Config) DatabaseConfig() (*database.Config, error) {
	dbCfg := database.DefaultConfig()
	dbCfg.Path = c.Database.Path
	dbCfg.RetentionDays = c.Database.RetentionDays
	dbCfg.CleanupInterval = c.Database.CleanupInterval.Duration
	dbCfg.VacuumInterval = c.Database.VacuumInterval.Duration

	if err := dbCfg.LoadFromEnvironment(); err != nil {
		return nil, err
	}
	return dbCfg, nil
}
