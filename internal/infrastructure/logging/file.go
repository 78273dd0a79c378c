package logging

import (
	"io"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileOptions configures the rotating log file.
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultFileOptions keeps a week of logs, matching the daily rolling
// file the service has always written.
func DefaultFileOptions(path string) FileOptions {
	return FileOptions{
		Path:       path,
		MaxSizeMB:  10,
		MaxBackups: 7,
		MaxAgeDays: 7,
	}
}

// NewFileLogger returns a logger backed by a rotating file plus the closer
// for that file. An empty path logs to stderr and returns a no-op closer.
func NewFileLogger(opts FileOptions, level Level) (*DefaultLogger, io.Closer, error) {
	if opts.Path == "" {
		return NewLogger(os.Stderr, level), nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return nil, nil, err
	}

	w := &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
		LocalTime:  true,
	}
	return NewLogger(w, level), w, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
