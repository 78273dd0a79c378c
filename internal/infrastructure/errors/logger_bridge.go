package errors

import (
	"fmt"

	"actrack/internal/infrastructure/logging"
)

// LoggerBridge adapts logging.Logger to RetryLogger.
type LoggerBridge struct {
	logger logging.Logger
}

// NewLoggerBridge creates a new bridge from logging.Logger to RetryLogger
func NewLoggerBridge(logger logging.Logger) RetryLogger {
	return &LoggerBridge{logger: logger}
}

// Printf formats the retry message and logs it at warn level.
func (b *LoggerBridge) Printf(format string, v ...any) {
	if b.logger != nil {
		b.logger.Warn(fmt.Sprintf(format, v...), "component", "retry")
	}
}
