package testutils

import (
	"slices"
	"sync"
)

// TestingT is a minimal interface that matches the methods we need from testing.T
type TestingT interface {
	Errorf(format string, args ...any)
}

// FieldsToMap converts alternating key/value pairs to a map, reporting
// malformed entries through t instead of panicking.
func FieldsToMap(t TestingT, fields []any) map[string]any {
	fieldsMap := make(map[string]any)

	for i := 0; i < len(fields); i += 2 {
		if i+1 >= len(fields) {
			t.Errorf("Malformed fields slice: missing value for key at index %d", i)
			continue
		}
		key, ok := fields[i].(string)
		if !ok {
			t.Errorf("Malformed fields slice: key at index %d is not a string, got %T", i, fields[i])
			continue
		}
		fieldsMap[key] = fields[i+1]
	}

	return fieldsMap
}

// LogLine is one captured call on a RecordingLogger.
type LogLine struct {
	Level   string
	Message string
	Fields  []any
}

// RecordingLogger captures log calls from concurrent goroutines.
// It satisfies logging.Logger.
type RecordingLogger struct {
	mu    sync.Mutex
	lines []LogLine
}

func (r *RecordingLogger) record(level, msg string, fields []any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, LogLine{Level: level, Message: msg, Fields: slices.Clone(fields)})
}

func (r *RecordingLogger) Debug(msg string, fields ...any) { r.record("DEBUG", msg, fields) }
func (r *RecordingLogger) Info(msg string, fields ...any)  { r.record("INFO", msg, fields) }
func (r *RecordingLogger) Warn(msg string, fields ...any)  { r.record("WARN", msg, fields) }
func (r *RecordingLogger) Error(msg string, fields ...any) { r.record("ERROR", msg, fields) }

// Lines returns a copy of everything logged at level ("" for all levels).
func (r *RecordingLogger) Lines(level string) []LogLine {
	r.mu.Lock()
	defer r.mu.Unlock()
	if level == "" {
		return slices.Clone(r.lines)
	}
	var out []LogLine
	for _, l := range r.lines {
		if l.Level == level {
			out = append(out, l)
		}
	}
	return out
}
