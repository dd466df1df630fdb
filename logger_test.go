package peerpump

import (
	"log/slog"
	"sync"
	"testing"
)

func TestLogger_Interface(t *testing.T) {
	// Verify that *slog.Logger implements our Logger interface
	var _ Logger = slog.Default()
}

func TestDefaultLogger(t *testing.T) {
	logger := defaultLogger()

	if logger == nil {
		t.Fatal("defaultLogger returned nil")
	}

	// Verify it's the slog default
	if logger != slog.Default() {
		t.Error("defaultLogger did not return slog.Default()")
	}
}

type logEntry struct {
	level string
	msg   string
	args  []any
}

// mockLogger records every entry.
type mockLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *mockLogger) record(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, args: args})
}

func (l *mockLogger) Debug(msg string, args ...any) { l.record("debug", msg, args) }
func (l *mockLogger) Info(msg string, args ...any)  { l.record("info", msg, args) }
func (l *mockLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args) }
func (l *mockLogger) Error(msg string, args ...any) { l.record("error", msg, args) }

func (l *mockLogger) last() logEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return logEntry{}
	}
	return l.entries[len(l.entries)-1]
}

func TestWithAttrs_SlogLogger(t *testing.T) {
	logger := withAttrs(slog.Default(), "addr", "127.0.0.1:1")

	if _, ok := logger.(*slog.Logger); !ok {
		t.Errorf("withAttrs(*slog.Logger) = %T, want *slog.Logger", logger)
	}
}

func TestWithAttrs_CustomLogger(t *testing.T) {
	mock := &mockLogger{}
	logger := withAttrs(mock, "addr", "127.0.0.1:1", "conn_id", "conn-1")

	logger.Warn("test warn", "key", "value")

	entry := mock.last()
	if entry.level != "warn" || entry.msg != "test warn" {
		t.Fatalf("entry = %+v, want warn 'test warn'", entry)
	}

	want := []any{"addr", "127.0.0.1:1", "conn_id", "conn-1", "key", "value"}
	if len(entry.args) != len(want) {
		t.Fatalf("args = %v, want %v", entry.args, want)
	}
	for i := range want {
		if entry.args[i] != want[i] {
			t.Errorf("args[%d] = %v, want %v", i, entry.args[i], want[i])
		}
	}
}
