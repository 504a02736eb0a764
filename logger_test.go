package tcpsub

import (
	"log/slog"
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

func TestNopLogger(t *testing.T) {
	logger := NopLogger()

	// These should not panic
	logger.Debug("debug message", "key", "value")
	logger.Info("info message", "key", "value")
	logger.Warn("warn message", "key", "value")
	logger.Error("error message", "key", "value")
}

// mockLogger for testing Logger interface
type mockLogger struct {
	debugCalled bool
	infoCalled  bool
	lastMsg     string
	lastArgs    []any
}

func (l *mockLogger) Debug(msg string, args ...any) {
	l.debugCalled = true
	l.lastMsg = msg
	l.lastArgs = args
}

func (l *mockLogger) Info(msg string, args ...any) {
	l.infoCalled = true
	l.lastMsg = msg
	l.lastArgs = args
}

func (l *mockLogger) Warn(msg string, args ...any)  {}
func (l *mockLogger) Error(msg string, args ...any) {}

func TestReader_LogsLifecycleAtDebug(t *testing.T) {
	logger := &mockLogger{}
	r, _ := newTestReader(t, LoggerOption(logger))

	r.Close()

	if !logger.debugCalled {
		t.Error("Close did not log at debug level")
	}
	if logger.infoCalled {
		t.Error("reader logged above debug level")
	}
	if logger.lastMsg != "reader closed" {
		t.Errorf("lastMsg = %q, want %q", logger.lastMsg, "reader closed")
	}
}
