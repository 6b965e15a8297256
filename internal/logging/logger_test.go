package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
		want   string
	}{
		{
			name:   "default config",
			config: nil,
			want:   "text",
		},
		{
			name: "json format",
			config: &Config{
				Level:  LevelInfo,
				Format: "json",
				Output: &bytes.Buffer{},
			},
			want: "json",
		},
		{
			name: "text format",
			config: &Config{
				Level:  LevelDebug,
				Format: "text",
				Output: &bytes.Buffer{},
			},
			want: "text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := NewLogger(tt.config)
			if logger == nil {
				t.Error("NewLogger() returned nil")
			}
			if logger.format != tt.want {
				t.Errorf("format = %q, want %q", logger.format, tt.want)
			}
		})
	}
}

func TestLoggerWithContext(t *testing.T) {
	var buf bytes.Buffer
	config := &Config{
		Level:   LevelDebug,
		Format:  "text",
		Output:  &buf,
		Sync:    true,
		NoColor: true,
	}

	logger := NewLogger(config)

	threadLogger := logger.WithThread(4)
	threadLogger.Info("test message")

	output := buf.String()
	if !strings.Contains(output, "thread_id=4") {
		t.Errorf("expected thread_id=4 in output, got: %s", output)
	}

	buf.Reset()
	vectorLogger := threadLogger.WithVector(1)
	vectorLogger.Info("vector message")

	output = buf.String()
	if !strings.Contains(output, "thread_id=4") {
		t.Errorf("expected thread_id=4 in vector logger output, got: %s", output)
	}
	if !strings.Contains(output, "vector=1") {
		t.Errorf("expected vector=1 in output, got: %s", output)
	}
}

func TestLoggerWithRequest(t *testing.T) {
	var buf bytes.Buffer
	config := &Config{
		Level:   LevelDebug,
		Format:  "text",
		Output:  &buf,
		Sync:    true,
		NoColor: true,
	}

	logger := NewLogger(config)
	requestLogger := logger.WithRequest(3, "SEND")
	requestLogger.Debug("processing request")

	output := buf.String()
	if !strings.Contains(output, "tag=3") {
		t.Errorf("expected tag=3 in output, got: %s", output)
	}
	if !strings.Contains(output, "op=SEND") {
		t.Errorf("expected op=SEND in output, got: %s", output)
	}
}

func TestLoggerWithError(t *testing.T) {
	var buf bytes.Buffer
	config := &Config{
		Level:   LevelDebug,
		Format:  "text",
		Output:  &buf,
		Sync:    true,
		NoColor: true,
	}

	logger := NewLogger(config)
	testErr := errors.New("test error")
	errorLogger := logger.WithError(testErr)
	errorLogger.Error("operation failed")

	output := buf.String()
	if !strings.Contains(output, "test error") {
		t.Errorf("expected 'test error' in output, got: %s", output)
	}
}

func TestLoggerLifecycleHelpers(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelDebug, Format: "text", Output: &buf})

	logger.ThreadExit("command")
	if !strings.Contains(buf.String(), "command EXIT.") {
		t.Errorf("expected ThreadExit to print 'command EXIT.', got: %s", buf.String())
	}

	buf.Reset()
	logger.ThreadFault("ushen")
	if !strings.Contains(buf.String(), "ushen DOWN.") {
		t.Errorf("expected ThreadFault to print 'ushen DOWN.', got: %s", buf.String())
	}

	buf.Reset()
	logger.SystemDown("no runnable thread")
	if !strings.Contains(buf.String(), "system error!") {
		t.Errorf("expected SystemDown to print 'system error!', got: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "reason=no runnable thread") {
		t.Errorf("expected SystemDown to include reason, got: %s", buf.String())
	}
}

func TestGlobalLoggerFunctions(t *testing.T) {
	var buf bytes.Buffer
	config := &Config{
		Level:   LevelDebug,
		Format:  "text",
		Output:  &buf,
		Sync:    true,
		NoColor: true,
	}

	SetDefault(NewLogger(config))

	Debug("debug message", "key", "value")
	output := buf.String()
	if !strings.Contains(output, "debug message") {
		t.Errorf("expected debug message, got: %s", output)
	}
	if !strings.Contains(output, "key=value") {
		t.Errorf("expected key=value, got: %s", output)
	}

	buf.Reset()
	Info("info message")
	output = buf.String()
	if !strings.Contains(output, "info message") {
		t.Errorf("expected info message, got: %s", output)
	}

	buf.Reset()
	Warn("warning message")
	output = buf.String()
	if !strings.Contains(output, "warning message") {
		t.Errorf("expected warning message, got: %s", output)
	}

	buf.Reset()
	Error("error message")
	output = buf.String()
	if !strings.Contains(output, "error message") {
		t.Errorf("expected error message, got: %s", output)
	}
}
