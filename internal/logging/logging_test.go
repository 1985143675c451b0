package logging

import (
	"bytes"
	"log"
	"os"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected LogLevel
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{" error ", LevelError},
		{"", LevelInfo},
		{"verbose", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLevelFromEnv(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		debug    string
		level    string
		expected LogLevel
	}{
		{"debug flag wins", "true", "error", LevelDebug},
		{"debug flag numeric", "1", "", LevelDebug},
		{"debug flag off", "false", "warn", LevelWarn},
		{"nothing set", "", "", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := levelFromEnv(tt.debug, tt.level); got != tt.expected {
				t.Errorf("levelFromEnv(%q, %q) = %v, want %v", tt.debug, tt.level, got, tt.expected)
			}
		})
	}
}

func TestLogLevelString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "debug"},
		{LevelInfo, "info"},
		{LevelWarn, "warn"},
		{LevelError, "error"},
		{LogLevel(99), "unknown(99)"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.expected {
			t.Errorf("LogLevel(%d).String() = %q, want %q", tt.level, got, tt.expected)
		}
	}
}

// Not parallel: swaps the global log output and level.
func TestComponentLogger(t *testing.T) {
	var buf bytes.Buffer
	previous := GetLevel()
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		SetLevel(previous)
	})
	log.SetOutput(&buf)

	SetLevel(LevelWarn)
	l := For("decoder")
	l.Info("hidden %d", 1)
	l.Warn("candidate %d unreadable", 42)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line written at warn level: %q", out)
	}
	if !strings.Contains(out, "[WARN] [decoder] candidate 42 unreadable") {
		t.Errorf("missing tagged warning, got %q", out)
	}
}
