package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"warn", zapcore.WarnLevel},
		{"ERROR", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"chatty", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newJSON(&buf, "info")
	logger.Debug("hidden")
	logger.Info("share token created", zap.String("project_id", "p-1"))
	_ = logger.Sync()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d log lines, want 1: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["msg"] != "share token created" || entry["project_id"] != "p-1" {
		t.Errorf("entry = %v", entry)
	}
	if _, ok := entry["timestamp"]; !ok {
		t.Errorf("entry has no timestamp: %v", entry)
	}
}

func TestConsoleLoggerVerbosity(t *testing.T) {
	var quiet, verbose bytes.Buffer
	newConsole(&quiet, false).Info("polling")
	newConsole(&verbose, true).Debug("polling")

	if quiet.Len() != 0 {
		t.Errorf("quiet logger wrote %q", quiet.String())
	}
	if !strings.Contains(verbose.String(), "polling") {
		t.Errorf("verbose logger wrote %q, want polling", verbose.String())
	}
}
