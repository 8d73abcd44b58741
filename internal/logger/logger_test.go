package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"trashdetector/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
		wantErr  bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warn", LevelWarning, false},
		{"warning", LevelWarning, false},
		{"error", LevelError, false},
		{"loud", LevelInfo, true},
	}

	for _, tt := range tests {
		level, err := ParseLevel(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
		if level != tt.expected {
			t.Errorf("ParseLevel(%q) = %v, expected %v", tt.input, level, tt.expected)
		}
	}
}

func TestNewLogger_WritesLevelFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	l, err := NewLogger(&config.Config{LogDirectory: dir, LogLevel: "info"})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer l.Close()

	l.Info("hello %d", 1)
	l.Warning("careful")
	l.Debug("hidden")

	info, err := os.ReadFile(filepath.Join(dir, "info.log"))
	if err != nil {
		t.Fatalf("Failed to read info.log: %v", err)
	}
	if !strings.Contains(string(info), "hello 1") {
		t.Errorf("info.log missing entry: %q", info)
	}

	warning, err := os.ReadFile(filepath.Join(dir, "warning.log"))
	if err != nil {
		t.Fatalf("Failed to read warning.log: %v", err)
	}
	if !strings.Contains(string(warning), "careful") {
		t.Errorf("warning.log missing entry: %q", warning)
	}

	if err := l.CleanLogs("info.log"); err != nil {
		t.Fatalf("CleanLogs failed: %v", err)
	}
	info, _ = os.ReadFile(filepath.Join(dir, "info.log"))
	// CleanLogs itself logs one line after truncating.
	if strings.Contains(string(info), "hello 1") {
		t.Errorf("info.log should have been truncated: %q", info)
	}
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	if _, err := NewLogger(&config.Config{LogDirectory: t.TempDir(), LogLevel: "loud"}); err == nil {
		t.Error("Expected error for invalid level")
	}
}

func TestWriterLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(&buf, LevelWarning)

	l.Info("skipped")
	l.Error("kept %s", "error")

	out := buf.String()
	if strings.Contains(out, "skipped") {
		t.Errorf("Info should be filtered at warning level: %q", out)
	}
	if !strings.Contains(out, "kept error") || !strings.Contains(out, "logger_test.go") {
		t.Errorf("Expected error entry with caller file, got %q", out)
	}
}
