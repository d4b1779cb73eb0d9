package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input Level
		want  zerolog.Level
	}{
		{LevelDebug, zerolog.DebugLevel},
		{LevelInfo, zerolog.InfoLevel},
		{LevelWarn, zerolog.WarnLevel},
		{Level("warning"), zerolog.WarnLevel},
		{LevelError, zerolog.ErrorLevel},
		{Level("DEBUG"), zerolog.DebugLevel},
		{Level("nonsense"), zerolog.InfoLevel},
		{Level(""), zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestSetup_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(Config{Level: LevelDebug, Output: &buf})

	logger.Info().Str("endpoint", "/metrics").Msg("test message")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if entry["message"] != "test message" {
		t.Errorf("message = %v, want %q", entry["message"], "test message")
	}
	if entry["endpoint"] != "/metrics" {
		t.Errorf("endpoint = %v, want %q", entry["endpoint"], "/metrics")
	}
	if _, ok := entry["time"]; !ok {
		t.Error("expected timestamp field in log output")
	}
}

func TestSetup_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(Config{Level: LevelWarn, Output: &buf})

	logger.Debug().Msg("should be filtered")
	logger.Info().Msg("should be filtered too")
	logger.Warn().Msg("should appear")

	out := buf.String()
	if strings.Contains(out, "filtered") {
		t.Errorf("low-level messages leaked through: %s", out)
	}
	if !strings.Contains(out, "should appear") {
		t.Errorf("warn message missing from output: %s", out)
	}
}

func TestNewLogger_Component(t *testing.T) {
	var buf bytes.Buffer
	Setup(Config{Level: LevelDebug, Output: &buf})

	logger := NewLogger("cache")
	logger.Info().Msg("hello")

	if !strings.Contains(buf.String(), `"component":"cache"`) {
		t.Errorf("expected component field, got: %s", buf.String())
	}
}
