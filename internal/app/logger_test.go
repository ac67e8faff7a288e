package app

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/worktrack/internal/config"
)

func TestNewLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(config.Log{Level: "info", Format: "json"}, &buf)
	logger.Info("tracking started", "session", "abc")

	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m), "JSON handler should produce valid JSON")
	assert.Equal(t, "tracking started", m["msg"])
	assert.Equal(t, "abc", m["session"])
}

func TestNewLogger_TextFormatRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(config.Log{Level: "warn", Format: "text"}, &buf)
	logger.Info("hidden")
	logger.Warn("transmission failed")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.True(t, strings.Contains(out, "msg=\"transmission failed\""), out)
}

func TestNewLogger_SetsDefault(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(config.Log{Level: "info", Format: "json"}, &buf)
	assert.Equal(t, logger.Handler(), slog.Default().Handler())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{" Warn ", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, parseLevel(tc.level), tc.level)
	}
}
