package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"":        slog.LevelInfo,
		"info":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		" warn ":  slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLogLevel(in), in)
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatAuto, f)

	f, err = ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestNew_AutoFallsBackToJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(slog.LevelInfo, &buf, FormatAuto)

	logger.Debug("hidden")
	logger.Info("bug logged", "bug_id", 7)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "bug logged", rec["msg"])
	assert.Equal(t, float64(7), rec["bug_id"])
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	logger := New(slog.LevelDebug, &buf, FormatConsole)
	logger.Debug("loading session")
	assert.Contains(t, buf.String(), "loading session")
}
