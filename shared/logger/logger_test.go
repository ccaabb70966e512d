package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, output *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(output.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestNew_JSONLevels(t *testing.T) {
	tests := []struct {
		level     string
		wantLevel []string
	}{
		{level: "debug", wantLevel: []string{"DEBUG", "INFO", "WARN", "ERROR"}},
		{level: "info", wantLevel: []string{"INFO", "WARN", "ERROR"}},
		{level: "warn", wantLevel: []string{"WARN", "ERROR"}},
		{level: "error", wantLevel: []string{"ERROR"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			output := &bytes.Buffer{}
			logger, err := New(&Config{Level: tt.level, Format: "json", writer: output})
			require.NoError(t, err)

			logger.Debug("Progress", slog.Int("percent", 10))
			logger.Info("Progress", slog.Int("percent", 20))
			logger.Warn("Checkpoint snapshot missing", slog.String("layer", "data"))
			logger.Error("Job processing failed", slog.Int("worker", 3))

			entries := decodeLines(t, output)
			require.Len(t, entries, len(tt.wantLevel))
			for i, entry := range entries {
				assert.Equal(t, tt.wantLevel[i], entry["level"])
				assert.Contains(t, entry, "time")
			}
		})
	}
}

func TestNew_Console(t *testing.T) {
	output := &bytes.Buffer{}
	logger, err := New(&Config{Level: "info", Format: "console", writer: output})
	require.NoError(t, err)

	logger.Info("Assessment initialized", slog.Int("targets", 3))

	// tint abbreviates levels
	assert.Contains(t, output.String(), "INF")
	assert.Contains(t, output.String(), "Assessment initialized")
	assert.Contains(t, output.String(), "targets")
}

func TestNew_Source(t *testing.T) {
	output := &bytes.Buffer{}
	logger, err := New(&Config{Format: "json", EnableSource: true, writer: output})
	require.NoError(t, err)

	logger.Info("with source")

	entries := decodeLines(t, output)
	require.Len(t, entries, 1)
	source, ok := entries[0]["source"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, source, "file")
	assert.Contains(t, source, "line")
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "risk.log")
	require.NoError(t, os.WriteFile(path, []byte("previous\n"), 0o644))

	logger, err := New(&Config{Format: "json", Output: path})
	require.NoError(t, err)
	logger.Info("Assessment finished", slog.String("name", "exp"))
	require.NoError(t, logger.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2, "file output appends")
	assert.Equal(t, "previous", lines[0])
	assert.Contains(t, lines[1], `"name":"exp"`)
}

func TestNew_FileOutputUnwritable(t *testing.T) {
	_, err := New(&Config{Output: filepath.Join(t.TempDir(), "missing", "risk.log")})
	assert.Error(t, err)
}

func TestNewDefault(t *testing.T) {
	logger := NewDefault()
	require.NotNil(t, logger)
	assert.NoError(t, logger.Close())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected slog.Level
	}{
		{level: "debug", expected: slog.LevelDebug},
		{level: "info", expected: slog.LevelInfo},
		{level: "warn", expected: slog.LevelWarn},
		{level: "warning", expected: slog.LevelWarn},
		{level: "error", expected: slog.LevelError},
		{level: "DEBUG", expected: slog.LevelInfo},
		{level: "", expected: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLevel(tt.level))
		})
	}
}

func TestLogger_Derived(t *testing.T) {
	output := &bytes.Buffer{}
	logger, err := New(&Config{Format: "json", writer: output})
	require.NoError(t, err)

	logger.WithGroup("engine").Info("State changed", slog.String("state", "RUNNING"))
	logger.WithAttrs(slog.String("assessment", "exp")).Info("Summary written")
	logger.With(slog.Int("worker", 2)).Info("Worker goroutine stopping")

	entries := decodeLines(t, output)
	require.Len(t, entries, 3)
	assert.Equal(t, map[string]any{"state": "RUNNING"}, entries[0]["engine"])
	assert.Equal(t, "exp", entries[1]["assessment"])
	assert.Equal(t, float64(2), entries[2]["worker"])
}
