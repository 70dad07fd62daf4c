package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dineshreddykolli/mindcare-ai/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":  zerolog.DebugLevel,
		" WARN ": zerolog.WarnLevel,
		"error":  zerolog.ErrorLevel,
		"":       zerolog.InfoLevel,
		"loud":   zerolog.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "ParseLevel(%q)", in)
	}
}

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)

	log.Info().Msg("dropped")
	log.Warn().Str("patient_id", "p-1").Msg("kept")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var ev map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &ev))
	assert.Equal(t, "kept", ev["message"])
	assert.Equal(t, "p-1", ev["patient_id"])
	assert.Equal(t, "mindcare", ev["service"])
	assert.Contains(t, ev, "time")
}

func TestNewWithWriter_File(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "mindcare.log")
	log := NewWithWriter(config.LoggingConfig{Level: "info", Format: "console", File: path, MaxSizeMB: 1}, &buf)

	log.Info().Msg("to both")

	assert.Contains(t, buf.String(), "to both")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"to both"`)
}
