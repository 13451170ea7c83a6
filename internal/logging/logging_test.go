package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Options{Level: "warn", Format: "json", Out: &buf})
	require.NoError(t, err)

	log.Info().Msg("dropped")
	log.Warn().Str("run_id", "run-1").Msg("kept")

	var event map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &event))
	assert.Equal(t, "kept", event["message"])
	assert.Equal(t, "run-1", event["run_id"])
	assert.Equal(t, "warn", event["level"])
	assert.Contains(t, event, "time")
}

func TestNewConsoleLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Options{Out: &buf})
	require.NoError(t, err)

	log.Debug().Msg("hidden")
	log.Info().Msg("evolution started")
	assert.Contains(t, buf.String(), "evolution started")
	assert.NotContains(t, buf.String(), "hidden")
}

func TestNewRejectsBadOptions(t *testing.T) {
	_, err := New(Options{Level: "loud"})
	assert.Error(t, err)
	_, err = New(Options{Format: "xml"})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel(" DEBUG ")
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, level)

	level, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, level)
}
