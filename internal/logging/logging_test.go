package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(" info "))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelWarn, ParseLevel(""))
	assert.Equal(t, slog.LevelWarn, ParseLevel("loud"))
}

func TestInit_JSONFromEnv(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
	t.Setenv("PIISCAN_JSON_LOG", "true")
	t.Setenv("PIISCAN_LOG_LEVEL", "info")

	var buf bytes.Buffer
	log := Init(Options{Output: &buf})
	log.Info("hello", "files", 3)
	log.Debug("hidden")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "hello", rec["msg"])
	assert.EqualValues(t, 3, rec["files"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestInit_TextDefaultsToWarn(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
	t.Setenv("PIISCAN_JSON_LOG", "")
	t.Setenv("PIISCAN_LOG_LEVEL", "")

	var buf bytes.Buffer
	Init(Options{Output: &buf})
	slog.Info("quiet")
	slog.Warn("loud")
	assert.NotContains(t, buf.String(), "quiet")
	assert.True(t, strings.Contains(buf.String(), "msg=loud"))
}
