package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	require.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	require.Equal(t, slog.LevelError, ParseLevel(" error "))
	require.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}

func TestPrettyHandler(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(NewPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	log.Debug("hidden")
	log.With("request_id", "abc").WithGroup("task").Info("created", "id", "t1")

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, "created")
	require.Contains(t, out, "request_id")
	require.Contains(t, out, "task.id")
	require.Equal(t, 1, strings.Count(out, "\n"))
}

func TestPrettyHandler_RedactsCredentials(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(NewPrettyHandler(&buf, nil))
	log.Info("session refreshed", "refresh_token", "r-123", "Authorization", "Bearer abc", "status", 200)

	out := buf.String()
	require.NotContains(t, out, "r-123")
	require.NotContains(t, out, "Bearer abc")
	require.Contains(t, out, redacted)
	require.Contains(t, out, "200")
}

func TestNew_JSONFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(newHandler(&buf, Options{Level: "info", Format: "json"}))
	log.Info("ready", "port", "8080")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Equal(t, "ready", decoded["msg"])
	require.Equal(t, "8080", decoded["port"])
}

func TestNew_FileOutput(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "api.log")
	log, closer := New(Options{Level: "info", File: path})
	log.Info("to file")
	require.NoError(t, closer.Close())
	require.FileExists(t, path)
}
