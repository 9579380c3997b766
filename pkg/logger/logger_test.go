package logger

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conduithttp/pkg/httpx"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestInitWithFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conduit.log")
	t.Setenv("CONDUIT_LOG_SINK", "file:"+path)
	t.Setenv("CONDUIT_LOG_LEVEL", "error")

	InitWithLevel("debug")
	Debug("visible_debug", "k", "v")
	Sync()

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "visible_debug")
	assert.Contains(t, string(b), "k=v")

	Init()
	Info("hidden_info")
	Sync()
	b, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(b), "hidden_info"))
}

func TestSafeHeadersRedacts(t *testing.T) {
	table := httpx.NewHeaderTable([]httpx.HeaderLine{
		{Name: "Authorization", Value: "Bearer secret"},
		{Name: "Accept", Value: "text/html"},
		{Name: "cookie", Value: "sid=1"},
	})
	got := SafeHeaders(table)
	assert.Equal(t, "Authorization=<redacted>; Accept=text/html; cookie=<redacted>", got)
	assert.NotContains(t, got, "secret")
}
