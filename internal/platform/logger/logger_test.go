package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/phrazzld/gapfill-api/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupFormats(t *testing.T) {
	original := slog.Default()
	t.Cleanup(func() { slog.SetDefault(original) })

	var jsonOut bytes.Buffer
	l := setup(config.ServerConfig{LogLevel: "warn", LogFormat: "json"}, &jsonOut)
	l.Info("hidden")
	l.Warn("shown", "key", "value")
	assert.NotContains(t, jsonOut.String(), "hidden")
	assert.Contains(t, jsonOut.String(), `"msg":"shown"`)
	assert.Same(t, l, slog.Default())

	var textOut bytes.Buffer
	l = setup(config.ServerConfig{LogLevel: "debug", LogFormat: "text"}, &textOut)
	l.Debug("plain")
	assert.True(t, strings.Contains(textOut.String(), "msg=plain"))
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for name, want := range tests {
		got, ok := ParseLevel(name)
		assert.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}

	got, ok := ParseLevel("loud")
	assert.False(t, ok)
	assert.Equal(t, slog.LevelInfo, got)
}

func TestContextLogger(t *testing.T) {
	t.Parallel()

	fallback, _ := NewTestLogger(t)
	scoped, buf := NewTestLogger(t)

	assert.Same(t, fallback, FromContextOrDefault(context.Background(), fallback))
	assert.NotNil(t, FromContextOrDefault(context.Background(), nil))

	ctx := WithLogger(context.Background(), scoped.With("trace_id", "abc"))
	FromContextOrDefault(ctx, fallback).Info("scoped message")

	entries, err := buf.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "abc", entries[0]["trace_id"])
	AssertLogContains(t, buf, "scoped message")
}
