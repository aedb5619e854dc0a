package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"":        slog.LevelWarn,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.ErrorContains(t, err, `unknown log level "loud"`)
}

func TestNew_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, "warn")
	require.NoError(t, err)

	log.Info("scanning devices")
	log.Warn("image nearly fills device", "ratio", 0.95)

	assert.NotContains(t, buf.String(), "scanning devices")
	assert.Contains(t, buf.String(), "image nearly fills device")
	assert.Contains(t, buf.String(), "ratio=0.95")
}

func TestContext(t *testing.T) {
	assert.Same(t, slog.Default(), FromContext(context.Background()))

	log, err := New(&bytes.Buffer{}, DefaultLevel)
	require.NoError(t, err)
	ctx := AddToContext(context.Background(), log)
	assert.Same(t, log, FromContext(ctx))
}
