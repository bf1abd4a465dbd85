package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARNING"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Output: &buf, Level: slog.LevelInfo, Format: FormatJSON})

	l.Info("rate resolved", CurrencyPair("SAR", "EGP"), Source("cache"))
	l.Debug("hidden")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "rate resolved", entry["msg"])
	assert.Equal(t, "SAR/EGP", entry["pair"])
	assert.Equal(t, "cache", entry["source"])
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Output: &buf, Level: slog.LevelDebug, Format: FormatText})

	l.Debug("trial linked", TrialRequestID("tr-1"), Err(errors.New("boom")))

	out := buf.String()
	assert.Contains(t, out, "trial_request_id=tr-1")
	assert.Contains(t, out, "error=boom")
}

func TestContextRoundTrip(t *testing.T) {
	l := New(DefaultOptions())
	ctx := WithContext(context.Background(), l)

	assert.Same(t, l, FromContext(ctx))
	assert.Same(t, slog.Default(), FromContext(context.Background()))
}
