package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	return m
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: LevelDebug})

	log.With(Component("approval")).Info("contribution approved",
		ContributionID("c-1"),
		Amount(decimal.RequireFromString("350.00")),
		Int64("points", 3),
		Err(errors.New("boom")),
		Latency(1500*time.Millisecond),
	)

	m := decode(t, &buf)
	assert.Equal(t, "info", m["level"])
	assert.Equal(t, "contribution approved", m["message"])
	assert.Equal(t, "approval", m["component"])
	assert.Equal(t, "c-1", m["contribution_id"])
	assert.Equal(t, "350", m["amount"])
	assert.Equal(t, float64(3), m["points"])
	assert.Equal(t, "boom", m["error"])
	assert.Contains(t, m, "time")
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: LevelWarn})

	log.Info("hidden")
	assert.Zero(t, buf.Len())

	log.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel(" warning "))
	assert.Equal(t, LevelInfo, ParseLevel("nonsense"))
}

func TestContext(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf}).WithRequestID("req-1")

	ctx := WithContext(t.Context(), log)
	FromContext(ctx).Info("hello")

	assert.Equal(t, "req-1", decode(t, &buf)[RequestIDKey])
}

func TestLogger_InfoHidesDebug(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: LevelInfo})

	log.Debug("hidden")
	assert.Zero(t, buf.Len())
	assert.Equal(t, "INFO", LevelInfo.String())
	assert.Equal(t, "UNKNOWN", Level(9).String())
}
