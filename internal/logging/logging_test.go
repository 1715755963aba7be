package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureJSON points the package logger at a buffer for the test's duration.
func captureJSON(t *testing.T, level zerolog.Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	Init(Config{Level: level, JSON: true, Output: &buf})
	t.Cleanup(func() { Init(DefaultConfig()) })
	return &buf
}

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, zerolog.InfoLevel, cfg.Level)
	assert.False(t, cfg.JSON)
}

func TestDebugConfig(t *testing.T) {
	cfg := DebugConfig()
	assert.Equal(t, zerolog.DebugLevel, cfg.Level)
	assert.True(t, cfg.JSON)
	assert.True(t, cfg.AddSource)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warn"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("bogus"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
}

func TestInitSetsDebugFlag(t *testing.T) {
	captureJSON(t, zerolog.DebugLevel)
	assert.True(t, Debug)

	captureJSON(t, zerolog.InfoLevel)
	assert.False(t, Debug)
}

func TestLoggingFunctions(t *testing.T) {
	buf := captureJSON(t, zerolog.DebugLevel)

	Info("reminder fired", KeyReminderID, "r-1", KeyCount, 2)
	entry := lastEntry(t, buf)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "reminder fired", entry["message"])
	assert.Equal(t, "r-1", entry[KeyReminderID])
	assert.EqualValues(t, 2, entry[KeyCount])

	Warn("skipped", KeyError, errors.New("boom"))
	entry = lastEntry(t, buf)
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "boom", entry[KeyError])

	Error("failed")
	assert.Equal(t, "error", lastEntry(t, buf)["level"])

	DebugLog("tick")
	assert.Equal(t, "debug", lastEntry(t, buf)["level"])
}

func TestLevelFiltering(t *testing.T) {
	buf := captureJSON(t, zerolog.WarnLevel)
	Info("hidden")
	DebugLog("hidden")
	assert.Empty(t, buf.String())
}

func TestContextLoggerWithKeepsFacadeArgs(t *testing.T) {
	buf := captureJSON(t, zerolog.InfoLevel)
	log := FromContext(context.Background()).With(KeyUserID, "u1")

	log.Warn("retrying", KeyError, errors.New("locked"), "sessions", 2)
	entry := lastEntry(t, buf)
	assert.Equal(t, "u1", entry[KeyUserID])
	assert.Equal(t, "locked", entry[KeyError])
	assert.EqualValues(t, 2, entry["sessions"])
}

func TestContextLoggingFunctions(t *testing.T) {
	buf := captureJSON(t, zerolog.DebugLevel)
	ctx := WithRequestID(context.Background(), "req-123")

	InfoContext(ctx, "info")
	assert.Equal(t, "req-123", lastEntry(t, buf)[KeyRequestID])

	WarnContext(context.Background(), "no id")
	_, ok := lastEntry(t, buf)[KeyRequestID]
	assert.False(t, ok)

	ErrorContext(ctx, "err")
	DebugContext(ctx, "debug")
	assert.Equal(t, "debug", lastEntry(t, buf)["level"])
}

func TestContextLogger(t *testing.T) {
	buf := captureJSON(t, zerolog.DebugLevel)
	cl := FromContext(WithRequestID(context.Background(), "abc")).With(KeyMedicationID, "m1")

	assert.Equal(t, "abc", cl.RequestID())
	cl.Info("added")
	entry := lastEntry(t, buf)
	assert.Equal(t, "abc", entry[KeyRequestID])
	assert.Equal(t, "m1", entry[KeyMedicationID])
}

func TestRequestID(t *testing.T) {
	id := GenerateRequestID()
	assert.Len(t, id, 16)
	assert.NotEqual(t, id, GenerateRequestID())

	assert.NotEmpty(t, RequestIDFromContext(NewRequestContext(context.Background())))

	parent, cancel := context.WithCancel(context.Background())
	child := NewRequestContext(parent)
	cancel()
	assert.ErrorIs(t, child.Err(), context.Canceled, "request context follows its parent")
	assert.Empty(t, RequestIDFromContext(context.Background()))
	//nolint:staticcheck // nil context is handled explicitly
	assert.Empty(t, RequestIDFromContext(nil))
}

func TestLogOperation(t *testing.T) {
	buf := captureJSON(t, zerolog.DebugLevel)
	LogOperation("backfill", time.Now())
	entry := lastEntry(t, buf)
	assert.Equal(t, "backfill", entry[KeyOperation])
	assert.Contains(t, entry, KeyDuration)
}

func TestCronLogger(t *testing.T) {
	buf := captureJSON(t, zerolog.DebugLevel)
	cl := CronLogger()

	cl.Info("schedule", "entry", 1)
	assert.Equal(t, "cron: schedule", lastEntry(t, buf)["message"])

	cl.Error(errors.New("panic"), "recovered")
	entry := lastEntry(t, buf)
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "panic", entry[KeyError])
}

// =============================================================================
// Masking
// =============================================================================

func TestMaskURL(t *testing.T) {
	assert.Equal(t, "https://short.io/x", MaskURL("https://short.io/x"))
	masked := MaskURL("https://hooks.slack.com/services/T000/B000/XXXXXXXX")
	assert.Equal(t, "https://hooks.slack.com/servic***", masked)
}

func TestMaskArgs(t *testing.T) {
	args := []any{"url", "https://discord.com/api/webhooks/123/secret-token", "password", "hunter2", KeyCount, 3}
	masked := MaskArgs(args)

	assert.Equal(t, "https://discord.com/api/webhoo***", masked[1])
	assert.Equal(t, "*******", masked[3])
	assert.Equal(t, 3, masked[5])
	// input untouched
	assert.Equal(t, "hunter2", args[3])

	plain := []any{KeyUserID, "u1"}
	assert.Equal(t, plain, MaskArgs(plain))
}

func TestMaskString(t *testing.T) {
	s := MaskString("posting to https://example.com/hooks/abcdefghijklmnopqrstuvwxyz failed")
	assert.NotContains(t, s, "uvwxyz")
	assert.Equal(t, "http://localhost:8080/hook/abcdefghijklmnop", MaskString("http://localhost:8080/hook/abcdefghijklmnop"))
}

func TestIsSensitiveField(t *testing.T) {
	assert.True(t, IsSensitiveField("api_key"))
	assert.True(t, IsSensitiveField("AuthToken"))
	assert.True(t, IsSensitiveField("storage_dsn"))
	assert.False(t, IsSensitiveField(KeyReminderID))
}
