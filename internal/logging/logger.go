// Package logging provides structured logging for medremind.
// It wraps zerolog behind a small package-level facade: console output for
// the CLI, JSON for the daemon log file.
package logging

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	// defaultLogger is the package-level logger instance.
	defaultLogger zerolog.Logger
	loggerMu      sync.RWMutex

	// Debug indicates if debug mode is enabled.
	Debug bool
)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
	defaultLogger = newLogger(DefaultConfig())
}

// Config holds logger configuration.
type Config struct {
	Level     zerolog.Level // Minimum log level
	JSON      bool          // Use JSON output format
	Output    io.Writer     // Output destination (default: stderr)
	AddSource bool          // Include source file and line number
}

// DefaultConfig returns the default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  zerolog.InfoLevel,
		Output: os.Stderr,
	}
}

// DebugConfig returns a configuration suitable for debug mode.
func DebugConfig() Config {
	return Config{
		Level:     zerolog.DebugLevel,
		JSON:      true,
		Output:    os.Stderr,
		AddSource: true,
	}
}

// ParseLevel parses a level name, falling back to info.
func ParseLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func newLogger(cfg Config) zerolog.Logger {
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if !cfg.JSON {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.Kitchen}
	}

	ctx := zerolog.New(output).Level(cfg.Level).With().Timestamp()
	if cfg.AddSource {
		ctx = ctx.Caller()
	}
	return ctx.Logger()
}

// Init initializes the global logger with the given configuration.
func Init(cfg Config) {
	logger := newLogger(cfg)

	loggerMu.Lock()
	defer loggerMu.Unlock()
	defaultLogger = logger
	Debug = cfg.Level <= zerolog.DebugLevel
}

// InitDebug initializes the logger in debug mode with JSON output.
func InitDebug() {
	Init(DebugConfig())
}

// Logger returns the current logger instance.
func Logger() *zerolog.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	l := defaultLogger
	return &l
}

// Info logs at INFO level. Args are key/value pairs.
func Info(msg string, args ...any) {
	Logger().Info().Fields(MaskArgs(args)).Msg(msg)
}

// DebugLog logs at DEBUG level.
func DebugLog(msg string, args ...any) {
	Logger().Debug().Fields(MaskArgs(args)).Msg(msg)
}

// Warn logs at WARN level.
func Warn(msg string, args ...any) {
	Logger().Warn().Fields(MaskArgs(args)).Msg(msg)
}

// Error logs at ERROR level.
func Error(msg string, args ...any) {
	Logger().Error().Fields(MaskArgs(args)).Msg(msg)
}

// InfoContext logs at INFO level with the request id from ctx.
func InfoContext(ctx context.Context, msg string, args ...any) {
	LoggerFromContext(ctx).Info().Fields(MaskArgs(args)).Msg(msg)
}

// DebugContext logs at DEBUG level with the request id from ctx.
func DebugContext(ctx context.Context, msg string, args ...any) {
	LoggerFromContext(ctx).Debug().Fields(MaskArgs(args)).Msg(msg)
}

// WarnContext logs at WARN level with the request id from ctx.
func WarnContext(ctx context.Context, msg string, args ...any) {
	LoggerFromContext(ctx).Warn().Fields(MaskArgs(args)).Msg(msg)
}

// ErrorContext logs at ERROR level with the request id from ctx.
func ErrorContext(ctx context.Context, msg string, args ...any) {
	LoggerFromContext(ctx).Error().Fields(MaskArgs(args)).Msg(msg)
}

// Common structured logging fields.
const (
	KeyRequestID    = "request_id"
	KeyOperation    = "op"
	KeyDuration     = "duration_ms"
	KeyError        = "error"
	KeyUserID       = "user_id"
	KeyMedicationID = "medication_id"
	KeyReminderID   = "reminder_id"
	KeyTime         = "time"
	KeyWebhook      = "webhook"
	KeyStatus       = "status"
	KeyCount        = "count"
	KeyEvent        = "event"
)

// LogOperation logs an operation and its duration at DEBUG level.
// Usage: defer LogOperation("backfill", time.Now())
func LogOperation(op string, start time.Time, args ...any) {
	allArgs := append([]any{KeyOperation, op, KeyDuration, time.Since(start).Milliseconds()}, args...)
	DebugLog("operation", allArgs...)
}
