package logging

import "github.com/robfig/cron/v3"

// cronLogger routes cron's internal logging through the package logger.
type cronLogger struct{}

// CronLogger returns a cron.Logger backed by the package logger. Cron's
// chatty info lines are logged at DEBUG.
func CronLogger() cron.Logger {
	return cronLogger{}
}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	DebugLog("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	Error("cron: "+msg, append([]any{KeyError, err}, keysAndValues...)...)
}
