// Package logger sets up the global slog logger for chefctl.
package logger

import (
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// Initialize sets up the global slog logger. Interactive runs get a
// colorized handler; everything else (CI, cron, piped output) gets JSON.
func Initialize(level slog.Level) *slog.Logger {
	var handler slog.Handler

	if isTerminal(os.Stderr) && os.Getenv("NO_COLOR") == "" {
		handler = tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		})
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Debug("logger initialized", "level", level)

	return logger
}

func isTerminal(f *os.File) bool {
	fileInfo, err := f.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}
