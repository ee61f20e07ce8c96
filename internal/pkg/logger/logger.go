// Package logger builds the process-wide slog.Logger.
package logger

import (
	"io"
	"log/slog"
)

// New returns a JSON logger for production and a human-readable text logger
// for every other environment.
func New(w io.Writer, env string) *slog.Logger {
	if env == "production" {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
