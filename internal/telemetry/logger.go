// Package telemetry provides the structured logger and Prometheus metrics
// registry shared by both binaries.
package telemetry

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds a slog.Logger using either the "json" or "text" handler,
// at the given level ("debug", "info", "warn", "error"; defaults to "info"
// on an unrecognized value).
func NewLogger(format, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
