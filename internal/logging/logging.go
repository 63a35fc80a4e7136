// Package logging configures the process-wide structured logger.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Setup installs an slog logger as the process default and returns it.
// Production gets JSON output for log shippers; anything else gets the
// human-readable text handler. The level comes from LOG_LEVEL.
func Setup(env string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: LevelFromEnv()}
	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// LevelFromEnv maps LOG_LEVEL to an slog level, defaulting to info.
func LevelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
