// ABOUTME: Structured logging configuration using log/slog.
// ABOUTME: Provides Init() to configure the default logger from environment and flags.

package logger

import (
	"log/slog"
	"os"
	"strings"
)

// Init configures the default slog logger. Output goes to stderr so command
// results on stdout stay machine-readable.
// BLOOM_LOG_LEVEL: debug, info, warn, error (default: info)
// BLOOM_LOG_FORMAT: text, json (default: text)
// verbose forces debug level regardless of environment.
func Init(verbose bool) {
	level := parseLevel(os.Getenv("BLOOM_LOG_LEVEL"))
	if verbose {
		level = slog.LevelDebug
	}
	format := strings.ToLower(os.Getenv("BLOOM_LOG_FORMAT"))

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// parseLevel converts a string log level to slog.Level.
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
