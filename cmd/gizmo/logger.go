package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lmittmann/tint"
)

// createSessionLogger creates a logger that doesn't interfere with the
// interactive prompt by writing to a file instead of stdout/stderr
func createSessionLogger(logLevel, logFile string) *slog.Logger {
	if logFile == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
		// If we can't create log directory, use discard logger
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return slog.New(slog.NewJSONHandler(file, &slog.HandlerOptions{
		Level: parseLogLevel(logLevel),
	}))
}

// createCLILogger creates a logger for one-shot commands writing to stderr
func createCLILogger(logLevel string) *slog.Logger {
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level: parseLogLevel(logLevel),
	}))
}

// parseLogLevel converts string log level to slog.Level
func parseLogLevel(levelStr string) slog.Level {
	switch levelStr {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
