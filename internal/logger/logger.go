// Package logger provides a simple wrapper around slog for structured logging.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is the global logger instance.
var Logger = slog.New(slog.NewTextHandler(os.Stderr, nil))

// Setup replaces the global logger with one writing to w at the given level.
func Setup(w io.Writer, level slog.Level) {
	Logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// LevelFromEnv returns slog.LevelDebug when GLM_DEBUG, DEBUG or RUST_LOG ask for it.
func LevelFromEnv() slog.Level {
	for _, key := range []string{"GLM_DEBUG", "DEBUG", "RUST_LOG"} {
		if v, ok := os.LookupEnv(key); ok {
			if debugValue(v) {
				return slog.LevelDebug
			}
			// First variable that is set decides.
			return slog.LevelInfo
		}
	}
	return slog.LevelInfo
}

func debugValue(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "1" || v == "true" || v == "debug" || strings.Contains(v, "glm")
}

// Error logs an error message.
func Error(msg string, args ...any) {
	Logger.Error(msg, args...)
}

// Info logs an informational message.
func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}

// Warn logs a warning message.
func Warn(msg string, args ...any) {
	Logger.Warn(msg, args...)
}

// Debug logs a debug message.
func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}
