// Package logging installs the process-wide slog handler.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Setup configures slog for the given environment. Development gets colored
// console output, everything else gets JSON lines on stdout.
func Setup(environment, level string) {
	slog.SetDefault(New(os.Stderr, os.Stdout, environment, ParseLevel(level)))
}

func New(console, structured io.Writer, environment string, level slog.Level) *slog.Logger {
	if environment == "development" {
		return slog.New(tint.NewHandler(console, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
			AddSource:  true,
		}))
	}
	return slog.New(slog.NewJSONHandler(structured, &slog.HandlerOptions{Level: level}))
}

func ParseLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
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
