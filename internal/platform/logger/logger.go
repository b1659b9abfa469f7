package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LoggerConfig holds the settings used to build the application logger.
type LoggerConfig struct {
	// Level is one of debug, info, warn or error (case-insensitive).
	Level string
	// Output defaults to os.Stdout when nil.
	Output io.Writer
}

// ParseLevel converts a configured level name into a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}

// Setup initializes and configures the application's logging system based on
// the provided configuration. It creates a structured JSON logger with the
// appropriate log level and sets it as the default logger for the application.
//
// An unknown level falls back to info; the returned logger is still usable and
// a warning is written through it.
func Setup(cfg LoggerConfig) (*slog.Logger, error) {
	level, levelErr := ParseLevel(cfg.Level)

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	logger := slog.New(handler)

	// Allows slog.Info and friends to be used directly.
	slog.SetDefault(logger)

	if levelErr != nil {
		logger.Warn("invalid log level configured, using default level",
			"configured_level", cfg.Level,
			"default_level", "info")
	}

	return logger, nil
}
