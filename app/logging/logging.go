package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Setup installs a text slog handler on stdout as the process default.
// debug forces the debug level regardless of level.
func Setup(level string, debug bool) *slog.Logger {
	if debug {
		level = "debug"
	}
	logger := New(os.Stdout, level)
	slog.SetDefault(logger)
	return logger
}

func New(w io.Writer, level string) *slog.Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})
	return slog.New(handler)
}

func ParseLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "error":
		return slog.LevelError
	case "warn", "warning":
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
