package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// InitLogger installs the default slog logger from LOG_LEVEL and LOG_FORMAT.
func InitLogger() {
	level := ParseLevel(os.Getenv("LOG_LEVEL"))
	format := ParseFormat(os.Getenv("LOG_FORMAT"))

	slog.SetDefault(slog.New(NewHandler(os.Stdout, level, format)))

	slog.Info("logging.initialized",
		"component", "logging",
		"event", "logger.initialized",
		"level", level.String(),
		"format", format,
	)
}

// NewHandler builds a text or JSON handler writing to w.
func NewHandler(w io.Writer, level slog.Level, format string) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: true,
	}
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// ParseLevel maps a LOG_LEVEL value to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// ParseFormat maps a LOG_FORMAT value to "json" or "text".
func ParseFormat(s string) string {
	if strings.ToLower(strings.TrimSpace(s)) == "json" {
		return "json"
	}
	return "text"
}
