package logging

import (
	"io"
	"log/slog"
	"strings"
)

// New создает логгер: текстовый формат, для продакшена JSON
func New(w io.Writer, env, level string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
	}

	var handler slog.Handler = slog.NewTextHandler(w, opts)
	if env == "production" {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler)
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
