package observability

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger writes JSON to stdout. Debug level is on in dev or when debug is set.
func NewLogger(env string, debug bool) *slog.Logger {
	return newLogger(os.Stdout, env, debug)
}

func newLogger(w io.Writer, env string, debug bool) *slog.Logger {
	level := slog.LevelInfo

	if env == "dev" || debug {
		level = slog.LevelDebug
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})

	return slog.New(NewTraceHandler(handler)).With("service", "todotask-api")
}
