package observability

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger: JSON on stdout, debug level in dev,
// with trace/span ids stamped onto records that carry an active span.
func NewLogger(env string) *slog.Logger {
	level := slog.LevelInfo

	if env == "dev" {
		level = slog.LevelDebug
	}

	base := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})

	return slog.New(NewTraceHandler(base))
}
