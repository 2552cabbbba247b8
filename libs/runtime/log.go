package runtime

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/md-rashed-zaman/timely/libs/config"
)

// NewLogger logs to stdout as JSON (LOG_FORMAT=text for local runs) at LOG_LEVEL, default info.
func NewLogger(service string) *slog.Logger {
	return NewLoggerTo(os.Stdout, service, config.String("LOG_LEVEL", "info"), config.String("LOG_FORMAT", "json"))
}

func NewLoggerTo(w io.Writer, service, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var h slog.Handler
	if strings.EqualFold(format, "text") {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h).With("service", service)
}

// ParseLevel maps debug, info, warn and error; anything else is info.
func ParseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
