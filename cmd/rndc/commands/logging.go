package commands

import (
	"log/slog"
	"os"

	"github.com/zpapi-labs/rndc/internal/config"
)

// newLogger builds a structured logger from cfg, grounded on the
// teacher's cmd/gobfd/main.go newLoggerWithLevel: a JSON handler by
// default, a text handler when cfg.Format == "text", writing to stderr
// so a command's own stdout output (render) stays machine-parseable.
func newLogger(cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: config.ParseLogLevel(cfg.Level)}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
