// Package logging builds the process-wide slog logger used by every binary.
package logging

import (
	"log/slog"
	"os"
)

// Init installs a default *slog.Logger: text output at debug level for
// local development, JSON at info level otherwise. serviceName and env are
// attached to every record.
func Init(serviceName, env string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	var handler slog.Handler
	if env == "local" {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler).With("service", serviceName, "env", env)
	slog.SetDefault(logger)
	return logger
}
