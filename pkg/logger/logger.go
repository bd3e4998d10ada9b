// Package logger sets up the shared zerolog logger.
package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns a service-tagged logger: human-readable console output locally,
// JSON everywhere else. An empty env counts as local so the logger can exist
// before configuration is loaded.
func New(env, service string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	if env == "" || env == "local" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().Timestamp().Str("service", service).Logger()
	}
	return zerolog.New(os.Stdout).
		With().Timestamp().Str("service", service).Logger()
}
