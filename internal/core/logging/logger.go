// Package logging holds zerolog helpers shared by the dispatcher and the CLI.
package logging

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Component creates a new logger with a component identifier.
// Uses the "cmp" key for consistency with zerolog conventions.
func Component(name string) zerolog.Logger {
	return log.With().Str("cmp", name).Logger()
}

// Worker derives a logger for one pool worker from parent.
func Worker(parent zerolog.Logger, workerID int) zerolog.Logger {
	return parent.With().Int("worker", workerID).Logger()
}
