// Package log builds the process-wide zerolog logger.
package log

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns a console logger tagged with the environment. Production runs
// at info level without color; everything else gets debug.
func New(environment string) zerolog.Logger {
	writer := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
		NoColor:    environment == "production",
	}

	level := zerolog.DebugLevel
	if environment == "production" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	return zerolog.New(writer).With().
		Timestamp().
		Str("env", environment).
		Logger()
}
