package logging

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// New creates a zerolog.Logger writing human-readable lines to w.
// Unknown levels fall back to info.
func New(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
	return zerolog.New(out).With().Timestamp().Str("service", "cinder-volume").Logger().Level(lvl)
}

// CompatLogger adapts a zerolog.Logger to goose's logging.CompatLogger.
// Printf output is request tracing, so it is logged at debug level.
type CompatLogger struct {
	Logger zerolog.Logger
}

func (l CompatLogger) Debugf(format string, args ...interface{}) {
	l.Logger.Debug().Msgf(format, args...)
}

func (l CompatLogger) Warningf(format string, args ...interface{}) {
	l.Logger.Warn().Msgf(format, args...)
}

func (l CompatLogger) Printf(format string, args ...interface{}) {
	l.Logger.Debug().Msgf(format, args...)
}
