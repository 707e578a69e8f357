package hopon

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// ZerologLogger adapts a zerolog.Logger to the SDK's Logger interface.
type ZerologLogger struct {
	logger zerolog.Logger
}

var _ Logger = ZerologLogger{}

// NewZerologLogger wraps an existing zerolog logger.
func NewZerologLogger(logger zerolog.Logger) ZerologLogger {
	return ZerologLogger{logger: logger}
}

// NewConsoleLogger builds a human-readable stderr logger, debug level when
// verbose.
func NewConsoleLogger(verbose bool) ZerologLogger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	logger := zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Logger().Level(level)

	return ZerologLogger{logger: logger}
}

func (z ZerologLogger) Debug(format string, args ...any) {
	z.logger.Debug().Msgf(format, args...)
}

func (z ZerologLogger) Info(format string, args ...any) {
	z.logger.Info().Msgf(format, args...)
}

func (z ZerologLogger) Warn(format string, args ...any) {
	z.logger.Warn().Msgf(format, args...)
}

func (z ZerologLogger) Error(format string, args ...any) {
	z.logger.Error().Msgf(format, args...)
}
