package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Environment variables read by Init.
const (
	EnvLevel  = "FB_LOG_LEVEL"
	EnvFormat = "FB_LOG_FORMAT"
)

// Init configures the global logger from the environment.
// FB_LOG_LEVEL is one of trace, debug, info, warn, error (default info).
// FB_LOG_FORMAT=json writes JSON lines to stdout, which is what CloudWatch
// wants; anything else uses the console writer on stderr.
func Init() {
	InitWith(os.Getenv(EnvLevel), os.Getenv(EnvFormat))
}

// InitWith configures the global logger with an explicit level and format.
func InitWith(level, format string) {
	zerolog.SetGlobalLevel(ParseLevel(level))
	log.Logger = zerolog.New(writer(format)).With().Timestamp().Logger()
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func writer(format string) io.Writer {
	if strings.EqualFold(format, "json") {
		return os.Stdout
	}
	return zerolog.ConsoleWriter{Out: os.Stderr}
}
