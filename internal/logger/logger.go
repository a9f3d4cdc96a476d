package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// New builds a logger writing human-readable lines to w at the given level.
// Unknown levels fall back to info.
func New(level string, w io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	out := zerolog.ConsoleWriter{Out: w, TimeFormat: "06-01-02 15:04:05.000"}
	return zerolog.New(out).Level(lvl).With().Timestamp().Caller().Logger()
}

// Init installs a stderr logger as the global zerolog logger.
func Init(level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	l := New(level, os.Stderr)
	log.Logger = l
	zerolog.SetGlobalLevel(l.GetLevel())
	return l
}
