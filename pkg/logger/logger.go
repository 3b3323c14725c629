// Package logger owns the process-wide zerolog logger. Packages log through
// github.com/rs/zerolog/log, which always points at Log.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
)

// Format selects how log lines are encoded.
type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

const consoleTimeFormat = "2006-01-02 15:04:05"

// Log is the global logger instance
var Log zerolog.Logger

func init() {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimeFieldFormat = time.RFC3339Nano
	install(newLogger(os.Stdout, FormatConsole), zerolog.InfoLevel)
}

// ParseFormat maps LOG_FORMAT to a Format; empty means console.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatConsole:
		return FormatConsole, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return FormatConsole, fmt.Errorf("unknown log format %q", s)
}

// Configure rebuilds the global logger writing to w.
func Configure(w io.Writer, format Format, level string) {
	install(newLogger(w, format), parseLevel(level))
}

// SetLevel changes the level of the current logger.
func SetLevel(level string) {
	install(Log, parseLevel(level))
}

func newLogger(w io.Writer, format Format) zerolog.Logger {
	if format != FormatJSON {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: consoleTimeFormat}
	}
	return zerolog.New(w).With().Timestamp().Caller().Logger()
}

func parseLevel(s string) zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || s == "" {
		Log.Warn().Str("level", s).Msg("invalid log level, defaulting to info")
		return zerolog.InfoLevel
	}
	return level
}

func install(l zerolog.Logger, level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
	Log = l.Level(level)
	log.Logger = Log
}
