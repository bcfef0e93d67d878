// Package logging provides structured diagnostics for ledgersync using
// zerolog. Console output is used on terminals and JSON elsewhere.
//
// User-facing progress (counts, added/removed contracts) is printed to
// stdout by the commands; this logger carries the debug trail on stderr:
// discovery decisions, sheet reads and writes, retries.
//
// Example usage:
//
//	log := logging.Default()
//	log.Debug().Str("sheet", "FOK_DATA").Int("rows", 120).Msg("sheet read")
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// defaultLogger is the global logger instance.
	defaultLogger zerolog.Logger

	// Nop logger for discarding output.
	Nop = zerolog.Nop()
)

func init() {
	defaultLogger = New(os.Stderr, levelFromEnv(), "auto")
}

// Default returns the default global logger.
func Default() *zerolog.Logger {
	return &defaultLogger
}

// SetDefault sets the default global logger.
func SetDefault(logger zerolog.Logger) {
	defaultLogger = logger
	log.Logger = logger
}

// Setup configures the default logger from the command line options.
// Format is "console", "json" or "auto" (console on a terminal).
func Setup(level, format string) {
	lvl := ParseLevel(level)
	zerolog.SetGlobalLevel(lvl)
	SetDefault(New(os.Stderr, lvl, format))
}

// New creates a logger writing to w.
func New(w io.Writer, level zerolog.Level, format string) zerolog.Logger {
	var writer io.Writer = w

	switch strings.ToLower(format) {
	case "console", "pretty":
		writer = consoleWriter(w)
	case "json":
	default:
		if f, ok := w.(*os.File); ok && isatty(f) && os.Getenv("LOG_FORMAT") != "json" {
			writer = consoleWriter(w)
		}
	}

	logger := zerolog.New(writer).
		Level(level).
		With().
		Timestamp().
		Logger()

	if level <= zerolog.DebugLevel {
		logger = logger.With().Caller().Logger()
	}
	return logger
}

// ParseLevel parses a level name, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "warning":
		return zerolog.WarnLevel
	case "off", "none":
		return zerolog.Disabled
	}
	l, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return l
}

func consoleWriter(w io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.Kitchen,
		NoColor:    os.Getenv("NO_COLOR") != "",
	}
}

// isatty checks if f is a terminal.
func isatty(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

func levelFromEnv() zerolog.Level {
	if v := os.Getenv("LEDGERSYNC_LOG_LEVEL"); v != "" {
		return ParseLevel(v)
	}
	return ParseLevel(os.Getenv("LOG_LEVEL"))
}
