// Package logx builds the zerolog loggers used by the CLI and server.
package logx

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

const consoleTimeFormat = "15:04:05.000"

func init() {
	zerolog.ErrorFieldName = "err"
}

// Config selects the level and output format.
type Config struct {
	Level  string // trace, debug, info, warn, error
	Format string // console or json
	Writer io.Writer
}

// New returns a logger for cfg. Output goes to stderr unless Writer is set so
// command output on stdout stays machine-readable.
func New(cfg Config) zerolog.Logger {
	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}
	var out io.Writer = w
	if !strings.EqualFold(strings.TrimSpace(cfg.Format), "json") {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: consoleTimeFormat, NoColor: !isTerminal(w)}
	}
	return zerolog.New(out).
		Level(ParseLevel(cfg.Level, zerolog.InfoLevel)).
		With().Timestamp().Logger()
}

// ParseLevel maps a level name onto a zerolog level, returning def for
// anything it does not recognise.
func ParseLevel(s string, def zerolog.Level) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return def
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
