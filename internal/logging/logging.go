// Package logging configures the process-wide zerolog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

// Options controls Setup.
type Options struct {
	Level string
	JSON  bool
	// Out defaults to os.Stderr.
	Out io.Writer
}

// ParseLevel accepts zerolog level names plus "warning". Empty means info.
func ParseLevel(s string) (zerolog.Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "":
		return zerolog.InfoLevel, nil
	case "warning":
		return zerolog.WarnLevel, nil
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q", s)
	}
	return lvl, nil
}

// Setup installs the global logger and level. A console writer is used when
// JSON is false and the output is a terminal.
func Setup(opts Options) (zerolog.Logger, error) {
	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		return log.Logger, err
	}
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	l := New(out, opts.JSON || !isTerminal(out))
	zerolog.SetGlobalLevel(lvl)
	log.Logger = l
	return l, nil
}

// New builds a timestamped logger writing JSON lines, or human-readable
// console output when json is false.
func New(out io.Writer, json bool) zerolog.Logger {
	if !json {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
