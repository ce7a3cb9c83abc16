// Package log builds the zerolog loggers used across pagemd.
package log

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// SetLevel sets the global log level from its name (debug, info, warn, ...).
func SetLevel(name string) error {
	lvl, err := zerolog.ParseLevel(name)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(lvl)
	return nil
}

// NewLogger returns a logger tagged with component. It writes human
// readable lines when stderr is a terminal and JSON otherwise.
func NewLogger(component string) zerolog.Logger {
	var w io.Writer = os.Stderr
	if isatty.IsTerminal(os.Stderr.Fd()) {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	}
	return NewLoggerTo(w, component)
}

// NewLoggerTo returns a JSON logger tagged with component writing to w.
func NewLoggerTo(w io.Writer, component string) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Str("component", component).Logger()
}
