package main

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"

	"github.com/Zereker/tcpsub"
)

// zlogger adapts a zerolog.Logger to tcpsub.Logger.
type zlogger struct {
	l zerolog.Logger
}

var _ tcpsub.Logger = zlogger{}

func (z zlogger) Debug(msg string, args ...any) { z.l.Debug().Fields(args).Msg(msg) }
func (z zlogger) Info(msg string, args ...any)  { z.l.Info().Fields(args).Msg(msg) }
func (z zlogger) Warn(msg string, args ...any)  { z.l.Warn().Fields(args).Msg(msg) }
func (z zlogger) Error(msg string, args ...any) { z.l.Error().Fields(args).Msg(msg) }

// newLogger writes human-readable output to a terminal and JSON lines otherwise.
func newLogger(level string) zlogger {
	var w io.Writer = os.Stderr
	if isatty.IsTerminal(os.Stderr.Fd()) {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	return zlogger{l: zerolog.New(w).Level(lvl).With().Timestamp().Logger()}
}
