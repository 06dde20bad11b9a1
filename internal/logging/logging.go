// Package logging configures the node's structured logger (SPEC_FULL.md
// ambient stack): one zerolog.Logger, JSON to a file or console-pretty to
// stdout, shared across every long-running component (applier, p2p,
// storage, the RPC/CLI entry point).
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Config selects the logger's level and destination.
type Config struct {
	Level string // debug, info, warn, error (default info)
	File  string // empty means stdout
	// Pretty switches on zerolog's human-readable console writer; meant
	// for local runs, never for a production daemon writing to File.
	Pretty bool
}

// New builds a zerolog.Logger per Config. The returned io.Closer (nil for
// stdout) must be closed by the caller on shutdown.
func New(cfg Config) (zerolog.Logger, io.Closer, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out io.Writer = os.Stdout
	var closer io.Closer
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Logger{}, nil, err
		}
		out = f
		closer = f
	} else if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()
	return logger, closer, nil
}
