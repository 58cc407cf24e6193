// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

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

// Options controls logger construction.
type Options struct {
	// Level is a zerolog level name (trace, debug, info, warn, error). Empty means info.
	Level string
	// Pretty forces console formatting. Terminals get it automatically.
	Pretty bool
	// Out is the destination (default: os.Stderr).
	Out io.Writer
}

// New builds a logger from opts without touching global state.
func New(opts Options) (zerolog.Logger, zerolog.Level, error) {
	level := zerolog.InfoLevel
	if opts.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return zerolog.Nop(), level, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = parsed
	}

	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	if opts.Pretty || IsTerminal(out) {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen, NoColor: !IsTerminal(out)}
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()
	return logger, level, nil
}

// Setup installs the logger as the global zerolog logger and returns it.
func Setup(opts Options) (zerolog.Logger, error) {
	logger, level, err := New(opts)
	if err != nil {
		return logger, err
	}
	zerolog.SetGlobalLevel(level)
	zerolog.DefaultContextLogger = &logger
	log.Logger = logger
	return logger, nil
}

// IsTerminal reports whether w is a terminal file descriptor.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
