// SPDX-License-Identifier: MPL-2.0

// Package logging installs the process-wide slog logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/charmbracelet/log"
)

// Prefix is printed before every log line.
const Prefix = "lmod"

// New returns a slog logger backed by a charmbracelet/log handler writing to w.
// level is one of debug, info, warn or error. Timestamps are only reported
// when verbose is set.
func New(w io.Writer, level string, verbose bool) (*slog.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	handler := log.NewWithOptions(w, log.Options{
		Prefix:          Prefix,
		Level:           lvl,
		ReportTimestamp: verbose,
	})
	return slog.New(handler), nil
}

// Setup builds a logger with New and makes it the slog default.
func Setup(w io.Writer, level string, verbose bool) (*slog.Logger, error) {
	logger, err := New(w, level, verbose)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}
