// SPDX-License-Identifier: MPL-2.0

// Package logging builds the charmbracelet logger shared by dval components.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

// LevelTrace is accepted by ParseLevel. It logs at debug level and adds
// caller locations.
const LevelTrace = "trace"

// ErrInvalidLevel is returned for unknown level names.
var ErrInvalidLevel = errors.New("invalid log level")

type (
	// Options configures New.
	Options struct {
		// Level is trace, debug, info, warn or error. Empty means info.
		Level string
		// File, when set, receives a copy of every line.
		File string
		// Prefix is shown before each message.
		Prefix string
		// Writer is the primary sink. Nil means stderr.
		Writer io.Writer
	}

	nopCloser struct{}
)

func (nopCloser) Close() error { return nil }

// ParseLevel maps a level name to a charm level. trace reports whether
// caller locations should be logged.
func ParseLevel(name string) (level log.Level, trace bool, err error) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "":
		return log.InfoLevel, false, nil
	case LevelTrace:
		return log.DebugLevel, true, nil
	case "warning":
		name = "warn"
	}
	level, err = log.ParseLevel(name)
	if err != nil {
		return log.InfoLevel, false, fmt.Errorf("%q: %w", name, ErrInvalidLevel)
	}
	return level, false, nil
}

// New returns a logger for opts and a closer for the log file, if any.
func New(opts Options) (*log.Logger, io.Closer, error) {
	level, trace, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = io.MultiWriter(w, f)
		closer = f
	}

	logger := log.NewWithOptions(w, log.Options{
		Level:           level,
		Prefix:          opts.Prefix,
		ReportTimestamp: true,
		ReportCaller:    trace,
	})
	return logger, closer, nil
}

// SetDefault installs l as the charm default and as the slog default
// handler.
func SetDefault(l *log.Logger) {
	log.SetDefault(l)
	slog.SetDefault(slog.New(l))
}
