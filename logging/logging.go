// Package logging builds the file-backed loggers used by every component.
// The terminal belongs to the UI, so nothing here writes to stdout.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
)

// Open creates (or appends to) the log file at path and returns a logger
// writing to it. The caller closes the returned file on exit.
func Open(path, level string) (*log.Logger, io.Closer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "error opening log file %s", path)
	}
	return New(f, level), f, nil
}

// New returns a timestamped logger on w. Unknown levels fall back to info.
func New(w io.Writer, level string) *log.Logger {
	l := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Level:           ParseLevel(level),
	})
	return l
}

func ParseLevel(level string) log.Level {
	lvl, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// Factory hands out component loggers, each with its own prefix and an
// optional level override.
type Factory struct {
	base   *log.Logger
	levels map[string]log.Level
}

func NewFactory(base *log.Logger, componentLevels map[string]string) *Factory {
	levels := make(map[string]log.Level, len(componentLevels))
	for name, lvl := range componentLevels {
		levels[strings.ToLower(name)] = ParseLevel(lvl)
	}
	return &Factory{base: base, levels: levels}
}

// For returns the logger for component.
func (f *Factory) For(component string) *log.Logger {
	l := f.base.WithPrefix(component)
	if lvl, ok := f.levels[strings.ToLower(component)]; ok {
		l.SetLevel(lvl)
	}
	return l
}
