// Package logging builds the process logger and classifies common errors.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Options selects the level and output format of the logger.
type Options struct {
	Level  string
	Format string
}

// New returns a logger writing to stderr.
func New(opts Options) *log.Logger {
	return NewWithWriter(os.Stderr, opts)
}

// NewWithWriter returns a logger writing to w.
func NewWithWriter(w io.Writer, opts Options) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Prefix:          "bandgov",
	})

	if lvl, err := log.ParseLevel(strings.ToLower(opts.Level)); err == nil {
		logger.SetLevel(lvl)
	}

	switch strings.ToLower(opts.Format) {
	case "json":
		logger.SetFormatter(log.JSONFormatter)
	case "logfmt":
		logger.SetFormatter(log.LogfmtFormatter)
	default:
		logger.SetFormatter(log.TextFormatter)
	}

	return logger
}

// Discard returns a logger that drops everything; handy in tests.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}
