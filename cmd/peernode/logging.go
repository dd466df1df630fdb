package main

import (
	"io"
	"log/slog"
	"strings"

	"github.com/pkg/errors"

	"github.com/Zereker/peerpump"
)

// newLogger builds the process logger from a level and format name.
func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, errors.Wrapf(peerpump.ErrConfig, "log level %q", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, errors.Wrapf(peerpump.ErrConfig, "log format %q", format)
	}
}
