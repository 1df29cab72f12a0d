// Package logging builds the slog loggers used by the datahub commands.
package logging

import (
	"io"
	"log/slog"
	"strings"

	"github.com/pkg/errors"
)

const (
	FormatJSON = "json"
	FormatText = "text"
)

type Config struct {
	Level     string `mapstructure:"level"`  // debug, info, warn, error
	Format    string `mapstructure:"format"` // json, text
	AddSource bool   `mapstructure:"add_source"`
}

// ParseLevel accepts slog level names in any case. An empty level is info.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if strings.TrimSpace(s) == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, errors.Wrapf(err, "parse log level %q", s)
	}
	return level, nil
}

// New returns a logger writing to w.
func New(w io.Writer, cfg Config) (*slog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case FormatJSON:
		handler = slog.NewJSONHandler(w, opts)
	case FormatText, "":
		handler = slog.NewTextHandler(w, opts)
	default:
		return nil, errors.Errorf("unknown log format %q", cfg.Format)
	}
	return slog.New(handler), nil
}
