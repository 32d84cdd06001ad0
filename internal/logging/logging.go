// Package logging builds the zerolog loggers used by the CLI and the plugin.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// New returns a logger writing to w (os.Stderr when nil). format is "console"
// for human output or "json"; an unknown level falls back to info.
func New(level, format string, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if strings.EqualFold(format, "console") || format == "" {
		w = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Str("service", "bundleobf").Logger()
}

// Setup builds a logger with New and installs it as the global logger.
func Setup(level, format string, w io.Writer) zerolog.Logger {
	logger := New(level, format, w)
	log.Logger = logger
	return logger
}

// Messages logs esbuild errors or warnings at lvl.
func Messages(logger zerolog.Logger, lvl zerolog.Level, msgs []api.Message) {
	for _, m := range msgs {
		ev := logger.WithLevel(lvl)
		if m.Location != nil {
			ev = ev.Str("file", m.Location.File).Int("line", m.Location.Line).Int("column", m.Location.Column)
		}
		if m.PluginName != "" {
			ev = ev.Str("plugin", m.PluginName)
		}
		ev.Msg(m.Text)
	}
}
