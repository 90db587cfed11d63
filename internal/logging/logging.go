// Package logging builds the zerolog logger used across the server.
//
// Logs always go to stderr or another non-protocol writer; stdout carries
// the MCP JSON-RPC stream.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/ironsheep/otsu-mcp/internal/config"
)

// New returns a logger for cfg writing to stderr.
func New(cfg config.Config) zerolog.Logger {
	return NewWithWriter(os.Stderr, cfg)
}

// NewWithWriter returns a timestamped logger writing to w. A "console"
// format wraps w in a zerolog.ConsoleWriter; anything else writes JSON.
func NewWithWriter(w io.Writer, cfg config.Config) zerolog.Logger {
	if cfg.LogFormat == "console" {
		w = zerolog.ConsoleWriter{Out: w, NoColor: true}
	}
	return zerolog.New(w).
		Level(ParseLevel(cfg.LogLevel)).
		With().
		Timestamp().
		Logger()
}

// ParseLevel maps a config level name to a zerolog level. Unknown names
// fall back to info.
func ParseLevel(name string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(name)
	if err != nil || name == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// Component returns a child logger tagged with a component field.
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}
