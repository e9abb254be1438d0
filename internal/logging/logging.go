// Package logging builds the process logger from environment settings.
package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
)

// Output formats.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Settings control the logger.
type Settings struct {
	Level  string `env:"ERA_LOG_LEVEL" envDefault:"info"`
	Format string `env:"ERA_LOG_FORMAT" envDefault:"console"`
}

// ParseEnv loads Settings from environment variables.
func ParseEnv() (Settings, error) {
	var s Settings
	if err := env.Parse(&s); err != nil {
		return Settings{}, fmt.Errorf("parse env: %w", err)
	}
	return s, nil
}

// New returns a logger writing to w.
func New(s Settings, w io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(s.Level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("log level %q: %w", s.Level, err)
	}
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	switch strings.ToLower(s.Format) {
	case "", FormatConsole:
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	case FormatJSON:
	default:
		return zerolog.Nop(), fmt.Errorf("log format %q: unknown", s.Format)
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}
