package logger

import (
	"strings"

	"github.com/rs/zerolog"

	corelogger "github.com/kilianp07/powerhub/core/logger"
)

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// NopLogger implements Logger with no-op methods.
type NopLogger = corelogger.Nop

// Config selects the global log level and output format.
type Config struct {
	Level string `json:"level"`
	// Format is "json" (default) or "console". APP_ENV=dev forces console.
	Format string `json:"format"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "json"
	}
}

// Configure applies the level and format to every logger created afterwards.
func Configure(cfg Config) error {
	cfg.SetDefaults()
	lvl, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(lvl)
	consoleOutput = cfg.Format == "console"
	return nil
}

// New returns a Logger for the given component. The environment is detected via
// the APP_ENV variable.
func New(component string) Logger {
	return NewZerologLogger(component)
}
