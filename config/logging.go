package config

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/kilianp07/powerhub/infra/logger"
)

// LoggingConfig defines the level and output format of the service logs.
type LoggingConfig struct {
	// Level is a zerolog level name: trace, debug, info, warn or error.
	Level string `json:"level"`
	// Format is "json" or "console".
	Format string `json:"format"`
}

// SetDefaults applies sane defaults.
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "json"
	}
}

// Validate checks mandatory fields.
func (c LoggingConfig) Validate() error {
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Level)); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if c.Format != "json" && c.Format != "console" {
		return fmt.Errorf("logging: unknown format %s", c.Format)
	}
	return nil
}

// Logger converts the section to the logger package configuration.
func (c LoggingConfig) Logger() logger.Config {
	return logger.Config{Level: c.Level, Format: c.Format}
}
