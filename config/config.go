package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/powerhub/core/compliance"
	"github.com/kilianp07/powerhub/core/metrics"
	"github.com/kilianp07/powerhub/core/scheduler"
	"github.com/kilianp07/powerhub/core/service"
)

type Config struct {
	Logging    LoggingConfig     `json:"logging"`
	Components ComponentsConfig  `json:"components"`
	Metrics    metrics.Config    `json:"metrics"`
	Compliance compliance.Config `json:"compliance"`
	Scheduler  scheduler.Config  `json:"scheduler"`
	// Seed is an optional YAML fixture applied to an empty store at startup.
	Seed string `json:"seed"`
	// SnapshotTimeout bounds loading and committing one operation.
	SnapshotTimeout time.Duration `json:"snapshot_timeout"`
}

// SetDefaults applies defaults to every section.
func (c *Config) SetDefaults() {
	c.Logging.SetDefaults()
	c.Compliance.SetDefaults()
	c.Scheduler.SetDefaults()
	if c.SnapshotTimeout <= 0 {
		c.SnapshotTimeout = service.DefaultSnapshotTimeout
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if err := c.Compliance.Validate(); err != nil {
		return err
	}
	if err := c.Scheduler.Validate(); err != nil {
		return err
	}
	return nil
}

// Load reads a YAML or JSON file, applies K_ prefixed environment overrides
// (K_SCHEDULER__ENABLED=true sets scheduler.enabled), then defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	if err := k.Load(env.Provider("K_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
