package scheduler

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Defaults used when the configuration leaves a schedule empty.
const (
	DefaultSweepSchedule     = "*/5 * * * *"
	DefaultRebalanceSchedule = "0 3 * * *"
)

// Config holds the cron expressions driving the scheduler.
type Config struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	// SweepSchedule runs throttle expiry and the threshold trigger for every hub.
	SweepSchedule string `json:"sweep_schedule" yaml:"sweep_schedule"`
	// RebalanceSchedule applies to policies with a scheduled trigger but no
	// schedule of their own.
	RebalanceSchedule string `json:"rebalance_schedule" yaml:"rebalance_schedule"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.SweepSchedule == "" {
		c.SweepSchedule = DefaultSweepSchedule
	}
	if c.RebalanceSchedule == "" {
		c.RebalanceSchedule = DefaultRebalanceSchedule
	}
}

// Validate checks the cron expressions.
func (c Config) Validate() error {
	for name, expr := range map[string]string{"sweep_schedule": c.SweepSchedule, "rebalance_schedule": c.RebalanceSchedule} {
		if expr == "" {
			continue
		}
		if _, err := cron.ParseStandard(expr); err != nil {
			return fmt.Errorf("scheduler: invalid %s %q: %w", name, expr, err)
		}
	}
	return nil
}

// LoadConfig loads Config from a JSON or YAML file.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()
	return DecodeConfig(f, strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."))
}

// DecodeConfig reads from r to decode a Config.
func DecodeConfig(r io.Reader, format string) (Config, error) {
	var cfg Config
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(&cfg); err != nil {
			return cfg, err
		}
	case "json":
		if err := json.NewDecoder(r).Decode(&cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported format: %s", format)
	}
	return cfg, nil
}
