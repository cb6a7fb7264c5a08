package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/powerhub/core/factory"
	coremetrics "github.com/kilianp07/powerhub/core/metrics"
)

// InfluxConfig holds the connection settings of the influx sink.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// SetDefaults applies sane defaults.
func (c *InfluxConfig) SetDefaults() {
	if c.URL == "" {
		c.URL = "http://localhost:8086"
	}
	if c.Bucket == "" {
		c.Bucket = "powerhub"
	}
}

// Validate checks mandatory fields.
func (c InfluxConfig) Validate() error {
	if c.Org == "" {
		return fmt.Errorf("influx: org is required")
	}
	return nil
}

// init registers the prometheus and influx sinks; "nop" is built in.
func init() {
	_ = coremetrics.RegisterMetricsSink("prometheus", func(map[string]any) (coremetrics.MetricsSink, error) {
		return NewPromSinkWithRegistry(coremetrics.Config{}, prometheus.DefaultRegisterer)
	})

	_ = coremetrics.RegisterMetricsSink("influx", func(conf map[string]any) (coremetrics.MetricsSink, error) {
		var c InfluxConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		c.SetDefaults()
		if err := c.Validate(); err != nil {
			return nil, err
		}
		return NewInfluxSinkWithFallback(c.URL, c.Token, c.Org, c.Bucket), nil
	})
}
