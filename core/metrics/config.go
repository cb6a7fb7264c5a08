package metrics

import "github.com/kilianp07/powerhub/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks" yaml:"sinks"`
	// PrometheusPort is the listen address of the /metrics endpoint. Empty
	// disables the HTTP exporter.
	PrometheusPort string `json:"prometheus_port" yaml:"prometheus_port"`
}
