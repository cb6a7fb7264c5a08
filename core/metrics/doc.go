// Package metrics defines the sinks engine components report to. Sinks like
// the Prometheus and InfluxDB ones in infra/metrics record admission
// decisions, rebalance passes, violations and dispatch conflicts, and can be
// combined with NewMultiSink. NewMetricsSink returns a MultiSink automatically
// when several sinks are configured.
package metrics
