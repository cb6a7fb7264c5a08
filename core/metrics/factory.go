package metrics

import "github.com/kilianp07/powerhub/core/factory"

var sinkRegistry = factory.NewRegistry[MetricsSink]()

func init() {
	_ = RegisterMetricsSink("nop", func(map[string]any) (MetricsSink, error) { return NopSink{}, nil })
}

// RegisterMetricsSink adds a metrics sink factory identified by name.
func RegisterMetricsSink(name string, f factory.Factory[MetricsSink]) error {
	return sinkRegistry.Register(name, f)
}

// NewMetricsSink creates a MetricsSink from the provided configuration.
func NewMetricsSink(cfgs []factory.ModuleConfig) (MetricsSink, error) {
	if len(cfgs) == 0 {
		return NopSink{}, nil
	}
	if len(cfgs) == 1 {
		return sinkRegistry.Create(cfgs[0])
	}
	sinks := make([]MetricsSink, len(cfgs))
	for i, c := range cfgs {
		s, err := sinkRegistry.Create(c)
		if err != nil {
			return nil, err
		}
		sinks[i] = s
	}
	return NewMultiSink(sinks...), nil
}

// Record helpers dispatch to optional recorders and ignore sinks lacking them.

func RecordRebalance(s MetricsSink, ev RebalanceEvent) error {
	if r, ok := s.(RebalanceRecorder); ok {
		return r.RecordRebalance(ev)
	}
	return nil
}

func RecordViolation(s MetricsSink, ev ViolationEvent) error {
	if r, ok := s.(ViolationRecorder); ok {
		return r.RecordViolation(ev)
	}
	return nil
}

func RecordConflict(s MetricsSink, ev ConflictEvent) error {
	if r, ok := s.(ConflictRecorder); ok {
		return r.RecordConflict(ev)
	}
	return nil
}

func RecordHubUtilization(s MetricsSink, u HubUtilization) error {
	if r, ok := s.(HubUtilizationRecorder); ok {
		return r.RecordHubUtilization(u)
	}
	return nil
}

func RecordAuditFailure(s MetricsSink, component string) error {
	if r, ok := s.(AuditFailureRecorder); ok {
		return r.RecordAuditFailure(component)
	}
	return nil
}
