package metrics

// MultiSink fans events out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordDecision forwards the event to all sinks, returning the first error encountered.
func (m *MultiSink) RecordDecision(ev DecisionEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordDecision(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordRebalance forwards rebalance events to sinks that support them.
func (m *MultiSink) RecordRebalance(ev RebalanceEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(RebalanceRecorder); ok {
			if err := rec.RecordRebalance(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordViolation forwards violation events.
func (m *MultiSink) RecordViolation(ev ViolationEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(ViolationRecorder); ok {
			if err := rec.RecordViolation(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordConflict forwards dispatch conflict events.
func (m *MultiSink) RecordConflict(ev ConflictEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(ConflictRecorder); ok {
			if err := rec.RecordConflict(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordHubUtilization forwards capacity gauges.
func (m *MultiSink) RecordHubUtilization(u HubUtilization) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(HubUtilizationRecorder); ok {
			if err := rec.RecordHubUtilization(u); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *MultiSink) RecordAuditFailure(component string) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(AuditFailureRecorder); ok {
			if err := rec.RecordAuditFailure(component); err != nil {
				return err
			}
		}
	}
	return nil
}
