package metrics

import "time"

// DecisionEvent is one admission decision of the enforcement coordinator.
type DecisionEvent struct {
	HubID       string
	TenantID    string
	Rule        string
	Approved    bool
	RequestedKW float64
	GrantedKW   float64
	IsPeak      bool
	Time        time.Time
}

// MetricsSink records admission decisions. Sinks may implement the optional
// recorder interfaces below for the other engine events.
type MetricsSink interface {
	RecordDecision(ev DecisionEvent) error
}

// RebalanceEvent summarizes one rebalance or allocate pass.
type RebalanceEvent struct {
	HubID    string
	PolicyID string
	Trigger  string
	Method   string
	Changes  int
	MovedKW  float64
	DryRun   bool
	Duration time.Duration
	Time     time.Time
}

// RebalanceRecorder records rebalance passes.
type RebalanceRecorder interface {
	RecordRebalance(ev RebalanceEvent) error
}

// ViolationEvent is emitted after each escalation.
type ViolationEvent struct {
	HubID        string
	TenantID     string
	Violations   int
	WarningLevel string
	Action       string
	Time         time.Time
}

// ViolationRecorder records violation escalations.
type ViolationRecorder interface {
	RecordViolation(ev ViolationEvent) error
}

// ConflictEvent is emitted for each resolved dispatch claim.
type ConflictEvent struct {
	HubID       string
	TenantID    string
	ClaimID     string
	Resolution  string
	ShortfallKW float64
	Time        time.Time
}

// ConflictRecorder records dispatch conflict resolutions.
type ConflictRecorder interface {
	RecordConflict(ev ConflictEvent) error
}

// HubUtilization is a point-in-time view of a hub's capacity.
type HubUtilization struct {
	HubID              string
	UtilizationPercent float64
	AvailableKW        float64
	Time               time.Time
}

// HubUtilizationRecorder records hub capacity gauges.
type HubUtilizationRecorder interface {
	RecordHubUtilization(u HubUtilization) error
}

// AuditFailureRecorder counts history records that could not be written.
type AuditFailureRecorder interface {
	RecordAuditFailure(component string) error
}

// NopSink implements MetricsSink and every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordDecision(DecisionEvent) error        { return nil }
func (NopSink) RecordRebalance(RebalanceEvent) error      { return nil }
func (NopSink) RecordViolation(ViolationEvent) error      { return nil }
func (NopSink) RecordConflict(ConflictEvent) error        { return nil }
func (NopSink) RecordHubUtilization(HubUtilization) error { return nil }
func (NopSink) RecordAuditFailure(string) error           { return nil }

// OrNop returns s, or NopSink when s is nil.
func OrNop(s MetricsSink) MetricsSink {
	if s == nil {
		return NopSink{}
	}
	return s
}
