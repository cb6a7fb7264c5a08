package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/powerhub/core/model"
)

// RecordType classifies a history record.
type RecordType string

const (
	TypeAllocationGranted RecordType = "allocation-granted"
	TypeAllocationDenied  RecordType = "allocation-denied"
	TypeRebalanced        RecordType = "rebalanced"
	TypeAllocationUpdated RecordType = "allocation-updated"
	TypeViolation         RecordType = "violation"
	TypeDispatchConflict  RecordType = "vpp-dispatch-conflict"
	TypePolicyApplied     RecordType = "policy-applied"
	TypeViolationsReset   RecordType = "violations-reset"
	TypeTenantReactivated RecordType = "tenant-reactivated"
)

// RequestInfo captures the request that led to a decision.
type RequestInfo struct {
	RequestedKW float64 `json:"requested_kw,omitempty"`
	DeviceID    string  `json:"device_id,omitempty"`
	DeviceType  string  `json:"device_type,omitempty"`
	Purpose     string  `json:"purpose,omitempty"`
}

// Snapshot is the point-in-time context used for later audit and anomaly analysis.
type Snapshot struct {
	TenantUtilizationPercent float64 `json:"tenant_utilization_percent"`
	HubUtilizationPercent    float64 `json:"hub_utilization_percent"`
	HubAvailableKW           float64 `json:"hub_available_kw"`
	IsPeak                   bool    `json:"is_peak"`
	DayOfWeek                string  `json:"day_of_week"`
	Hour                     int     `json:"hour"`
}

// Record is one append-only allocation history entry. Records are never
// mutated after creation.
type Record struct {
	ID            string          `json:"id"`
	Type          RecordType      `json:"type"`
	Timestamp     time.Time       `json:"timestamp"`
	HubID         string          `json:"hub_id"`
	TenantID      string          `json:"tenant_id,omitempty"`
	PolicyID      string          `json:"policy_id,omitempty"`
	Request       *RequestInfo    `json:"request,omitempty"`
	Decision      *model.Decision `json:"decision,omitempty"`
	BeforeKW      float64         `json:"before_kw,omitempty"`
	AfterKW       float64         `json:"after_kw,omitempty"`
	ChangePercent float64         `json:"change_percent,omitempty"`
	Context       *Snapshot       `json:"context,omitempty"`
	Severity      string          `json:"severity,omitempty"`
	Resolution    string          `json:"resolution,omitempty"`
	TriggeredBy   string          `json:"triggered_by,omitempty"`
	Details       map[string]any  `json:"details,omitempty"`
}

// NewRecord returns a record with a fresh identifier.
func NewRecord(t RecordType, hubID string, ts time.Time) Record {
	return Record{ID: uuid.NewString(), Type: t, HubID: hubID, Timestamp: ts}
}

// Query defines filters for retrieving records.
type Query struct {
	Start    time.Time
	End      time.Time
	HubID    string
	TenantID string
	Type     RecordType
}

// Match reports whether r satisfies the query filters.
func (q Query) Match(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.HubID != "" && r.HubID != q.HubID {
		return false
	}
	if q.TenantID != "" && r.TenantID != q.TenantID {
		return false
	}
	if q.Type != "" && r.Type != q.Type {
		return false
	}
	return true
}

// Sink accepts history records. Delivery is best effort: callers log a failed
// Append but never fail the decision it describes.
type Sink interface {
	Append(ctx context.Context, rec Record) error
	Close() error
}

// Store is a Sink that can also be queried.
type Store interface {
	Sink
	Query(ctx context.Context, q Query) ([]Record, error)
}

// NopSink discards all records.
type NopSink struct{}

func (NopSink) Append(context.Context, Record) error { return nil }
func (NopSink) Close() error                         { return nil }
