package model

import "time"

// PriorityTier ranks tenants for allocation and conflict arbitration.
type PriorityTier string

const (
	TierStandard PriorityTier = "standard"
	TierPriority PriorityTier = "priority"
	TierCritical PriorityTier = "critical"
)

// Valid reports whether t is one of the known tiers.
func (t PriorityTier) Valid() bool {
	switch t {
	case TierStandard, TierPriority, TierCritical:
		return true
	}
	return false
}

// TenantStatus is the operational state of a tenant.
type TenantStatus string

const (
	TenantActive    TenantStatus = "active"
	TenantSuspended TenantStatus = "suspended"
	TenantCutoff    TenantStatus = "cutoff"
	TenantInactive  TenantStatus = "inactive"
)

// WarningLevel is the compliance state derived from the violation count.
type WarningLevel string

const (
	WarningNone     WarningLevel = "none"
	WarningLow      WarningLevel = "low"
	WarningMedium   WarningLevel = "medium"
	WarningHigh     WarningLevel = "high"
	WarningCritical WarningLevel = "critical"
)

// TenantCapacity is the tenant's share of the hub. AllocatedKW is split 80/20
// into BaseKW and BurstKW by the allocator.
type TenantCapacity struct {
	BaseKW       float64 `json:"base_kw" yaml:"base_kw"`
	BurstKW      float64 `json:"burst_kw" yaml:"burst_kw"`
	AllocatedKW  float64 `json:"allocated_kw" yaml:"allocated_kw"`
	GuaranteedKW float64 `json:"guaranteed_kw" yaml:"guaranteed_kw"`
}

// TotalKW returns base plus burst capacity.
func (c TenantCapacity) TotalKW() float64 { return c.BaseKW + c.BurstKW }

// TenantUsage tracks the live and historical draw of a tenant.
type TenantUsage struct {
	CurrentKW   float64   `json:"current_kw" yaml:"current_kw"`
	PeakKW      float64   `json:"peak_kw" yaml:"peak_kw"`
	AverageKW   float64   `json:"average_kw" yaml:"average_kw"` // trailing average draw
	LastUpdated time.Time `json:"last_updated" yaml:"-"`
}

// TenantPreferences holds tenant opt-ins.
type TenantPreferences struct {
	AllowVPPParticipation bool `json:"allow_vpp_participation" yaml:"allow_vpp_participation"`
}

// ComplianceNote is an audit note appended on each violation.
type ComplianceNote struct {
	At      time.Time `json:"at"`
	Message string    `json:"message"`
}

// Compliance is the violation state of a tenant.
type Compliance struct {
	Violations      int              `json:"violations" yaml:"violations"`
	WarningLevel    WarningLevel     `json:"warning_level" yaml:"warning_level"`
	Notes           []ComplianceNote `json:"notes,omitempty" yaml:"-"`
	LastViolationAt *time.Time       `json:"last_violation_at,omitempty" yaml:"-"`
}

// Throttle describes a temporary capacity reduction.
type Throttle struct {
	Percent float64   `json:"percent"`
	Until   time.Time `json:"until"`
}

// Tenant is a consumer with a capacity allocation within a hub.
type Tenant struct {
	ID                         string             `json:"id" yaml:"id"`
	HubID                      string             `json:"hub_id" yaml:"hub_id"`
	Name                       string             `json:"name" yaml:"name"`
	Status                     TenantStatus       `json:"status" yaml:"status"`
	Capacity                   TenantCapacity     `json:"capacity" yaml:"capacity"`
	Usage                      TenantUsage        `json:"usage" yaml:"usage"`
	PriorityTier               PriorityTier       `json:"priority_tier" yaml:"priority_tier"`
	Attributes                 map[string]float64 `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Preferences                TenantPreferences  `json:"preferences" yaml:"preferences"`
	Compliance                 Compliance         `json:"compliance" yaml:"compliance"`
	Throttle                   *Throttle          `json:"throttle,omitempty" yaml:"-"`
	SuspendedUntil             *time.Time         `json:"suspended_until,omitempty" yaml:"-"`
	RequiresManualReactivation bool               `json:"requires_manual_reactivation" yaml:"-"`
	Version                    int64              `json:"version" yaml:"-"`
	UpdatedAt                  time.Time          `json:"updated_at" yaml:"-"`
}

// HeadroomKW is the unused part of the tenant allocation. It can be negative
// when the tenant is in overage.
func (t Tenant) HeadroomKW() float64 {
	return t.Capacity.TotalKW() - t.Usage.CurrentKW
}

// UtilizationPercent returns current draw relative to base+burst on a 0-100
// scale. A tenant without allocation is reported fully utilized.
func (t Tenant) UtilizationPercent() float64 {
	total := t.Capacity.TotalKW()
	if total <= 0 {
		return 100
	}
	return t.Usage.CurrentKW / total * 100
}

// Blocked reports whether the tenant may not draw capacity at now. A timed
// suspension lifts itself once SuspendedUntil has passed.
func (t Tenant) Blocked(now time.Time) bool {
	switch t.Status {
	case TenantCutoff, TenantInactive:
		return true
	case TenantSuspended:
		if t.RequiresManualReactivation || t.SuspendedUntil == nil {
			return true
		}
		return now.Before(*t.SuspendedUntil)
	}
	return false
}
