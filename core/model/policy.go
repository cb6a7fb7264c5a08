package model

import "time"

// PolicyState is the lifecycle state of a capacity policy.
type PolicyState string

const (
	PolicyDraft    PolicyState = "draft"
	PolicyActive   PolicyState = "active"
	PolicyInactive PolicyState = "inactive"
	PolicyArchived PolicyState = "archived"
)

// AllocationMethod selects the fair-share algorithm.
type AllocationMethod string

const (
	MethodEqualSplit    AllocationMethod = "equal-split"
	MethodProportional  AllocationMethod = "proportional"
	MethodWeighted      AllocationMethod = "weighted"
	MethodHistorical    AllocationMethod = "historical-usage"
	MethodPriorityBased AllocationMethod = "priority-based"
	MethodTiered        AllocationMethod = "tiered"
)

// EnforcementType selects how a request above threshold is handled.
type EnforcementType string

const (
	EnforceSoftCap  EnforcementType = "soft-cap"
	EnforceHardCap  EnforcementType = "hard-cap"
	EnforceThrottle EnforcementType = "throttle"
	EnforceQueue    EnforcementType = "queue"
	EnforcePenalty  EnforcementType = "penalty"
)

// Valid reports whether t is a supported enforcement type.
func (t EnforcementType) Valid() bool {
	switch t {
	case EnforceSoftCap, EnforceHardCap, EnforceThrottle, EnforceQueue, EnforcePenalty:
		return true
	}
	return false
}

// ViolationAction is the action applied to a tenant after a violation.
type ViolationAction string

const (
	ActionWarn     ViolationAction = "warn"
	ActionThrottle ViolationAction = "throttle"
	ActionSuspend  ViolationAction = "suspend"
	ActionCutoff   ViolationAction = "cutoff"
)

// Valid reports whether a is a known violation action.
func (a ViolationAction) Valid() bool {
	switch a {
	case ActionWarn, ActionThrottle, ActionSuspend, ActionCutoff:
		return true
	}
	return false
}

// RebalanceTrigger names what caused a rebalance request.
type RebalanceTrigger string

const (
	TriggerScheduled    RebalanceTrigger = "scheduled"
	TriggerThreshold    RebalanceTrigger = "threshold"
	TriggerTenantChange RebalanceTrigger = "tenant-change"
	TriggerManual       RebalanceTrigger = "manual"
)

// UsageBand maps a trailing-average draw range to a capacity ceiling.
type UsageBand struct {
	MinKW        float64 `json:"min_kw" yaml:"min_kw"`
	MaxKW        float64 `json:"max_kw" yaml:"max_kw"`
	AllocationKW float64 `json:"allocation_kw" yaml:"allocation_kw"`
}

// AllocationParams parameterizes the allocation methods.
type AllocationParams struct {
	// WeightAttribute names the tenant attribute used by the proportional
	// method. Defaults to floorArea.
	WeightAttribute  string                   `json:"weight_attribute,omitempty" yaml:"weight_attribute,omitempty"`
	TierPercentages  map[PriorityTier]float64 `json:"tier_percentages,omitempty" yaml:"tier_percentages,omitempty"`
	Bands            []UsageBand              `json:"bands,omitempty" yaml:"bands,omitempty"`
	BaseAllocationKW float64                  `json:"base_allocation_kw,omitempty" yaml:"base_allocation_kw,omitempty"`
}

type AllocationRule struct {
	Method AllocationMethod `json:"method" yaml:"method"`
	Params AllocationParams `json:"params" yaml:"params"`
}

type EnforcementRule struct {
	Type             EnforcementType `json:"type" yaml:"type"`
	ThresholdPercent float64         `json:"threshold_percent" yaml:"threshold_percent"`
	Action           ViolationAction `json:"action" yaml:"action"`
	ThrottlePercent  float64         `json:"throttle_percent,omitempty" yaml:"throttle_percent,omitempty"`
}

type RebalanceRule struct {
	Enabled                     bool             `json:"enabled" yaml:"enabled"`
	Trigger                     RebalanceTrigger `json:"trigger" yaml:"trigger"`
	UtilizationThresholdPercent float64          `json:"utilization_threshold_percent" yaml:"utilization_threshold_percent"`
	FairnessMetric              string           `json:"fairness_metric,omitempty" yaml:"fairness_metric,omitempty"`
	// Schedule is a standard cron expression used with the scheduled trigger.
	Schedule string `json:"schedule,omitempty" yaml:"schedule,omitempty"`
}

type OveragePolicy struct {
	Allowed           bool    `json:"allowed" yaml:"allowed"`
	MaxOveragePercent float64 `json:"max_overage_percent" yaml:"max_overage_percent"`
	RateMultiplier    float64 `json:"rate_multiplier" yaml:"rate_multiplier"`
}

// PriorityOverride pins a tenant's priority, optionally until ExpiresAt.
type PriorityOverride struct {
	TenantID  string       `json:"tenant_id" yaml:"tenant_id"`
	Priority  PriorityTier `json:"priority" yaml:"priority"`
	ExpiresAt *time.Time   `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
	Reason    string       `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Expired reports whether the override no longer applies at now.
func (o PriorityOverride) Expired(now time.Time) bool {
	return o.ExpiresAt != nil && !now.Before(*o.ExpiresAt)
}

type VPPCoordination struct {
	BufferPercent float64 `json:"buffer_percent" yaml:"buffer_percent"`
	Priority      string  `json:"priority" yaml:"priority"`
}

// TimeOfDayRule scales grants during a window of hours [StartHour, EndHour) on
// the listed days. An empty Days list matches every day.
type TimeOfDayRule struct {
	Days       []time.Weekday `json:"days,omitempty" yaml:"days,omitempty"`
	StartHour  int            `json:"start_hour" yaml:"start_hour"`
	EndHour    int            `json:"end_hour" yaml:"end_hour"`
	Multiplier float64        `json:"multiplier" yaml:"multiplier"`
}

// Matches reports whether the rule covers t.
func (r TimeOfDayRule) Matches(t time.Time) bool {
	if len(r.Days) > 0 {
		found := false
		for _, d := range r.Days {
			if d == t.Weekday() {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	h := t.Hour()
	if r.StartHour <= r.EndHour {
		return h >= r.StartHour && h < r.EndHour
	}
	// window wraps past midnight
	return h >= r.StartHour || h < r.EndHour
}

// CapacityPolicy governs allocation and enforcement for one hub.
type CapacityPolicy struct {
	ID                string             `json:"id" yaml:"id"`
	HubID             string             `json:"hub_id" yaml:"hub_id"`
	Name              string             `json:"name" yaml:"name"`
	State             PolicyState        `json:"state" yaml:"state"`
	AllocationRule    AllocationRule     `json:"allocation_rule" yaml:"allocation_rule"`
	EnforcementRule   EnforcementRule    `json:"enforcement_rule" yaml:"enforcement_rule"`
	RebalanceRule     RebalanceRule      `json:"rebalance_rule" yaml:"rebalance_rule"`
	OveragePolicy     OveragePolicy      `json:"overage_policy" yaml:"overage_policy"`
	PriorityOverrides []PriorityOverride `json:"priority_overrides,omitempty" yaml:"priority_overrides,omitempty"`
	VPPCoordination   VPPCoordination    `json:"vpp_coordination" yaml:"vpp_coordination"`
	TimeOfDay         []TimeOfDayRule    `json:"time_of_day,omitempty" yaml:"time_of_day,omitempty"`
	RebalanceCount    int                `json:"rebalance_count" yaml:"-"`
	LastRebalancedAt  *time.Time         `json:"last_rebalanced_at,omitempty" yaml:"-"`
	ActivatedAt       *time.Time         `json:"activated_at,omitempty" yaml:"-"`
	Version           int64              `json:"version" yaml:"-"`
	UpdatedAt         time.Time          `json:"updated_at" yaml:"-"`
}
