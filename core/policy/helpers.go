package policy

import (
	"time"

	"github.com/kilianp07/powerhub/core/model"
)

// Default peak window used when a policy carries no time-of-day schedule.
const (
	DefaultPeakStartHour = 17
	DefaultPeakEndHour   = 21
)

var defaultPeak = model.TimeOfDayRule{
	Days:       []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
	StartHour:  DefaultPeakStartHour,
	EndHour:    DefaultPeakEndHour,
	Multiplier: 1,
}

// ActiveOverride returns the first non-expired override for tenantID.
func ActiveOverride(p model.CapacityPolicy, tenantID string, now time.Time) (model.PriorityOverride, bool) {
	for _, o := range p.PriorityOverrides {
		if o.TenantID == tenantID && !o.Expired(now) {
			return o, true
		}
	}
	return model.PriorityOverride{}, false
}

// EffectivePriority is the tenant tier, replaced by an active override if any.
func EffectivePriority(p model.CapacityPolicy, t model.Tenant, now time.Time) model.PriorityTier {
	if o, ok := ActiveOverride(p, t.ID, now); ok && o.Priority.Valid() {
		return o.Priority
	}
	if t.PriorityTier == "" {
		return model.TierStandard
	}
	return t.PriorityTier
}

// IsPeak reports whether now falls in the policy's peak schedule, or in the
// default weekday evening window when the policy defines none.
func IsPeak(p model.CapacityPolicy, now time.Time) bool {
	if len(p.TimeOfDay) == 0 {
		return defaultPeak.Matches(now)
	}
	_, ok := matchingRule(p, now)
	return ok
}

func matchingRule(p model.CapacityPolicy, now time.Time) (model.TimeOfDayRule, bool) {
	for _, r := range p.TimeOfDay {
		if r.Matches(now) {
			return r, true
		}
	}
	return model.TimeOfDayRule{}, false
}
