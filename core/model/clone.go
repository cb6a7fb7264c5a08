package model

import (
	"maps"
	"slices"
	"time"
)

// Clone returns a deep copy of the hub.
func (h Hub) Clone() Hub {
	h.VPP.Devices = slices.Clone(h.VPP.Devices)
	return h
}

// Clone returns a deep copy of the tenant.
func (t Tenant) Clone() Tenant {
	t.Attributes = maps.Clone(t.Attributes)
	t.Compliance.Notes = slices.Clone(t.Compliance.Notes)
	t.Compliance.LastViolationAt = cloneTime(t.Compliance.LastViolationAt)
	t.SuspendedUntil = cloneTime(t.SuspendedUntil)
	if t.Throttle != nil {
		th := *t.Throttle
		t.Throttle = &th
	}
	return t
}

// Clone returns a deep copy of the policy.
func (p CapacityPolicy) Clone() CapacityPolicy {
	p.AllocationRule.Params.TierPercentages = maps.Clone(p.AllocationRule.Params.TierPercentages)
	p.AllocationRule.Params.Bands = slices.Clone(p.AllocationRule.Params.Bands)
	if p.PriorityOverrides != nil {
		ov := make([]PriorityOverride, len(p.PriorityOverrides))
		for i, o := range p.PriorityOverrides {
			o.ExpiresAt = cloneTime(o.ExpiresAt)
			ov[i] = o
		}
		p.PriorityOverrides = ov
	}
	if p.TimeOfDay != nil {
		tod := make([]TimeOfDayRule, len(p.TimeOfDay))
		for i, r := range p.TimeOfDay {
			r.Days = slices.Clone(r.Days)
			tod[i] = r
		}
		p.TimeOfDay = tod
	}
	p.LastRebalancedAt = cloneTime(p.LastRebalancedAt)
	p.ActivatedAt = cloneTime(p.ActivatedAt)
	return p
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
