// Package policy implements the admission decision of a capacity policy. All
// functions are pure: they read the snapshot passed in and never touch I/O.
package policy

import (
	"fmt"
	"math"
	"time"

	"github.com/kilianp07/powerhub/core/model"
)

// Rule labels reported in Decision.Rule.
const (
	RuleOverride    = "override"
	RuleHardCap     = "hard-cap"
	RuleSoftCap     = "soft-cap"
	RuleThrottle    = "throttle"
	RuleHubCapacity = "hub-capacity"
	RuleSchedule    = "schedule"
	RuleDefault     = "default"
	RuleFallback    = "fallback"
)

// Follow-up actions attached to denials.
const (
	ActionQueueRequest = "queue-request"
	ActionNotifyAdmin  = "notify-admin"
)

// DefaultThrottlePercent applies when a throttle rule leaves the percent unset.
const DefaultThrottlePercent = 80.0

// Reasons used by denials and approvals.
const (
	ReasonHardCap         = "Hard capacity limit reached"
	ReasonOverageExceeded = "Overage exceeds maximum"
	ReasonHubCapacity     = "Hub capacity insufficient"
	ReasonNoHeadroom      = "Tenant allocation exhausted"
	ReasonOverride        = "Critical priority override"
)

// Input is the snapshot a decision is computed from.
type Input struct {
	Tenant         model.Tenant
	RequestedKW    float64
	CurrentUsageKW float64
	Hub            model.Hub
	Now            time.Time
	IsPeak         bool
}

// Evaluate runs the admission rules of p against in. The first matching rule
// wins. The returned decision never grants more than requested and grants
// nothing when denied.
func Evaluate(p model.CapacityPolicy, in Input) model.Decision {
	return finalize(evaluate(p, in), in)
}

func evaluate(p model.CapacityPolicy, in Input) model.Decision {
	req := in.RequestedKW

	if o, ok := ActiveOverride(p, in.Tenant.ID, in.Now); ok && o.Priority == model.TierCritical {
		d := approve(req, RuleOverride, ReasonOverride)
		if o.Reason != "" {
			d.Reason = ReasonOverride + ": " + o.Reason
		}
		return d
	}

	allocated := in.Tenant.Capacity.TotalKW()
	utilization := 100.0
	if allocated > 0 {
		utilization = in.CurrentUsageKW / allocated * 100
	}

	var tentative *model.Decision
	var warnings []string
	if utilization >= p.EnforcementRule.ThresholdPercent {
		rule := p.EnforcementRule
		switch rule.Type {
		case model.EnforceHardCap:
			return deny(RuleHardCap, ReasonHardCap)
		case model.EnforceSoftCap:
			if p.OveragePolicy.Allowed {
				overage := in.CurrentUsageKW + req - allocated
				limit := allocated * p.OveragePolicy.MaxOveragePercent / 100
				if overage > limit {
					d := deny(RuleSoftCap, ReasonOverageExceeded)
					d.Warnings = append(d.Warnings, fmt.Sprintf("overage %.2f kW exceeds limit %.2f kW", overage, limit))
					return d
				}
				d := approve(req, RuleSoftCap, "Approved within overage allowance")
				d.Warnings = append(d.Warnings, fmt.Sprintf("overage of %.2f kW billed at %.2fx rate", math.Max(0, overage), rateMultiplier(p)))
				tentative = &d
			}
		case model.EnforceThrottle:
			pct := rule.ThrottlePercent
			if pct <= 0 {
				pct = DefaultThrottlePercent
			}
			d := approve(req*pct/100, RuleThrottle, fmt.Sprintf("Throttled to %.0f%% of request", pct))
			tentative = &d
		case model.EnforceQueue, model.EnforcePenalty:
			// no tenant-level handler; hub and default rules decide
		default:
			warnings = append(warnings, fmt.Sprintf("unsupported enforcement type %q ignored", rule.Type))
		}
	}

	if in.Hub.Capacity.AvailableKW < req {
		d := deny(RuleHubCapacity, ReasonHubCapacity)
		d.Actions = []string{ActionQueueRequest, ActionNotifyAdmin}
		d.Warnings = append(warnings, fmt.Sprintf("hub has %.2f kW available for %.2f kW requested", in.Hub.Capacity.AvailableKW, req))
		return d
	}
	if tentative != nil {
		tentative.Warnings = append(warnings, tentative.Warnings...)
		return *tentative
	}

	headroom := allocated - in.CurrentUsageKW
	if in.IsPeak {
		if r, ok := matchingRule(p, in.Now); ok {
			grant := math.Min(math.Min(req*r.Multiplier, req), headroom)
			if grant <= 0 {
				d := deny(RuleSchedule, ReasonNoHeadroom)
				d.Warnings = warnings
				return d
			}
			d := approve(grant, RuleSchedule, fmt.Sprintf("Peak schedule multiplier %.2f applied", r.Multiplier))
			d.Warnings = warnings
			return d
		}
	}

	var d model.Decision
	switch {
	case req <= headroom:
		d = approve(req, RuleDefault, "Within allocation")
	case headroom > 0:
		d = approve(headroom, RuleDefault, "Partially approved up to remaining allocation")
		warnings = append(warnings, fmt.Sprintf("shortfall of %.2f kW denied", req-headroom))
	default:
		d = deny(RuleDefault, ReasonNoHeadroom)
	}
	d.Warnings = append(warnings, d.Warnings...)
	return d
}

// Fallback is used when a hub has no active policy: the request is approved
// in full only when both the tenant and the hub can absorb it.
func Fallback(in Input) model.Decision {
	headroom := in.Tenant.Capacity.TotalKW() - in.CurrentUsageKW
	var d model.Decision
	switch {
	case in.RequestedKW > headroom:
		d = deny(RuleFallback, ReasonNoHeadroom)
	case in.RequestedKW > in.Hub.Capacity.AvailableKW:
		d = deny(RuleFallback, ReasonHubCapacity)
		d.Actions = []string{ActionQueueRequest, ActionNotifyAdmin}
	default:
		d = approve(in.RequestedKW, RuleFallback, "No active policy; within tenant and hub headroom")
	}
	return finalize(d, in)
}

func rateMultiplier(p model.CapacityPolicy) float64 {
	if p.OveragePolicy.RateMultiplier > 0 {
		return p.OveragePolicy.RateMultiplier
	}
	return 1
}

func approve(kw float64, rule, reason string) model.Decision {
	return model.Decision{Approved: true, GrantedKW: kw, Rule: rule, Reason: reason}
}

func deny(rule, reason string) model.Decision {
	return model.Decision{Approved: false, Rule: rule, Reason: reason}
}

func finalize(d model.Decision, in Input) model.Decision {
	d.RequestedKW = in.RequestedKW
	d.IsPeak = in.IsPeak
	if !d.Approved || d.GrantedKW < 0 {
		d.GrantedKW = 0
	}
	if d.GrantedKW > in.RequestedKW {
		d.GrantedKW = in.RequestedKW
	}
	return d
}
