package policy

import (
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/kilianp07/powerhub/core/model"
)

// Validate checks the numeric ranges and closed enums of a policy.
func Validate(p model.CapacityPolicy) error {
	var errs []error
	if p.ID == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if p.HubID == "" {
		errs = append(errs, errors.New("hub_id is required"))
	}
	er := p.EnforcementRule
	if er.ThresholdPercent < 0 || er.ThresholdPercent > 200 {
		errs = append(errs, fmt.Errorf("enforcement threshold %.2f outside 0-200", er.ThresholdPercent))
	}
	if er.Type != "" && !er.Type.Valid() {
		errs = append(errs, fmt.Errorf("unknown enforcement type %q", er.Type))
	}
	if er.Action != "" && !er.Action.Valid() {
		errs = append(errs, fmt.Errorf("unknown violation action %q", er.Action))
	}
	if er.ThrottlePercent < 0 || er.ThrottlePercent > 100 {
		errs = append(errs, fmt.Errorf("throttle percent %.2f outside 0-100", er.ThrottlePercent))
	}
	if p.OveragePolicy.MaxOveragePercent < 0 {
		errs = append(errs, errors.New("max overage percent must not be negative"))
	}
	if t := p.RebalanceRule.UtilizationThresholdPercent; t < 0 || t > 100 {
		errs = append(errs, fmt.Errorf("rebalance threshold %.2f outside 0-100", t))
	}
	if s := p.RebalanceRule.Schedule; s != "" {
		if _, err := cron.ParseStandard(s); err != nil {
			errs = append(errs, fmt.Errorf("rebalance schedule: %w", err))
		}
	}
	if b := p.VPPCoordination.BufferPercent; b < 0 || b > 100 {
		errs = append(errs, fmt.Errorf("vpp buffer percent %.2f outside 0-100", b))
	}
	for i, r := range p.TimeOfDay {
		if r.StartHour < 0 || r.StartHour > 23 || r.EndHour < 0 || r.EndHour > 24 {
			errs = append(errs, fmt.Errorf("time_of_day[%d]: hours out of range", i))
		}
		if r.Multiplier < 0 {
			errs = append(errs, fmt.Errorf("time_of_day[%d]: negative multiplier", i))
		}
	}
	for tier, pct := range p.AllocationRule.Params.TierPercentages {
		if !tier.Valid() {
			errs = append(errs, fmt.Errorf("unknown tier %q", tier))
		}
		if pct < 0 || pct > 100 {
			errs = append(errs, fmt.Errorf("tier %s percentage %.2f outside 0-100", tier, pct))
		}
	}
	return errors.Join(errs...)
}
