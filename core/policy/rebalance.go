package policy

import "github.com/kilianp07/powerhub/core/model"

// ShouldRebalance reports whether trigger warrants a redistribution of hub
// under p. A manual trigger always proceeds on an enabled rule.
func ShouldRebalance(p model.CapacityPolicy, hub model.Hub, trigger model.RebalanceTrigger) bool {
	rule := p.RebalanceRule
	if !rule.Enabled {
		return false
	}
	if trigger == model.TriggerManual {
		return true
	}
	if trigger != rule.Trigger {
		return false
	}
	if trigger == model.TriggerThreshold {
		return hub.Capacity.UtilizationPercent() >= rule.UtilizationThresholdPercent
	}
	return true
}
