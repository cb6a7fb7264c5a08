// Package allocation computes fair-share redistributions of a hub's capacity.
package allocation

import (
	"gonum.org/v1/gonum/floats"

	"github.com/kilianp07/powerhub/core/model"
)

// BaseShare is the fraction of an allocation held as base capacity. The rest
// is burst capacity.
const BaseShare = 0.8

// DefaultWeightAttribute is the tenant attribute used by the proportional
// method when the policy names none.
const DefaultWeightAttribute = "floorArea"

// Allocation is the new share computed for one tenant.
type Allocation struct {
	TenantID    string                 `json:"tenant_id"`
	AllocatedKW float64                `json:"allocated_kw"`
	PreviousKW  float64                `json:"previous_kw"`
	Method      model.AllocationMethod `json:"method"`
}

// DeltaKW returns the change from the previous allocation.
func (a Allocation) DeltaKW() float64 { return a.AllocatedKW - a.PreviousKW }

var tierWeights = map[model.PriorityTier]float64{
	model.TierCritical: 3,
	model.TierPriority: 2,
	model.TierStandard: 1,
}

// Allocate splits hub.Capacity.TotalKW across tenants using rule. The result
// follows the order of tenants and sums to TotalKW. Unknown methods fall back
// to equal-split.
func Allocate(hub model.Hub, tenants []model.Tenant, rule model.AllocationRule) []Allocation {
	if len(tenants) == 0 {
		return nil
	}
	method := rule.Method
	w, ok := weights(method, rule.Params, tenants)
	if !ok {
		method = model.MethodEqualSplit
		w = equal(len(tenants))
	}
	if floats.Sum(w) <= 0 {
		w = equal(len(tenants))
	}
	shares := normalize(w, hub.Capacity.TotalKW)

	out := make([]Allocation, len(tenants))
	for i, t := range tenants {
		out[i] = Allocation{
			TenantID:    t.ID,
			AllocatedKW: shares[i],
			PreviousKW:  t.Capacity.AllocatedKW,
			Method:      method,
		}
	}
	return out
}

// ApplySplit sets the tenant allocation to kw and re-derives base and burst.
func ApplySplit(c *model.TenantCapacity, kw float64) {
	if kw < 0 {
		kw = 0
	}
	c.AllocatedKW = kw
	c.BaseKW = kw * BaseShare
	c.BurstKW = kw - c.BaseKW
}

func weights(method model.AllocationMethod, params model.AllocationParams, tenants []model.Tenant) ([]float64, bool) {
	w := make([]float64, len(tenants))
	switch method {
	case model.MethodEqualSplit:
		return equal(len(tenants)), true
	case model.MethodProportional:
		attr := params.WeightAttribute
		if attr == "" {
			attr = DefaultWeightAttribute
		}
		for i, t := range tenants {
			w[i] = orOne(t.Attributes[attr])
		}
	case model.MethodWeighted, model.MethodHistorical:
		for i, t := range tenants {
			w[i] = orOne(t.Usage.AverageKW)
		}
	case model.MethodPriorityBased:
		table := tierWeights
		if len(params.TierPercentages) > 0 {
			table = params.TierPercentages
		}
		for i, t := range tenants {
			tier := t.PriorityTier
			if tier == "" {
				tier = model.TierStandard
			}
			w[i] = table[tier]
		}
	case model.MethodTiered:
		for i, t := range tenants {
			w[i] = bandCeiling(params, t.Usage.AverageKW)
		}
	default:
		return nil, false
	}
	return w, true
}

func bandCeiling(params model.AllocationParams, avg float64) float64 {
	for _, b := range params.Bands {
		if avg >= b.MinKW && avg <= b.MaxKW {
			return b.AllocationKW
		}
	}
	return params.BaseAllocationKW
}

func normalize(w []float64, total float64) []float64 {
	out := make([]float64, len(w))
	copy(out, w)
	for i := range out {
		if out[i] < 0 {
			out[i] = 0
		}
	}
	sum := floats.Sum(out)
	if sum <= 0 || total <= 0 {
		return make([]float64, len(w))
	}
	floats.Scale(total/sum, out)
	return out
}

func equal(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}
	return w
}

func orOne(v float64) float64 {
	if v <= 0 {
		return 1
	}
	return v
}
