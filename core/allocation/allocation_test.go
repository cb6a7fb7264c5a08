package allocation

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/powerhub/core/model"
)

func tenants(n int) []model.Tenant {
	tiers := []model.PriorityTier{model.TierStandard, model.TierPriority, model.TierCritical}
	out := make([]model.Tenant, n)
	for i := range out {
		out[i] = model.Tenant{
			ID:           fmt.Sprintf("t%d", i),
			PriorityTier: tiers[i%3],
			Usage:        model.TenantUsage{AverageKW: float64(i * 7 % 40)},
		}
		if i%4 != 0 {
			out[i].Attributes = map[string]float64{"floorArea": float64(50 + i*10)}
		}
	}
	return out
}

func TestAllocateSumsToTotal(t *testing.T) {
	methods := []model.AllocationRule{
		{Method: model.MethodEqualSplit},
		{Method: model.MethodProportional},
		{Method: model.MethodWeighted},
		{Method: model.MethodHistorical},
		{Method: model.MethodPriorityBased},
		{Method: model.MethodPriorityBased, Params: model.AllocationParams{TierPercentages: map[model.PriorityTier]float64{
			model.TierCritical: 50, model.TierPriority: 30, model.TierStandard: 20,
		}}},
		{Method: model.MethodTiered, Params: model.AllocationParams{
			Bands:            []model.UsageBand{{MinKW: 0, MaxKW: 10, AllocationKW: 20}, {MinKW: 10, MaxKW: 30, AllocationKW: 50}},
			BaseAllocationKW: 15,
		}},
		{Method: "round-robin"},
	}
	hub := model.Hub{Capacity: model.HubCapacity{TotalKW: 487.3}}
	for _, rule := range methods {
		for n := 1; n <= 12; n++ {
			allocs := Allocate(hub, tenants(n), rule)
			require.Len(t, allocs, n)
			var sum float64
			for _, a := range allocs {
				if a.AllocatedKW < 0 {
					t.Fatalf("%s n=%d: negative allocation %f", rule.Method, n, a.AllocatedKW)
				}
				sum += a.AllocatedKW
			}
			if math.Abs(sum-hub.Capacity.TotalKW) > 1e-6*hub.Capacity.TotalKW {
				t.Fatalf("%s n=%d: sum %.9f != total %.9f", rule.Method, n, sum, hub.Capacity.TotalKW)
			}
		}
	}
}

func TestEqualSplit(t *testing.T) {
	hub := model.Hub{Capacity: model.HubCapacity{TotalKW: 300}}
	allocs := Allocate(hub, tenants(3), model.AllocationRule{Method: model.MethodEqualSplit})
	for _, a := range allocs {
		assert.InDelta(t, 100.0, a.AllocatedKW, 1e-9)
	}
}

func TestProportionalMissingAttributeWeighsOne(t *testing.T) {
	hub := model.Hub{Capacity: model.HubCapacity{TotalKW: 100}}
	ts := []model.Tenant{
		{ID: "a", Attributes: map[string]float64{"floorArea": 3}},
		{ID: "b"},
	}
	allocs := Allocate(hub, ts, model.AllocationRule{Method: model.MethodProportional})
	assert.InDelta(t, 75.0, allocs[0].AllocatedKW, 1e-9)
	assert.InDelta(t, 25.0, allocs[1].AllocatedKW, 1e-9)
}

func TestPriorityBasedDefaultWeights(t *testing.T) {
	hub := model.Hub{Capacity: model.HubCapacity{TotalKW: 600}}
	ts := []model.Tenant{
		{ID: "c", PriorityTier: model.TierCritical},
		{ID: "p", PriorityTier: model.TierPriority},
		{ID: "s", PriorityTier: model.TierStandard},
	}
	allocs := Allocate(hub, ts, model.AllocationRule{Method: model.MethodPriorityBased})
	assert.InDelta(t, 300.0, allocs[0].AllocatedKW, 1e-9)
	assert.InDelta(t, 200.0, allocs[1].AllocatedKW, 1e-9)
	assert.InDelta(t, 100.0, allocs[2].AllocatedKW, 1e-9)
}

func TestTieredUsesBandCeilingAndBase(t *testing.T) {
	hub := model.Hub{Capacity: model.HubCapacity{TotalKW: 90}}
	ts := []model.Tenant{
		{ID: "low", Usage: model.TenantUsage{AverageKW: 5}},
		{ID: "high", Usage: model.TenantUsage{AverageKW: 25}},
		{ID: "none", Usage: model.TenantUsage{AverageKW: 100}},
	}
	rule := model.AllocationRule{Method: model.MethodTiered, Params: model.AllocationParams{
		Bands:            []model.UsageBand{{MinKW: 0, MaxKW: 10, AllocationKW: 10}, {MinKW: 10, MaxKW: 30, AllocationKW: 20}},
		BaseAllocationKW: 15,
	}}
	allocs := Allocate(hub, ts, rule)
	// 10:20:15 scaled to 90 kW
	assert.InDelta(t, 20.0, allocs[0].AllocatedKW, 1e-9)
	assert.InDelta(t, 40.0, allocs[1].AllocatedKW, 1e-9)
	assert.InDelta(t, 30.0, allocs[2].AllocatedKW, 1e-9)
}

func TestUnknownMethodFallsBackToEqualSplit(t *testing.T) {
	hub := model.Hub{Capacity: model.HubCapacity{TotalKW: 100}}
	allocs := Allocate(hub, tenants(4), model.AllocationRule{Method: "lottery"})
	for _, a := range allocs {
		assert.Equal(t, model.MethodEqualSplit, a.Method)
		assert.InDelta(t, 25.0, a.AllocatedKW, 1e-9)
	}
}

func TestAllocateRecordsPrevious(t *testing.T) {
	ts := tenants(2)
	ts[0].Capacity.AllocatedKW = 70
	allocs := Allocate(model.Hub{Capacity: model.HubCapacity{TotalKW: 100}}, ts, model.AllocationRule{Method: model.MethodEqualSplit})
	assert.Equal(t, 70.0, allocs[0].PreviousKW)
	assert.InDelta(t, -20.0, allocs[0].DeltaKW(), 1e-9)
	assert.Nil(t, Allocate(model.Hub{}, nil, model.AllocationRule{}))
}

func TestApplySplit(t *testing.T) {
	var c model.TenantCapacity
	ApplySplit(&c, 125)
	assert.InDelta(t, 100.0, c.BaseKW, 1e-9)
	assert.InDelta(t, 25.0, c.BurstKW, 1e-9)
	assert.InDelta(t, c.AllocatedKW, c.BaseKW+c.BurstKW, 1e-9)

	ApplySplit(&c, -5)
	assert.Zero(t, c.AllocatedKW)
}
