package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/powerhub/core/audit"
	"github.com/kilianp07/powerhub/core/clock"
	"github.com/kilianp07/powerhub/core/compliance"
	"github.com/kilianp07/powerhub/core/enforcement"
	"github.com/kilianp07/powerhub/core/errs"
	"github.com/kilianp07/powerhub/core/model"
	"github.com/kilianp07/powerhub/core/rebalance"
	"github.com/kilianp07/powerhub/core/service"
	"github.com/kilianp07/powerhub/core/store"
	"github.com/kilianp07/powerhub/core/vpp"
)

func newEngine(t *testing.T) (*Engine, *audit.MemoryStore, *clock.Fixed) {
	t.Helper()
	st := store.NewMemoryStore()
	seed := store.Seed{
		Hubs: []model.Hub{{ID: "h1", Name: "Tower A", Capacity: model.HubCapacity{TotalKW: 500, ReservedKW: 20},
			VPP: model.VPPSettings{Enabled: true, TenantOptIn: true, MaxContributionKW: 50, Devices: []model.VPPDevice{{ID: "b1", Online: true}}}}},
		Tenants: []model.Tenant{
			{ID: "t1", HubID: "h1", PriorityTier: model.TierStandard, Attributes: map[string]float64{"floorArea": 100}},
			{ID: "t2", HubID: "h1", PriorityTier: model.TierCritical, Attributes: map[string]float64{"floorArea": 300}},
		},
		Policies: []model.CapacityPolicy{{ID: "p1", HubID: "h1", State: model.PolicyDraft,
			AllocationRule:  model.AllocationRule{Method: model.MethodProportional},
			EnforcementRule: model.EnforcementRule{Type: model.EnforceHardCap, ThresholdPercent: 90, Action: model.ActionWarn},
			RebalanceRule:   model.RebalanceRule{Enabled: true, Trigger: model.TriggerManual}}},
	}
	require.NoError(t, seed.Apply(context.Background(), st))
	sink := audit.NewMemoryStore()
	clk := clock.NewFixed(time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC))
	return New(service.Deps{Store: st, Audit: sink, Clock: clk}, Options{}), sink, clk
}

func TestEngineScenario(t *testing.T) {
	e, sink, _ := newEngine(t)
	ctx := context.Background()

	applied := e.ApplyPolicy(ctx, "h1", "p1", false, "ops")
	require.True(t, applied.Success, applied.Error)

	rb := e.Rebalance(ctx, "h1", model.TriggerManual, rebalance.Options{TriggeredBy: "ops"})
	require.True(t, rb.Success, rb.Error)
	assert.InDelta(t, 500.0, rb.Data.AllocatedKW, 1e-9)

	st := e.Hub(ctx, "h1")
	require.True(t, st.Success)
	require.Len(t, st.Data.Tenants, 2)
	assert.InDelta(t, 125.0, st.Data.Tenants[0].Capacity.AllocatedKW, 1e-9)
	assert.InDelta(t, 375.0, st.Data.Tenants[1].Capacity.AllocatedKW, 1e-9)

	// no hub headroom left: denied with follow-up actions, still a success
	res := e.Enforce(ctx, enforcement.Request{TenantID: "t1", RequestedKW: 10})
	require.True(t, res.Success)
	assert.False(t, res.Data.Decision.Approved)
	assert.Contains(t, res.Data.Decision.Actions, "queue-request")

	esc := e.EscalateViolation(ctx, "t1", compliance.Violation{Type: "overdraw"})
	require.True(t, esc.Success)
	assert.Equal(t, model.WarningLow, esc.Data.Level)

	conflict := e.ResolveConflict(ctx, "h1", "t2", model.DispatchClaim{ID: "c1",
		Start: time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC), End: time.Date(2024, 3, 4, 13, 0, 0, 0, time.UTC), RequestedKW: 40})
	require.True(t, conflict.Success)
	assert.Equal(t, vpp.PrioritizeTenant, conflict.Data.Label)

	ready := e.AssessReadiness(ctx, "h1", model.Window{})
	require.True(t, ready.Success)
	assert.False(t, ready.Data.Ready)

	hist := e.History(ctx, audit.Query{TenantID: "t1"})
	require.True(t, hist.Success)
	assert.NotEmpty(t, hist.Data)
	assert.NotEmpty(t, sink.Records())
}

func TestEngineErrorEnvelope(t *testing.T) {
	e, _, _ := newEngine(t)
	ctx := context.Background()

	r := e.Enforce(ctx, enforcement.Request{TenantID: "nobody", RequestedKW: 1})
	assert.False(t, r.Success)
	assert.Equal(t, errs.KindNotFound, r.Kind)
	assert.ErrorIs(t, r.Err(), errs.ErrNotFound)

	require.True(t, e.ApplyPolicy(ctx, "h1", "p1", false, "").Success)
	require.True(t, e.SavePolicy(ctx, model.CapacityPolicy{ID: "p2", HubID: "h1"}).Success)
	a := e.ApplyPolicy(ctx, "h1", "p2", false, "")
	assert.Equal(t, errs.KindPolicyConflict, a.Kind)

	assert.True(t, e.DeactivatePolicy(ctx, "p1", "").Success)
	assert.True(t, e.ArchivePolicy(ctx, "p1", "").Success)
	assert.Nil(t, Result[int]{Success: true}.Err())
}

func TestEngineReleaseAndReactivate(t *testing.T) {
	e, _, _ := newEngine(t)
	ctx := context.Background()

	r := e.Enforce(ctx, enforcement.Request{TenantID: "t1", RequestedKW: 5})
	require.True(t, r.Success)
	assert.False(t, r.Data.Decision.Approved, "seeded tenants have no allocation before the first pass")

	require.True(t, e.Allocate(ctx, "h1", model.MethodEqualSplit, rebalance.Options{}).Success)
	rel := e.Release(ctx, "t1", 100)
	require.True(t, rel.Success)
	assert.Zero(t, rel.Data.Tenant.CurrentKW)
	assert.InDelta(t, 500.0, rel.Data.Hub.AllocatedKW, 1e-9)
	assert.Equal(t, 250.0, rel.Data.Tenant.AllocatedKW)

	re := e.Reactivate(ctx, "t1", "ops")
	assert.Equal(t, errs.KindInvalidRequest, re.Kind)
	assert.True(t, e.ResetViolations(ctx, "t1", "ops").Success)
}

func TestEngineRebalanceKeepsGrantedDrawUntilReleased(t *testing.T) {
	st := store.NewMemoryStore()
	seed := store.Seed{
		Hubs: []model.Hub{{ID: "h1", ActivePolicyID: "p1", Capacity: model.HubCapacity{TotalKW: 500, AllocatedKW: 440}}},
		Tenants: []model.Tenant{
			{ID: "t1", HubID: "h1", Capacity: model.TenantCapacity{AllocatedKW: 200}, Usage: model.TenantUsage{CurrentKW: 40}},
			{ID: "t2", HubID: "h1", Capacity: model.TenantCapacity{AllocatedKW: 200}},
		},
		Policies: []model.CapacityPolicy{{ID: "p1", HubID: "h1", State: model.PolicyActive,
			AllocationRule: model.AllocationRule{Method: model.MethodEqualSplit},
			RebalanceRule:  model.RebalanceRule{Enabled: true, Trigger: model.TriggerManual}}},
	}
	require.NoError(t, seed.Apply(context.Background(), st))
	e := New(service.Deps{Store: st, Audit: audit.NewMemoryStore(), Clock: clock.NewFixed(time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC))}, Options{})
	ctx := context.Background()

	rb := e.Rebalance(ctx, "h1", model.TriggerManual, rebalance.Options{TriggeredBy: "ops"})
	require.True(t, rb.Success, rb.Error)
	assert.InDelta(t, 500.0, rb.Data.AllocatedKW, 1e-9)

	h, err := st.Hub(ctx, "h1")
	require.NoError(t, err)
	assert.InDelta(t, 540.0, h.Capacity.AllocatedKW, 1e-9)
	assert.Zero(t, h.Capacity.AvailableKW)

	rel := e.Release(ctx, "t1", 40)
	require.True(t, rel.Success, rel.Error)
	assert.InDelta(t, 500.0, rel.Data.Hub.AllocatedKW, 1e-9)
	assert.Zero(t, rel.Data.Hub.AvailableKW)

	h, err = st.Hub(ctx, "h1")
	require.NoError(t, err)
	assert.InDelta(t, 500.0, h.Capacity.AllocatedKW, 1e-9)
	assert.Zero(t, h.Capacity.AvailableKW)
}
