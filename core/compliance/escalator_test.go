package compliance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/powerhub/core/audit"
	"github.com/kilianp07/powerhub/core/clock"
	"github.com/kilianp07/powerhub/core/errs"
	"github.com/kilianp07/powerhub/core/model"
	"github.com/kilianp07/powerhub/core/service"
	"github.com/kilianp07/powerhub/core/store"
)

type recordingNotifier struct {
	mu    sync.Mutex
	notes []Notification
	err   error
}

func (r *recordingNotifier) Notify(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
	return r.err
}

var now = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

func setup(t *testing.T, action model.ViolationAction, violations int) (*Escalator, *store.MemoryStore, *audit.MemoryStore, *recordingNotifier, *clock.Fixed) {
	t.Helper()
	st := store.NewMemoryStore()
	tn := model.Tenant{ID: "t1", HubID: "h1", Status: model.TenantActive,
		Capacity:   model.TenantCapacity{AllocatedKW: 100, BaseKW: 80, BurstKW: 20, GuaranteedKW: 25},
		Usage:      model.TenantUsage{CurrentKW: 90},
		Compliance: model.Compliance{Violations: violations, WarningLevel: LevelFor(violations)}}
	require.NoError(t, st.Commit(context.Background(), store.Changes{
		Hubs:    []model.Hub{{ID: "h1", ActivePolicyID: "p1", Capacity: model.HubCapacity{TotalKW: 500, AllocatedKW: 190, AvailableKW: 310}}},
		Tenants: []model.Tenant{tn},
		Policies: []model.CapacityPolicy{{ID: "p1", HubID: "h1", State: model.PolicyActive,
			EnforcementRule: model.EnforcementRule{Type: model.EnforceHardCap, ThresholdPercent: 90, Action: action}}},
	}))
	sink := audit.NewMemoryStore()
	n := &recordingNotifier{}
	clk := clock.NewFixed(now)
	e := NewEscalator(service.Deps{Store: st, Audit: sink, Clock: clk}, Config{}, n)
	return e, st, sink, n, clk
}

func TestLevelFor(t *testing.T) {
	cases := map[int]model.WarningLevel{
		0: model.WarningNone, 1: model.WarningLow, 2: model.WarningLow, 3: model.WarningMedium,
		4: model.WarningMedium, 5: model.WarningHigh, 9: model.WarningHigh, 10: model.WarningCritical, 42: model.WarningCritical,
	}
	for n, want := range cases {
		assert.Equal(t, want, LevelFor(n), "count %d", n)
	}
}

func TestSelectAction(t *testing.T) {
	tests := []struct {
		count int
		base  model.ViolationAction
		want  model.ViolationAction
	}{
		{1, model.ActionWarn, model.ActionWarn},
		{9, model.ActionWarn, model.ActionWarn},
		{10, model.ActionWarn, model.ActionThrottle},
		{10, model.ActionSuspend, model.ActionSuspend},
		{12, "", model.ActionThrottle},
		{14, model.ActionThrottle, model.ActionThrottle},
		{15, model.ActionWarn, model.ActionSuspend},
		{15, model.ActionThrottle, model.ActionSuspend},
		{19, model.ActionWarn, model.ActionSuspend},
		{20, model.ActionWarn, model.ActionCutoff},
		{3, model.ActionCutoff, model.ActionCutoff},
		{2, "bogus", model.ActionWarn},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SelectAction(tt.count, tt.base), "count %d base %q", tt.count, tt.base)
	}
}

func TestEscalateWarnNotifies(t *testing.T) {
	e, st, sink, n, _ := setup(t, model.ActionWarn, 0)

	out, err := e.Escalate(context.Background(), "t1", Violation{Type: "overdraw", MeasuredKW: 120, LimitKW: 100})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Violations)
	assert.Equal(t, model.WarningLow, out.Level)
	assert.Equal(t, model.ActionWarn, out.Action)
	assert.False(t, out.Forced)

	tn, _ := st.Tenant(context.Background(), "t1")
	require.Len(t, tn.Compliance.Notes, 1)
	assert.Contains(t, tn.Compliance.Notes[0].Message, "overdraw")
	assert.Equal(t, 100.0, tn.Capacity.AllocatedKW)

	require.Len(t, n.notes, 1)
	assert.Equal(t, model.ActionWarn, n.notes[0].Action)

	recs := sink.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, audit.TypeViolation, recs[0].Type)
	assert.Equal(t, "low", recs[0].Severity)
}

func TestEscalateForcesThrottleAtTen(t *testing.T) {
	e, st, _, _, _ := setup(t, model.ActionWarn, 9)

	out, err := e.Escalate(context.Background(), "t1", Violation{Type: "overdraw"})
	require.NoError(t, err)
	assert.Equal(t, model.ActionThrottle, out.Action)
	assert.True(t, out.Forced)

	tn, _ := st.Tenant(context.Background(), "t1")
	assert.Equal(t, 80.0, tn.Capacity.AllocatedKW)
	assert.InDelta(t, 64.0, tn.Capacity.BaseKW, 1e-9)
	assert.InDelta(t, 16.0, tn.Capacity.BurstKW, 1e-9)
	assert.Equal(t, 80.0, tn.Usage.CurrentKW)
	require.NotNil(t, tn.Throttle)
	assert.Equal(t, now.Add(time.Hour), tn.Throttle.Until)

	hub, _ := st.Hub(context.Background(), "h1")
	assert.Equal(t, 180.0, hub.Capacity.AllocatedKW)
	assert.Equal(t, 320.0, hub.Capacity.AvailableKW)

	// a second throttle while active extends the window only
	_, err = e.Escalate(context.Background(), "t1", Violation{Type: "overdraw"})
	require.NoError(t, err)
	tn, _ = st.Tenant(context.Background(), "t1")
	assert.Equal(t, 80.0, tn.Capacity.AllocatedKW)
	hub, _ = st.Hub(context.Background(), "h1")
	assert.Equal(t, 180.0, hub.Capacity.AllocatedKW)
}

func TestEscalateFifteenthSuspends(t *testing.T) {
	e, st, _, n, _ := setup(t, model.ActionWarn, 14)

	out, err := e.Escalate(context.Background(), "t1", Violation{Type: "overdraw"})
	require.NoError(t, err)
	assert.Equal(t, 15, out.Violations)
	assert.Equal(t, model.ActionSuspend, out.Action)

	tn, _ := st.Tenant(context.Background(), "t1")
	assert.Equal(t, model.TenantSuspended, tn.Status)
	require.NotNil(t, tn.SuspendedUntil)
	assert.Equal(t, now.Add(24*time.Hour), *tn.SuspendedUntil)
	assert.False(t, tn.RequiresManualReactivation)
	require.Len(t, n.notes, 1)
	assert.Contains(t, n.notes[0].Message, "suspended")
}

func TestEscalateTwentiethCutsOff(t *testing.T) {
	e, st, _, _, _ := setup(t, model.ActionThrottle, 19)

	out, err := e.Escalate(context.Background(), "t1", Violation{Type: "overdraw"})
	require.NoError(t, err)
	assert.Equal(t, model.ActionCutoff, out.Action)

	tn, _ := st.Tenant(context.Background(), "t1")
	assert.Equal(t, model.TenantCutoff, tn.Status)
	assert.True(t, tn.RequiresManualReactivation)
	assert.Zero(t, tn.Capacity.AllocatedKW)
	assert.Zero(t, tn.Capacity.TotalKW())
	assert.Zero(t, tn.Usage.CurrentKW)

	hub, _ := st.Hub(context.Background(), "h1")
	assert.Equal(t, 100.0, hub.Capacity.AllocatedKW)
	assert.Equal(t, 400.0, hub.Capacity.AvailableKW)
}

func TestEscalateSuspendKeepsHubDraw(t *testing.T) {
	e, st, _, _, _ := setup(t, model.ActionWarn, 14)

	_, err := e.Escalate(context.Background(), "t1", Violation{Type: "overdraw"})
	require.NoError(t, err)

	hub, _ := st.Hub(context.Background(), "h1")
	assert.Equal(t, 190.0, hub.Capacity.AllocatedKW)
	assert.Equal(t, int64(1), hub.Version)
}

func TestStoredLevelAlwaysMatchesCount(t *testing.T) {
	e, st, _, _, clk := setup(t, model.ActionWarn, 0)
	for i := 1; i <= 25; i++ {
		clk.Advance(time.Minute)
		_, err := e.Escalate(context.Background(), "t1", Violation{Type: "overdraw"})
		require.NoError(t, err)
		tn, _ := st.Tenant(context.Background(), "t1")
		assert.Equal(t, i, tn.Compliance.Violations)
		assert.Equal(t, LevelFor(tn.Compliance.Violations), tn.Compliance.WarningLevel)
	}
}

func TestResetViolations(t *testing.T) {
	e, st, sink, _, _ := setup(t, model.ActionWarn, 7)

	tn, err := e.ResetViolations(context.Background(), "t1", "ops")
	require.NoError(t, err)
	assert.Zero(t, tn.Compliance.Violations)
	assert.Equal(t, model.WarningNone, tn.Compliance.WarningLevel)
	assert.Empty(t, tn.Compliance.Notes)

	stored, _ := st.Tenant(context.Background(), "t1")
	assert.Zero(t, stored.Compliance.Violations)
	recs := sink.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, audit.TypeViolationsReset, recs[0].Type)
	assert.Equal(t, "ops", recs[0].TriggeredBy)
}

func TestReactivate(t *testing.T) {
	e, _, _, _, _ := setup(t, model.ActionWarn, 19)
	_, err := e.Reactivate(context.Background(), "t1", "ops")
	assert.ErrorIs(t, err, errs.ErrInvalidRequest)

	_, err = e.Escalate(context.Background(), "t1", Violation{Type: "overdraw"})
	require.NoError(t, err)

	tn, err := e.Reactivate(context.Background(), "t1", "ops")
	require.NoError(t, err)
	assert.Equal(t, model.TenantActive, tn.Status)
	assert.False(t, tn.RequiresManualReactivation)
	assert.Equal(t, 25.0, tn.Capacity.AllocatedKW)
	assert.Equal(t, 20.0, tn.Capacity.BaseKW)
}

func TestEscalateValidation(t *testing.T) {
	e, _, _, _, _ := setup(t, model.ActionWarn, 0)
	_, err := e.Escalate(context.Background(), "t1", Violation{})
	assert.ErrorIs(t, err, errs.ErrInvalidRequest)
	_, err = e.Escalate(context.Background(), "nobody", Violation{Type: "x"})
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestNotifierFailureIsNotFatal(t *testing.T) {
	e, _, _, n, _ := setup(t, model.ActionWarn, 0)
	n.err = errors.New("broker down")
	_, err := e.Escalate(context.Background(), "t1", Violation{Type: "overdraw"})
	assert.NoError(t, err)
}

func TestConfigValidate(t *testing.T) {
	var c Config
	c.SetDefaults()
	require.NoError(t, c.Validate())
	assert.Equal(t, 80.0, c.ThrottlePercent)
	c.ThrottlePercent = 150
	assert.Error(t, c.Validate())
}

func TestLiftExpiredThrottles(t *testing.T) {
	e, st, sink, _, clk := setup(t, model.ActionThrottle, 0)

	_, err := e.Escalate(context.Background(), "t1", Violation{Type: "overdraw"})
	require.NoError(t, err)
	tn, _ := st.Tenant(context.Background(), "t1")
	require.Equal(t, 80.0, tn.Capacity.AllocatedKW)

	n, err := e.LiftExpiredThrottles(context.Background(), "h1")
	require.NoError(t, err)
	assert.Zero(t, n)

	clk.Advance(time.Hour)
	n, err = e.LiftExpiredThrottles(context.Background(), "h1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	tn, _ = st.Tenant(context.Background(), "t1")
	assert.Nil(t, tn.Throttle)
	assert.InDelta(t, 100.0, tn.Capacity.AllocatedKW, 1e-9)
	assert.InDelta(t, 80.0, tn.Capacity.BaseKW, 1e-9)

	recs := sink.Records()
	assert.Equal(t, audit.TypeAllocationUpdated, recs[len(recs)-1].Type)
}
