package activation

import (
	"context"
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

func setup(t *testing.T) (*Activator, *store.MemoryStore, *audit.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	require.NoError(t, st.Commit(context.Background(), store.Changes{
		Hubs: []model.Hub{{ID: "h1"}, {ID: "h2"}},
		Policies: []model.CapacityPolicy{
			{ID: "p1", HubID: "h1", State: model.PolicyDraft},
			{ID: "p2", HubID: "h1", State: model.PolicyDraft},
			{ID: "old", HubID: "h1", State: model.PolicyArchived},
			{ID: "other", HubID: "h2", State: model.PolicyDraft},
		},
	}))
	sink := audit.NewMemoryStore()
	a := New(service.Deps{Store: st, Audit: sink, Clock: clock.NewFixed(time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC))})
	return a, st, sink
}

func TestApplyAndConflict(t *testing.T) {
	a, st, sink := setup(t)
	ctx := context.Background()

	res, err := a.Apply(ctx, "h1", "p1", false, "ops")
	require.NoError(t, err)
	assert.Equal(t, model.PolicyActive, res.Policy.State)
	assert.Empty(t, res.ReplacedID)
	h, _ := st.Hub(ctx, "h1")
	assert.Equal(t, "p1", h.ActivePolicyID)

	_, err = a.Apply(ctx, "h1", "p2", false, "ops")
	assert.ErrorIs(t, err, errs.ErrPolicyConflict)

	res, err = a.Apply(ctx, "h1", "p2", true, "ops")
	require.NoError(t, err)
	assert.Equal(t, "p1", res.ReplacedID)

	p1, _ := st.Policy(ctx, "p1")
	assert.Equal(t, model.PolicyInactive, p1.State)
	h, _ = st.Hub(ctx, "h1")
	assert.Equal(t, "p2", h.ActivePolicyID)

	recs := sink.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, audit.TypePolicyApplied, recs[1].Type)
	assert.Equal(t, "p2", recs[1].PolicyID)
}

func TestApplyIdempotent(t *testing.T) {
	a, _, _ := setup(t)
	ctx := context.Background()
	_, err := a.Apply(ctx, "h1", "p1", false, "")
	require.NoError(t, err)
	_, err = a.Apply(ctx, "h1", "p1", false, "")
	assert.NoError(t, err)
}

func TestApplyRejects(t *testing.T) {
	a, _, _ := setup(t)
	ctx := context.Background()

	_, err := a.Apply(ctx, "h1", "old", true, "")
	assert.ErrorIs(t, err, errs.ErrInvalidRequest)
	_, err = a.Apply(ctx, "h1", "other", true, "")
	assert.ErrorIs(t, err, errs.ErrInvalidRequest)
	_, err = a.Apply(ctx, "h1", "missing", true, "")
	assert.ErrorIs(t, err, errs.ErrNotFound)
	_, err = a.Apply(ctx, "", "p1", true, "")
	assert.ErrorIs(t, err, errs.ErrInvalidRequest)
}

func TestDeactivateAndArchive(t *testing.T) {
	a, st, _ := setup(t)
	ctx := context.Background()
	_, err := a.Apply(ctx, "h1", "p1", false, "")
	require.NoError(t, err)

	_, err = a.Archive(ctx, "p1", "ops")
	assert.ErrorIs(t, err, errs.ErrInvalidRequest)

	p, err := a.Deactivate(ctx, "p1", "ops")
	require.NoError(t, err)
	assert.Equal(t, model.PolicyInactive, p.State)
	h, _ := st.Hub(ctx, "h1")
	assert.Empty(t, h.ActivePolicyID)

	_, err = a.Deactivate(ctx, "p1", "ops")
	assert.ErrorIs(t, err, errs.ErrInvalidRequest)

	p, err = a.Archive(ctx, "p1", "ops")
	require.NoError(t, err)
	assert.Equal(t, model.PolicyArchived, p.State)

	_, err = a.Apply(ctx, "h1", "p1", true, "")
	assert.ErrorIs(t, err, errs.ErrInvalidRequest)
}

func TestSave(t *testing.T) {
	a, st, _ := setup(t)
	ctx := context.Background()

	p, err := a.Save(ctx, model.CapacityPolicy{ID: "p9", HubID: "h1", State: model.PolicyActive,
		EnforcementRule: model.EnforcementRule{Type: model.EnforceSoftCap, ThresholdPercent: 90}})
	require.NoError(t, err)
	assert.Equal(t, model.PolicyDraft, p.State)

	p.Name = "evening"
	_, err = a.Save(ctx, p)
	require.NoError(t, err)
	stored, _ := st.Policy(ctx, "p9")
	assert.Equal(t, "evening", stored.Name)

	_, err = a.Save(ctx, model.CapacityPolicy{ID: "bad", HubID: "h1", EnforcementRule: model.EnforcementRule{ThresholdPercent: 500}})
	assert.ErrorIs(t, err, errs.ErrInvalidRequest)
	_, err = a.Save(ctx, model.CapacityPolicy{ID: "old", HubID: "h1"})
	assert.ErrorIs(t, err, errs.ErrInvalidRequest)
	_, err = a.Save(ctx, model.CapacityPolicy{ID: "x", HubID: "nohub"})
	assert.ErrorIs(t, err, errs.ErrNotFound)
}
