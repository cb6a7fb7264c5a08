// Package storetest holds the behaviour every store.Store implementation must
// share.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/powerhub/core/errs"
	"github.com/kilianp07/powerhub/core/model"
	"github.com/kilianp07/powerhub/core/store"
)

// Run exercises s, which must be empty.
func Run(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()

	var c store.Changes
	c.PutHub(model.Hub{ID: "h1", Status: model.HubActive, Capacity: model.HubCapacity{TotalKW: 100}})
	c.PutHub(model.Hub{ID: "h2", Status: model.HubActive})
	c.PutTenant(model.Tenant{ID: "t2", HubID: "h1", Status: model.TenantActive, Attributes: map[string]float64{"floorArea": 5}})
	c.PutTenant(model.Tenant{ID: "t1", HubID: "h1", Status: model.TenantSuspended})
	c.PutTenant(model.Tenant{ID: "t3", HubID: "h2", Status: model.TenantActive})
	c.PutPolicy(model.CapacityPolicy{ID: "p1", HubID: "h1", State: model.PolicyActive})
	require.NoError(t, s.Commit(ctx, c))

	h, err := s.Hub(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), h.Version)
	assert.Equal(t, 100.0, h.Capacity.TotalKW)

	_, err = s.Tenant(ctx, "missing")
	assert.ErrorIs(t, err, errs.ErrNotFound)
	_, err = s.Policy(ctx, "missing")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	all, err := s.TenantsByHub(ctx, "h1")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "t1", all[0].ID)
	assert.Equal(t, 5.0, all[1].Attributes["floorArea"])

	active, err := s.TenantsByHub(ctx, "h1", model.TenantActive)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "t2", active[0].ID)

	hubs, err := s.Hubs(ctx)
	require.NoError(t, err)
	require.Len(t, hubs, 2)
	assert.Equal(t, "h1", hubs[0].ID)

	pols, err := s.PoliciesByHub(ctx, "h1")
	require.NoError(t, err)
	require.Len(t, pols, 1)

	// a stale version fails the whole set
	tn, err := s.Tenant(ctx, "t2")
	require.NoError(t, err)
	tn.Usage.CurrentKW = 10
	h.Capacity.AllocatedKW = 10
	stale := h
	stale.Version = 0
	err = s.Commit(ctx, store.Changes{Hubs: []model.Hub{stale}, Tenants: []model.Tenant{tn}})
	assert.ErrorIs(t, err, errs.ErrConflict)
	unchanged, err := s.Tenant(ctx, "t2")
	require.NoError(t, err)
	assert.Zero(t, unchanged.Usage.CurrentKW)

	require.NoError(t, s.Commit(ctx, store.Changes{Hubs: []model.Hub{h}, Tenants: []model.Tenant{tn}}))
	tn2, err := s.Tenant(ctx, "t2")
	require.NoError(t, err)
	assert.Equal(t, 10.0, tn2.Usage.CurrentKW)
	assert.Equal(t, int64(2), tn2.Version)

	// the same read cannot be committed twice
	assert.ErrorIs(t, s.Commit(ctx, store.Changes{Tenants: []model.Tenant{tn}}), errs.ErrConflict)

	p, ok, err := store.ActivePolicy(ctx, s, model.Hub{ID: "h1", ActivePolicyID: "p1"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "p1", p.ID)
	_, ok, err = store.ActivePolicy(ctx, s, model.Hub{ID: "h2", ActivePolicyID: "p1"})
	require.NoError(t, err)
	assert.False(t, ok)
}
