// Package store defines the entity store the engine reads snapshots from and
// commits change sets to.
package store

import (
	"context"

	"github.com/kilianp07/powerhub/core/errs"
	"github.com/kilianp07/powerhub/core/model"
)

// Store loads and persists hubs, tenants and policies.
//
// Commit applies a change set atomically. Every entity carries the Version it
// was read at; a mismatch with the stored version fails the whole set with an
// errs.KindConflict error. Version 0 creates an entity that must not exist
// yet. Stored versions are incremented on success.
type Store interface {
	Hub(ctx context.Context, id string) (model.Hub, error)
	Tenant(ctx context.Context, id string) (model.Tenant, error)
	Policy(ctx context.Context, id string) (model.CapacityPolicy, error)
	Hubs(ctx context.Context) ([]model.Hub, error)
	// TenantsByHub returns the tenants of hubID ordered by id. With no status
	// given every tenant is returned.
	TenantsByHub(ctx context.Context, hubID string, status ...model.TenantStatus) ([]model.Tenant, error)
	PoliciesByHub(ctx context.Context, hubID string) ([]model.CapacityPolicy, error)
	Commit(ctx context.Context, c Changes) error
	Close() error
}

// Changes is a set of entity writes committed together.
type Changes struct {
	Hubs     []model.Hub
	Tenants  []model.Tenant
	Policies []model.CapacityPolicy
}

func (c *Changes) PutHub(h model.Hub)               { c.Hubs = append(c.Hubs, h) }
func (c *Changes) PutTenant(t model.Tenant)         { c.Tenants = append(c.Tenants, t) }
func (c *Changes) PutPolicy(p model.CapacityPolicy) { c.Policies = append(c.Policies, p) }

// Empty reports whether the set carries no writes.
func (c Changes) Empty() bool {
	return len(c.Hubs) == 0 && len(c.Tenants) == 0 && len(c.Policies) == 0
}

// ActivePolicy returns the hub's active policy. ok is false when the hub has
// none or the referenced policy is not in the active state.
func ActivePolicy(ctx context.Context, s Store, hub model.Hub) (p model.CapacityPolicy, ok bool, err error) {
	if hub.ActivePolicyID == "" {
		return model.CapacityPolicy{}, false, nil
	}
	p, err = s.Policy(ctx, hub.ActivePolicyID)
	if err != nil {
		if errs.KindOf(err) == errs.KindNotFound {
			return model.CapacityPolicy{}, false, nil
		}
		return model.CapacityPolicy{}, false, err
	}
	if p.State != model.PolicyActive || p.HubID != hub.ID {
		return model.CapacityPolicy{}, false, nil
	}
	return p, true, nil
}

// StatusMatch reports whether s is one of want. An empty want matches all.
func StatusMatch(s model.TenantStatus, want []model.TenantStatus) bool {
	if len(want) == 0 {
		return true
	}
	for _, w := range want {
		if s == w {
			return true
		}
	}
	return false
}
