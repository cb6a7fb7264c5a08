package store

import (
	"context"
	"sort"
	"sync"

	"github.com/kilianp07/powerhub/core/errs"
	"github.com/kilianp07/powerhub/core/model"
)

// MemoryStore is an in-process Store. Values are deep-copied on the way in
// and out so callers never share state with the store.
type MemoryStore struct {
	mu       sync.RWMutex
	hubs     map[string]model.Hub
	tenants  map[string]model.Tenant
	policies map[string]model.CapacityPolicy
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		hubs:     map[string]model.Hub{},
		tenants:  map[string]model.Tenant{},
		policies: map[string]model.CapacityPolicy{},
	}
}

func (s *MemoryStore) Hub(_ context.Context, id string) (model.Hub, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.hubs[id]
	if !ok {
		return model.Hub{}, errs.NotFound("hub", id)
	}
	return h.Clone(), nil
}

func (s *MemoryStore) Tenant(_ context.Context, id string) (model.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[id]
	if !ok {
		return model.Tenant{}, errs.NotFound("tenant", id)
	}
	return t.Clone(), nil
}

func (s *MemoryStore) Policy(_ context.Context, id string) (model.CapacityPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[id]
	if !ok {
		return model.CapacityPolicy{}, errs.NotFound("policy", id)
	}
	return p.Clone(), nil
}

func (s *MemoryStore) Hubs(_ context.Context) ([]model.Hub, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Hub, 0, len(s.hubs))
	for _, h := range s.hubs {
		out = append(out, h.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) TenantsByHub(_ context.Context, hubID string, status ...model.TenantStatus) ([]model.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Tenant
	for _, t := range s.tenants {
		if t.HubID != hubID || !StatusMatch(t.Status, status) {
			continue
		}
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) PoliciesByHub(_ context.Context, hubID string) ([]model.CapacityPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.CapacityPolicy
	for _, p := range s.policies {
		if p.HubID == hubID {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) Commit(ctx context.Context, c Changes) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, h := range c.Hubs {
		if cur := s.hubs[h.ID]; cur.Version != h.Version {
			return errs.Conflict("hub", h.ID)
		}
	}
	for _, t := range c.Tenants {
		if cur := s.tenants[t.ID]; cur.Version != t.Version {
			return errs.Conflict("tenant", t.ID)
		}
	}
	for _, p := range c.Policies {
		if cur := s.policies[p.ID]; cur.Version != p.Version {
			return errs.Conflict("policy", p.ID)
		}
	}

	for _, h := range c.Hubs {
		h = h.Clone()
		h.Version++
		s.hubs[h.ID] = h
	}
	for _, t := range c.Tenants {
		t = t.Clone()
		t.Version++
		s.tenants[t.ID] = t
	}
	for _, p := range c.Policies {
		p = p.Clone()
		p.Version++
		s.policies[p.ID] = p
	}
	return nil
}

func (s *MemoryStore) Close() error { return nil }
