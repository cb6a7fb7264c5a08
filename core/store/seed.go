package store

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/powerhub/core/allocation"
	"github.com/kilianp07/powerhub/core/model"
)

// Seed is the fixture format used to populate an empty store.
type Seed struct {
	Hubs     []model.Hub            `yaml:"hubs"`
	Tenants  []model.Tenant         `yaml:"tenants"`
	Policies []model.CapacityPolicy `yaml:"policies"`
}

// LoadSeed reads a YAML seed file.
func LoadSeed(path string) (Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("read seed: %w", err)
	}
	var s Seed
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Seed{}, fmt.Errorf("parse seed %s: %w", path, err)
	}
	return s, nil
}

// Apply creates the seeded entities in st. Hub availability is recomputed and
// tenants given only an allocation get the base/burst split derived.
func (s Seed) Apply(ctx context.Context, st Store) error {
	var c Changes
	for _, h := range s.Hubs {
		if h.Status == "" {
			h.Status = model.HubActive
		}
		h.Capacity.Recompute()
		h.Version = 0
		c.PutHub(h)
	}
	for _, t := range s.Tenants {
		if t.Status == "" {
			t.Status = model.TenantActive
		}
		if t.PriorityTier == "" {
			t.PriorityTier = model.TierStandard
		}
		if t.Compliance.WarningLevel == "" {
			t.Compliance.WarningLevel = model.WarningNone
		}
		if t.Capacity.BaseKW == 0 && t.Capacity.BurstKW == 0 {
			allocation.ApplySplit(&t.Capacity, t.Capacity.AllocatedKW)
		}
		t.Version = 0
		c.PutTenant(t)
	}
	for _, p := range s.Policies {
		if p.State == "" {
			p.State = model.PolicyDraft
		}
		p.Version = 0
		c.PutPolicy(p)
	}
	if err := st.Commit(ctx, c); err != nil {
		return fmt.Errorf("apply seed: %w", err)
	}
	return nil
}
