// Package activation manages the lifecycle of capacity policies: drafts are
// saved, applied to a hub, deactivated and finally archived.
package activation

import (
	"context"

	"github.com/kilianp07/powerhub/core/audit"
	"github.com/kilianp07/powerhub/core/errs"
	"github.com/kilianp07/powerhub/core/model"
	"github.com/kilianp07/powerhub/core/policy"
	"github.com/kilianp07/powerhub/core/service"
	"github.com/kilianp07/powerhub/core/store"
)

const component = "activation"

// Applied is the outcome of Apply.
type Applied struct {
	Policy model.CapacityPolicy `json:"policy"`
	// ReplacedID is the policy that was active before, if any.
	ReplacedID string `json:"replaced_id,omitempty"`
}

// Activator changes policy states under the hub lock.
type Activator struct {
	deps service.Deps
}

func New(d service.Deps) *Activator {
	return &Activator{deps: d.WithDefaults()}
}

// Save validates and stores p as a draft, or updates an existing draft or
// inactive policy in place. Active policies keep their state.
func (a *Activator) Save(ctx context.Context, p model.CapacityPolicy) (model.CapacityPolicy, error) {
	if err := policy.Validate(p); err != nil {
		return model.CapacityPolicy{}, errs.WithOp("save policy", errs.Invalid("%v", err))
	}
	var out model.CapacityPolicy
	err := a.deps.WithHub(ctx, p.HubID, func(ctx context.Context) error {
		if _, err := a.deps.Store.Hub(ctx, p.HubID); err != nil {
			return err
		}
		cur, err := a.deps.Store.Policy(ctx, p.ID)
		switch {
		case errs.KindOf(err) == errs.KindNotFound:
			p.State = model.PolicyDraft
			p.Version = 0
			p.RebalanceCount = 0
			p.LastRebalancedAt = nil
			p.ActivatedAt = nil
		case err != nil:
			return err
		case cur.State == model.PolicyArchived:
			return errs.Invalid("policy %s is archived", p.ID)
		case cur.HubID != p.HubID:
			return errs.Invalid("policy %s belongs to hub %s", p.ID, cur.HubID)
		default:
			p.State = cur.State
			p.Version = cur.Version
			p.RebalanceCount = cur.RebalanceCount
			p.LastRebalancedAt = cur.LastRebalancedAt
			p.ActivatedAt = cur.ActivatedAt
		}
		p.UpdatedAt = a.deps.Clock.Now()
		if err := a.deps.Store.Commit(ctx, store.Changes{Policies: []model.CapacityPolicy{p}}); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return model.CapacityPolicy{}, errs.WithOp("save policy", err)
	}
	return out, nil
}

// Apply makes policyID the hub's active policy. A different active policy is
// only replaced when override is set.
func (a *Activator) Apply(ctx context.Context, hubID, policyID string, override bool, by string) (Applied, error) {
	if hubID == "" || policyID == "" {
		return Applied{}, errs.WithOp("apply policy", errs.Invalid("hub id and policy id are required"))
	}
	var out Applied
	err := a.deps.WithHub(ctx, hubID, func(ctx context.Context) error {
		hub, err := a.deps.Store.Hub(ctx, hubID)
		if err != nil {
			return err
		}
		p, err := a.deps.Store.Policy(ctx, policyID)
		if err != nil {
			return err
		}
		if p.HubID != hubID {
			return errs.Invalid("policy %s belongs to hub %s", p.ID, p.HubID)
		}
		if p.State == model.PolicyArchived {
			return errs.Invalid("policy %s is archived", p.ID)
		}
		if err := policy.Validate(p); err != nil {
			return errs.Invalid("%v", err)
		}

		var changes store.Changes
		if hub.ActivePolicyID == p.ID && p.State == model.PolicyActive {
			out.Policy = p
			return nil
		}
		others, err := a.deps.Store.PoliciesByHub(ctx, hubID)
		if err != nil {
			return err
		}
		now := a.deps.Clock.Now()
		for _, prior := range others {
			if prior.ID == p.ID || prior.State != model.PolicyActive {
				continue
			}
			if !override {
				return errs.PolicyConflict(hubID, prior.ID)
			}
			prior.State = model.PolicyInactive
			prior.UpdatedAt = now
			changes.PutPolicy(prior)
			out.ReplacedID = prior.ID
		}

		p.State = model.PolicyActive
		p.ActivatedAt = &now
		p.UpdatedAt = now
		changes.PutPolicy(p)
		hub.ActivePolicyID = p.ID
		hub.UpdatedAt = now
		changes.PutHub(hub)
		if err := a.deps.Store.Commit(ctx, changes); err != nil {
			return err
		}
		out.Policy = p
		return nil
	})
	if err != nil {
		return Applied{}, errs.WithOp("apply policy", err)
	}

	rec := audit.NewRecord(audit.TypePolicyApplied, hubID, a.deps.Clock.Now())
	rec.PolicyID = policyID
	rec.TriggeredBy = by
	rec.Details = map[string]any{"replaced": out.ReplacedID, "override": override}
	a.deps.Emit(ctx, component, rec)
	a.deps.Log.Infow("policy applied", map[string]any{"hub_id": hubID, "policy_id": policyID, "replaced": out.ReplacedID, "by": by})
	return out, nil
}

// Deactivate moves an active policy to inactive and clears the hub reference.
// The hub then falls back to minimal enforcement.
func (a *Activator) Deactivate(ctx context.Context, policyID, by string) (model.CapacityPolicy, error) {
	out, err := a.transition(ctx, policyID, func(p *model.CapacityPolicy) error {
		if p.State != model.PolicyActive {
			return errs.Invalid("policy %s is %s, not active", p.ID, p.State)
		}
		p.State = model.PolicyInactive
		return nil
	})
	if err != nil {
		return model.CapacityPolicy{}, errs.WithOp("deactivate policy", err)
	}
	a.deps.Log.Infow("policy deactivated", map[string]any{"hub_id": out.HubID, "policy_id": out.ID, "by": by})
	return out, nil
}

// Archive retires a policy for good. Active policies must be deactivated first.
func (a *Activator) Archive(ctx context.Context, policyID, by string) (model.CapacityPolicy, error) {
	out, err := a.transition(ctx, policyID, func(p *model.CapacityPolicy) error {
		switch p.State {
		case model.PolicyActive:
			return errs.Invalid("policy %s is active; deactivate it first", p.ID)
		case model.PolicyArchived:
			return errs.Invalid("policy %s is already archived", p.ID)
		}
		p.State = model.PolicyArchived
		return nil
	})
	if err != nil {
		return model.CapacityPolicy{}, errs.WithOp("archive policy", err)
	}
	a.deps.Log.Infow("policy archived", map[string]any{"hub_id": out.HubID, "policy_id": out.ID, "by": by})
	return out, nil
}

func (a *Activator) transition(ctx context.Context, policyID string, fn func(*model.CapacityPolicy) error) (model.CapacityPolicy, error) {
	if policyID == "" {
		return model.CapacityPolicy{}, errs.Invalid("policy id is required")
	}
	lookup, cancel := context.WithTimeout(ctx, a.deps.SnapshotTimeout)
	p, err := a.deps.Store.Policy(lookup, policyID)
	cancel()
	if err != nil {
		return model.CapacityPolicy{}, err
	}
	var out model.CapacityPolicy
	err = a.deps.WithHub(ctx, p.HubID, func(ctx context.Context) error {
		p, err := a.deps.Store.Policy(ctx, policyID)
		if err != nil {
			return err
		}
		if err := fn(&p); err != nil {
			return err
		}
		now := a.deps.Clock.Now()
		p.UpdatedAt = now
		changes := store.Changes{Policies: []model.CapacityPolicy{p}}
		hub, err := a.deps.Store.Hub(ctx, p.HubID)
		if err != nil {
			return err
		}
		if hub.ActivePolicyID == p.ID && p.State != model.PolicyActive {
			hub.ActivePolicyID = ""
			hub.UpdatedAt = now
			changes.PutHub(hub)
		}
		if err := a.deps.Store.Commit(ctx, changes); err != nil {
			return err
		}
		out = p
		return nil
	})
	return out, err
}
