package vpp

import (
	"context"
	"math"

	"github.com/kilianp07/powerhub/core/audit"
	"github.com/kilianp07/powerhub/core/errs"
	"github.com/kilianp07/powerhub/core/metrics"
	"github.com/kilianp07/powerhub/core/model"
	"github.com/kilianp07/powerhub/core/service"
	"github.com/kilianp07/powerhub/core/store"
)

const component = "vpp"

// Coordinator resolves dispatch claims against hub state.
type Coordinator struct {
	deps service.Deps
}

func New(d service.Deps) *Coordinator {
	return &Coordinator{deps: d.WithDefaults()}
}

// ResolveConflict arbitrates claim for the tenant. Throttle actions are
// applied to the tenant's current draw before returning.
func (c *Coordinator) ResolveConflict(ctx context.Context, hubID, tenantID string, claim model.DispatchClaim) (Resolution, error) {
	if hubID == "" || tenantID == "" {
		return Resolution{}, errs.WithOp("resolve conflict", errs.Invalid("hub id and tenant id are required"))
	}
	if err := service.Validate(claim); err != nil {
		return Resolution{}, errs.WithOp("resolve conflict", err)
	}
	var (
		res       Resolution
		tier      model.PriorityTier
		throttled float64
	)
	err := c.deps.WithHub(ctx, hubID, func(ctx context.Context) error {
		hub, err := c.deps.Store.Hub(ctx, hubID)
		if err != nil {
			return err
		}
		tenant, err := c.deps.Store.Tenant(ctx, tenantID)
		if err != nil {
			return err
		}
		if tenant.HubID != hubID {
			return errs.Invalid("tenant %s does not belong to hub %s", tenantID, hubID)
		}
		tier = tenant.PriorityTier
		res = Resolve(hub, tenant, claim)

		kw := math.Min(res.ThrottleKW(), tenant.Usage.CurrentKW)
		if kw <= 0 {
			return nil
		}
		now := c.deps.Clock.Now()
		tenant.Usage.CurrentKW -= kw
		tenant.Usage.LastUpdated = now
		tenant.UpdatedAt = now
		hub.Capacity.AllocatedKW = math.Max(0, hub.Capacity.AllocatedKW-kw)
		hub.Capacity.Recompute()
		hub.UpdatedAt = now
		if err := c.deps.Store.Commit(ctx, store.Changes{Hubs: []model.Hub{hub}, Tenants: []model.Tenant{tenant}}); err != nil {
			return err
		}
		throttled = kw
		return nil
	})
	if err != nil {
		return Resolution{}, errs.WithOp("resolve conflict", err)
	}

	now := c.deps.Clock.Now()
	rec := audit.NewRecord(audit.TypeDispatchConflict, hubID, now)
	rec.TenantID = tenantID
	rec.Resolution = res.Label
	rec.Request = &audit.RequestInfo{RequestedKW: claim.RequestedKW, Purpose: claim.Source}
	rec.Details = map[string]any{
		"claim_id":     claim.ID,
		"shortfall_kw": res.ShortfallKW,
		"throttled_kw": throttled,
		"actions":      res.Actions,
		"window_start": claim.Start,
		"window_end":   claim.End,
	}
	c.deps.Emit(ctx, component, rec)
	_ = metrics.RecordConflict(c.deps.Metrics, metrics.ConflictEvent{
		HubID:       hubID,
		TenantID:    tenantID,
		ClaimID:     claim.ID,
		Resolution:  res.Label,
		ShortfallKW: res.ShortfallKW,
		Time:        now,
	})
	c.deps.Log.Infow("dispatch conflict resolved", map[string]any{
		"hub_id":       hubID,
		"tenant_id":    tenantID,
		"tier":         string(tier),
		"claim_id":     claim.ID,
		"resolution":   res.Label,
		"shortfall_kw": res.ShortfallKW,
	})
	return res, nil
}

// AssessReadiness loads the hub snapshot and runs Assess.
func (c *Coordinator) AssessReadiness(ctx context.Context, hubID string, window model.Window) (Readiness, error) {
	ctx, cancel := context.WithTimeout(ctx, c.deps.SnapshotTimeout)
	defer cancel()
	hub, err := c.deps.Store.Hub(ctx, hubID)
	if err != nil {
		return Readiness{}, errs.WithOp("assess readiness", err)
	}
	tenants, err := c.deps.Store.TenantsByHub(ctx, hubID)
	if err != nil {
		return Readiness{}, errs.WithOp("assess readiness", err)
	}
	p, _, err := store.ActivePolicy(ctx, c.deps.Store, hub)
	if err != nil {
		return Readiness{}, errs.WithOp("assess readiness", err)
	}
	if !window.End.IsZero() && window.End.Before(window.Start) {
		return Readiness{}, errs.WithOp("assess readiness", errs.Invalid("window ends before it starts"))
	}
	return Assess(hub, tenants, p, window, c.deps.Clock.Now()), nil
}
