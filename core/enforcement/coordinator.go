// Package enforcement orchestrates a single capacity request: it loads the
// tenant, hub and policy snapshot, asks the policy for a decision, applies
// the usage delta and records the outcome.
//
// The hub's AllocatedKW is the sum of tenant allocations from the last
// rebalance plus the granted draw not yet released. Granted requests add to
// it and Release subtracts from it.
//
// Open question: a rebalance hands the whole pool to the tenants, so right
// after a pass the hub has no available capacity and every request is denied
// by the hub-level check with queue-request and notify-admin until draw is
// released or the pool grows. Whether the hub check should instead be
// measured against live draw is undecided; the behaviour is kept as is.
package enforcement

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/kilianp07/powerhub/core/audit"
	"github.com/kilianp07/powerhub/core/errs"
	"github.com/kilianp07/powerhub/core/metrics"
	"github.com/kilianp07/powerhub/core/model"
	"github.com/kilianp07/powerhub/core/policy"
	"github.com/kilianp07/powerhub/core/service"
	"github.com/kilianp07/powerhub/core/store"
)

const component = "enforcement"

// RuleTenantStatus labels denials of suspended or cut-off tenants.
const RuleTenantStatus = "tenant-status"

// Request is a tenant's demand for additional capacity.
type Request struct {
	TenantID    string  `json:"tenant_id" validate:"required"`
	RequestedKW float64 `json:"requested_kw" validate:"gt=0"`
	DeviceID    string  `json:"device_id,omitempty"`
	DeviceType  string  `json:"device_type,omitempty"`
	Purpose     string  `json:"purpose,omitempty"`
	TriggeredBy string  `json:"triggered_by,omitempty"`
}

// TenantSummary is the tenant state after the decision was applied.
type TenantSummary struct {
	ID                 string             `json:"id"`
	Status             model.TenantStatus `json:"status"`
	AllocatedKW        float64            `json:"allocated_kw"`
	CurrentKW          float64            `json:"current_kw"`
	HeadroomKW         float64            `json:"headroom_kw"`
	UtilizationPercent float64            `json:"utilization_percent"`
}

// HubSummary is the hub state after the decision was applied.
type HubSummary struct {
	ID                 string  `json:"id"`
	TotalKW            float64 `json:"total_kw"`
	AllocatedKW        float64 `json:"allocated_kw"`
	AvailableKW        float64 `json:"available_kw"`
	UtilizationPercent float64 `json:"utilization_percent"`
}

// Outcome is returned by Enforce.
type Outcome struct {
	Decision model.Decision `json:"decision"`
	PolicyID string         `json:"policy_id,omitempty"`
	Tenant   TenantSummary  `json:"tenant"`
	Hub      HubSummary     `json:"hub"`
}

// Coordinator is the entry point for tenant-driven capacity requests.
type Coordinator struct {
	deps service.Deps
}

func New(d service.Deps) *Coordinator {
	return &Coordinator{deps: d.WithDefaults()}
}

// Enforce decides req and applies the granted delta. Denial is reported in the
// decision, not as an error. Errors mean nothing was applied.
func (c *Coordinator) Enforce(ctx context.Context, req Request) (Outcome, error) {
	if err := service.Validate(req); err != nil {
		return Outcome{}, errs.WithOp("enforce", err)
	}
	hubID, err := c.hubOf(ctx, req.TenantID)
	if err != nil {
		return Outcome{}, errs.WithOp("enforce", err)
	}

	var (
		out  Outcome
		snap audit.Snapshot
	)
	err = c.deps.WithHub(ctx, hubID, func(ctx context.Context) error {
		tenant, err := c.deps.Store.Tenant(ctx, req.TenantID)
		if err != nil {
			return err
		}
		hub, err := c.deps.Store.Hub(ctx, tenant.HubID)
		if err != nil {
			return err
		}
		p, hasPolicy, err := store.ActivePolicy(ctx, c.deps.Store, hub)
		if err != nil {
			return err
		}

		now := c.deps.Clock.Now()
		isPeak := policy.IsPeak(p, now)
		snap = snapshot(tenant, hub, isPeak, now)

		var changes store.Changes
		tenantDirty := liftExpiredSuspension(&tenant, now)

		var d model.Decision
		in := policy.Input{
			Tenant:         tenant,
			RequestedKW:    req.RequestedKW,
			CurrentUsageKW: tenant.Usage.CurrentKW,
			Hub:            hub,
			Now:            now,
			IsPeak:         isPeak,
		}
		switch {
		case tenant.Blocked(now):
			d = model.Decision{RequestedKW: req.RequestedKW, Rule: RuleTenantStatus, Reason: blockedReason(tenant), IsPeak: isPeak}
		case hasPolicy:
			d = policy.Evaluate(p, in)
			out.PolicyID = p.ID
		default:
			d = policy.Fallback(in)
		}

		if d.Approved && d.GrantedKW > 0 {
			tenant.Usage.CurrentKW += d.GrantedKW
			tenant.Usage.PeakKW = math.Max(tenant.Usage.PeakKW, tenant.Usage.CurrentKW)
			tenant.Usage.LastUpdated = now
			hub.Capacity.AllocatedKW += d.GrantedKW
			hub.Capacity.Recompute()
			hub.UpdatedAt = now
			changes.PutHub(hub)
			tenantDirty = true
		}
		if tenantDirty {
			tenant.UpdatedAt = now
			changes.PutTenant(tenant)
		}
		if !changes.Empty() {
			if err := c.deps.Store.Commit(ctx, changes); err != nil {
				return err
			}
		}

		out.Decision = d
		out.Tenant = summarizeTenant(tenant)
		out.Hub = summarizeHub(hub)
		return nil
	})
	if err != nil {
		return Outcome{}, errs.WithOp("enforce", err)
	}

	c.record(ctx, hubID, req, out, snap)
	return out, nil
}

// Release returns kw of a tenant's live draw to the hub, e.g. when a device
// stops charging. The release is capped at the tenant's current draw.
func (c *Coordinator) Release(ctx context.Context, tenantID string, kw float64) (Outcome, error) {
	if tenantID == "" || !(kw > 0) {
		return Outcome{}, errs.WithOp("release", errs.Invalid("tenant id and a positive kW amount are required"))
	}
	hubID, err := c.hubOf(ctx, tenantID)
	if err != nil {
		return Outcome{}, errs.WithOp("release", err)
	}
	var out Outcome
	err = c.deps.WithHub(ctx, hubID, func(ctx context.Context) error {
		tenant, err := c.deps.Store.Tenant(ctx, tenantID)
		if err != nil {
			return err
		}
		hub, err := c.deps.Store.Hub(ctx, tenant.HubID)
		if err != nil {
			return err
		}
		now := c.deps.Clock.Now()
		released := math.Min(kw, tenant.Usage.CurrentKW)
		tenant.Usage.CurrentKW -= released
		tenant.Usage.LastUpdated = now
		tenant.UpdatedAt = now
		hub.Capacity.AllocatedKW = math.Max(0, hub.Capacity.AllocatedKW-released)
		hub.Capacity.Recompute()
		hub.UpdatedAt = now
		if err := c.deps.Store.Commit(ctx, store.Changes{Hubs: []model.Hub{hub}, Tenants: []model.Tenant{tenant}}); err != nil {
			return err
		}
		out.Tenant = summarizeTenant(tenant)
		out.Hub = summarizeHub(hub)
		return nil
	})
	if err != nil {
		return Outcome{}, errs.WithOp("release", err)
	}
	c.deps.Log.Infow("usage released", map[string]any{"tenant_id": tenantID, "hub_id": hubID, "requested_kw": kw})
	return out, nil
}

func (c *Coordinator) hubOf(ctx context.Context, tenantID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.deps.SnapshotTimeout)
	defer cancel()
	t, err := c.deps.Store.Tenant(ctx, tenantID)
	if err != nil {
		return "", err
	}
	return t.HubID, nil
}

func (c *Coordinator) record(ctx context.Context, hubID string, req Request, out Outcome, snap audit.Snapshot) {
	d := out.Decision
	now := c.deps.Clock.Now()
	typ := audit.TypeAllocationDenied
	if d.Approved {
		typ = audit.TypeAllocationGranted
	}
	rec := audit.NewRecord(typ, hubID, now)
	rec.TenantID = req.TenantID
	rec.PolicyID = out.PolicyID
	rec.Request = &audit.RequestInfo{
		RequestedKW: req.RequestedKW,
		DeviceID:    req.DeviceID,
		DeviceType:  req.DeviceType,
		Purpose:     req.Purpose,
	}
	rec.Decision = &d
	rec.Context = &snap
	rec.TriggeredBy = req.TriggeredBy
	c.deps.Emit(ctx, component, rec)

	_ = c.deps.Metrics.RecordDecision(metrics.DecisionEvent{
		HubID:       hubID,
		TenantID:    req.TenantID,
		Rule:        d.Rule,
		Approved:    d.Approved,
		RequestedKW: d.RequestedKW,
		GrantedKW:   d.GrantedKW,
		IsPeak:      d.IsPeak,
		Time:        now,
	})
	_ = metrics.RecordHubUtilization(c.deps.Metrics, metrics.HubUtilization{
		HubID:              hubID,
		UtilizationPercent: out.Hub.UtilizationPercent,
		AvailableKW:        out.Hub.AvailableKW,
		Time:               now,
	})
	c.deps.Log.Infow("capacity decision", map[string]any{
		"tenant_id":    req.TenantID,
		"hub_id":       hubID,
		"approved":     d.Approved,
		"rule":         d.Rule,
		"requested_kw": d.RequestedKW,
		"granted_kw":   d.GrantedKW,
	})
}

// liftExpiredSuspension reactivates a timed suspension once it has run out.
func liftExpiredSuspension(t *model.Tenant, now time.Time) bool {
	if t.Status != model.TenantSuspended || t.RequiresManualReactivation || t.SuspendedUntil == nil {
		return false
	}
	if now.Before(*t.SuspendedUntil) {
		return false
	}
	t.Status = model.TenantActive
	t.SuspendedUntil = nil
	return true
}

func blockedReason(t model.Tenant) string {
	switch t.Status {
	case model.TenantCutoff:
		return "Tenant cut off; manual reactivation required"
	case model.TenantSuspended:
		if t.SuspendedUntil != nil && !t.RequiresManualReactivation {
			return fmt.Sprintf("Tenant suspended until %s", t.SuspendedUntil.Format(time.RFC3339))
		}
		return "Tenant suspended"
	}
	return fmt.Sprintf("Tenant %s", t.Status)
}

func snapshot(t model.Tenant, h model.Hub, isPeak bool, now time.Time) audit.Snapshot {
	return audit.Snapshot{
		TenantUtilizationPercent: t.UtilizationPercent(),
		HubUtilizationPercent:    h.Capacity.UtilizationPercent(),
		HubAvailableKW:           h.Capacity.AvailableKW,
		IsPeak:                   isPeak,
		DayOfWeek:                now.Weekday().String(),
		Hour:                     now.Hour(),
	}
}

func summarizeTenant(t model.Tenant) TenantSummary {
	return TenantSummary{
		ID:                 t.ID,
		Status:             t.Status,
		AllocatedKW:        t.Capacity.AllocatedKW,
		CurrentKW:          t.Usage.CurrentKW,
		HeadroomKW:         t.HeadroomKW(),
		UtilizationPercent: t.UtilizationPercent(),
	}
}

func summarizeHub(h model.Hub) HubSummary {
	return HubSummary{
		ID:                 h.ID,
		TotalKW:            h.Capacity.TotalKW,
		AllocatedKW:        h.Capacity.AllocatedKW,
		AvailableKW:        h.Capacity.AvailableKW,
		UtilizationPercent: h.Capacity.UtilizationPercent(),
	}
}
