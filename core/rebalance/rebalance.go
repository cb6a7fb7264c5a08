// Package rebalance redistributes a hub's capacity across its tenants.
//
// A pass sets the hub's AllocatedKW to the new allocations plus the draw
// tenants already hold, which leaves no hub headroom for new requests until
// that draw is released. See the enforcement package for the open question.
package rebalance

import (
	"context"
	"math"
	"time"

	"github.com/kilianp07/powerhub/core/allocation"
	"github.com/kilianp07/powerhub/core/audit"
	"github.com/kilianp07/powerhub/core/errs"
	"github.com/kilianp07/powerhub/core/metrics"
	"github.com/kilianp07/powerhub/core/model"
	"github.com/kilianp07/powerhub/core/policy"
	"github.com/kilianp07/powerhub/core/service"
	"github.com/kilianp07/powerhub/core/store"
)

const component = "rebalance"

// DeadBandKW is the smallest allocation change that is applied.
const DeadBandKW = 0.1

// Options tune a single pass.
type Options struct {
	TriggeredBy string `json:"triggered_by,omitempty"`
	// DryRun computes the changes without committing or recording them.
	DryRun bool `json:"dry_run,omitempty"`
}

// Change is one tenant allocation moved by a pass.
type Change struct {
	TenantID      string  `json:"tenant_id"`
	BeforeKW      float64 `json:"before_kw"`
	AfterKW       float64 `json:"after_kw"`
	ChangePercent float64 `json:"change_percent"`
}

// Result summarizes a pass. Skipped passes carry the reason and no changes.
type Result struct {
	HubID       string                 `json:"hub_id"`
	PolicyID    string                 `json:"policy_id,omitempty"`
	Trigger     model.RebalanceTrigger `json:"trigger,omitempty"`
	Method      model.AllocationMethod `json:"method,omitempty"`
	Changes     []Change               `json:"changes"`
	AllocatedKW float64                `json:"allocated_kw"`
	DryRun      bool                   `json:"dry_run"`
	Skipped     bool                   `json:"skipped"`
	Reason      string                 `json:"reason,omitempty"`
}

// Rebalancer runs allocation passes under the hub lock.
type Rebalancer struct {
	deps service.Deps
}

func New(d service.Deps) *Rebalancer {
	return &Rebalancer{deps: d.WithDefaults()}
}

// Rebalance redistributes the hub under its active policy when the policy's
// rebalance rule accepts trigger.
func (r *Rebalancer) Rebalance(ctx context.Context, hubID string, trigger model.RebalanceTrigger, opts Options) (Result, error) {
	if hubID == "" || trigger == "" {
		return Result{}, errs.WithOp("rebalance", errs.Invalid("hub id and trigger are required"))
	}
	res, err := r.pass(ctx, hubID, trigger, opts, func(hub model.Hub, p model.CapacityPolicy, ok bool) (model.AllocationRule, string) {
		if !ok {
			return model.AllocationRule{}, "no active policy"
		}
		if !policy.ShouldRebalance(p, hub, trigger) {
			return model.AllocationRule{}, "rebalance rule does not accept trigger " + string(trigger)
		}
		return p.AllocationRule, ""
	}, audit.TypeRebalanced, true)
	if err != nil {
		return res, errs.WithOp("rebalance", err)
	}
	return res, nil
}

// Allocate redistributes the hub with an explicit method, regardless of the
// rebalance rule. The active policy's allocation parameters are used when
// there is one.
func (r *Rebalancer) Allocate(ctx context.Context, hubID string, method model.AllocationMethod, opts Options) (Result, error) {
	if hubID == "" {
		return Result{}, errs.WithOp("allocate", errs.Invalid("hub id is required"))
	}
	res, err := r.pass(ctx, hubID, model.TriggerManual, opts, func(_ model.Hub, p model.CapacityPolicy, ok bool) (model.AllocationRule, string) {
		rule := model.AllocationRule{Method: method}
		if ok {
			rule.Params = p.AllocationRule.Params
			if method == "" {
				rule.Method = p.AllocationRule.Method
			}
		}
		return rule, ""
	}, audit.TypeAllocationUpdated, false)
	if err != nil {
		return res, errs.WithOp("allocate", err)
	}
	return res, nil
}

type planFunc func(hub model.Hub, p model.CapacityPolicy, hasPolicy bool) (rule model.AllocationRule, skip string)

func (r *Rebalancer) pass(ctx context.Context, hubID string, trigger model.RebalanceTrigger, opts Options, plan planFunc, typ audit.RecordType, countPass bool) (Result, error) {
	started := time.Now()
	res := Result{HubID: hubID, Trigger: trigger, DryRun: opts.DryRun, Changes: []Change{}}
	var records []audit.Record

	err := r.deps.WithHub(ctx, hubID, func(ctx context.Context) error {
		hub, err := r.deps.Store.Hub(ctx, hubID)
		if err != nil {
			return err
		}
		p, ok, err := store.ActivePolicy(ctx, r.deps.Store, hub)
		if err != nil {
			return err
		}
		if ok {
			res.PolicyID = p.ID
		}
		rule, skip := plan(hub, p, ok)
		if skip != "" {
			res.Skipped, res.Reason = true, skip
			return nil
		}

		tenants, err := r.deps.Store.TenantsByHub(ctx, hubID, model.TenantActive, model.TenantSuspended)
		if err != nil {
			return err
		}
		if len(tenants) == 0 {
			res.Skipped, res.Reason = true, "no eligible tenants"
			return nil
		}

		now := r.deps.Clock.Now()
		allocs := allocation.Allocate(hub, tenants, rule)
		res.Method = rule.Method
		if len(allocs) > 0 {
			res.Method = allocs[0].Method
		}

		var changes store.Changes
		var sum, draw float64
		for i, a := range allocs {
			sum += a.AllocatedKW
			draw += tenants[i].Usage.CurrentKW
			if math.Abs(a.DeltaKW()) <= DeadBandKW {
				continue
			}
			t := tenants[i]
			allocation.ApplySplit(&t.Capacity, a.AllocatedKW)
			t.Throttle = nil
			t.UpdatedAt = now
			changes.PutTenant(t)

			c := Change{TenantID: t.ID, BeforeKW: a.PreviousKW, AfterKW: a.AllocatedKW, ChangePercent: changePercent(a.PreviousKW, a.AllocatedKW)}
			res.Changes = append(res.Changes, c)

			rec := audit.NewRecord(typ, hubID, now)
			rec.TenantID = t.ID
			rec.PolicyID = res.PolicyID
			rec.BeforeKW = c.BeforeKW
			rec.AfterKW = c.AfterKW
			rec.ChangePercent = c.ChangePercent
			rec.TriggeredBy = opts.TriggeredBy
			rec.Details = map[string]any{"method": string(res.Method), "trigger": string(trigger)}
			records = append(records, rec)
		}
		res.AllocatedKW = sum
		if opts.DryRun {
			records = nil
			return nil
		}

		// Granted draw stays committed on the hub until it is released.
		hub.Capacity.AllocatedKW = sum + draw
		hub.Capacity.Recompute()
		hub.UpdatedAt = now
		changes.PutHub(hub)
		if countPass && ok {
			p.RebalanceCount++
			p.LastRebalancedAt = &now
			p.UpdatedAt = now
			changes.PutPolicy(p)
		}
		return r.deps.Store.Commit(ctx, changes)
	})
	if err != nil {
		return res, err
	}
	if res.Skipped {
		r.deps.Log.Debugw("rebalance skipped", map[string]any{"hub_id": hubID, "reason": res.Reason})
		return res, nil
	}

	for _, rec := range records {
		r.deps.Emit(ctx, component, rec)
	}
	var moved float64
	for _, c := range res.Changes {
		moved += math.Abs(c.AfterKW - c.BeforeKW)
	}
	now := r.deps.Clock.Now()
	_ = metrics.RecordRebalance(r.deps.Metrics, metrics.RebalanceEvent{
		HubID:    hubID,
		PolicyID: res.PolicyID,
		Trigger:  string(trigger),
		Method:   string(res.Method),
		Changes:  len(res.Changes),
		MovedKW:  moved,
		DryRun:   opts.DryRun,
		Duration: time.Since(started),
		Time:     now,
	})
	if !opts.DryRun {
		hub, err := r.deps.Store.Hub(ctx, hubID)
		if err == nil {
			_ = metrics.RecordHubUtilization(r.deps.Metrics, metrics.HubUtilization{
				HubID:              hubID,
				UtilizationPercent: hub.Capacity.UtilizationPercent(),
				AvailableKW:        hub.Capacity.AvailableKW,
				Time:               now,
			})
		}
	}
	r.deps.Log.Infow("capacity redistributed", map[string]any{
		"hub_id":  hubID,
		"method":  string(res.Method),
		"changes": len(res.Changes),
		"moved":   moved,
		"dry_run": opts.DryRun,
	})
	return res, nil
}

func changePercent(before, after float64) float64 {
	if before == 0 {
		if after == 0 {
			return 0
		}
		return 100
	}
	return (after - before) / before * 100
}
