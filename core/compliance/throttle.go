package compliance

import (
	"context"

	"github.com/kilianp07/powerhub/core/allocation"
	"github.com/kilianp07/powerhub/core/audit"
	"github.com/kilianp07/powerhub/core/errs"
	"github.com/kilianp07/powerhub/core/model"
	"github.com/kilianp07/powerhub/core/store"
)

// LiftExpiredThrottles restores the allocation of every tenant of hubID whose
// throttle window has passed. It returns the number of tenants restored.
func (e *Escalator) LiftExpiredThrottles(ctx context.Context, hubID string) (int, error) {
	var (
		restored []model.Tenant
		before   = map[string]float64{}
	)
	err := e.deps.WithHub(ctx, hubID, func(ctx context.Context) error {
		tenants, err := e.deps.Store.TenantsByHub(ctx, hubID)
		if err != nil {
			return err
		}
		now := e.deps.Clock.Now()
		var changes store.Changes
		for _, t := range tenants {
			if t.Throttle == nil || now.Before(t.Throttle.Until) {
				continue
			}
			before[t.ID] = t.Capacity.AllocatedKW
			if t.Throttle.Percent > 0 && t.Status == model.TenantActive {
				allocation.ApplySplit(&t.Capacity, t.Capacity.AllocatedKW*100/t.Throttle.Percent)
			}
			t.Throttle = nil
			t.UpdatedAt = now
			changes.PutTenant(t)
			restored = append(restored, t)
		}
		if changes.Empty() {
			return nil
		}
		return e.deps.Store.Commit(ctx, changes)
	})
	if err != nil {
		return 0, errs.WithOp("lift throttles", err)
	}
	now := e.deps.Clock.Now()
	for _, t := range restored {
		rec := audit.NewRecord(audit.TypeAllocationUpdated, hubID, now)
		rec.TenantID = t.ID
		rec.BeforeKW = before[t.ID]
		rec.AfterKW = t.Capacity.AllocatedKW
		rec.TriggeredBy = "throttle-expiry"
		e.deps.Emit(ctx, component, rec)
	}
	if len(restored) > 0 {
		e.deps.Log.Infow("throttles lifted", map[string]any{"hub_id": hubID, "tenants": len(restored)})
	}
	return len(restored), nil
}
