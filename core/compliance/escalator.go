// Package compliance tracks tenant violations and escalates enforcement
// actions as the violation count grows.
package compliance

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/kilianp07/powerhub/core/allocation"
	"github.com/kilianp07/powerhub/core/audit"
	"github.com/kilianp07/powerhub/core/errs"
	"github.com/kilianp07/powerhub/core/metrics"
	"github.com/kilianp07/powerhub/core/model"
	"github.com/kilianp07/powerhub/core/service"
	"github.com/kilianp07/powerhub/core/store"
)

const component = "compliance"

// Violation counts at which the action is forced regardless of policy.
const (
	CutoffThreshold   = 20
	SuspendThreshold  = 15
	ThrottleThreshold = 10
)

// Config holds the parameters of the throttle and suspend actions.
type Config struct {
	ThrottlePercent  float64       `json:"throttle_percent"`
	ThrottleDuration time.Duration `json:"throttle_duration"`
	SuspendDuration  time.Duration `json:"suspend_duration"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.ThrottlePercent == 0 {
		c.ThrottlePercent = 80
	}
	if c.ThrottleDuration == 0 {
		c.ThrottleDuration = time.Hour
	}
	if c.SuspendDuration == 0 {
		c.SuspendDuration = 24 * time.Hour
	}
}

// Validate checks the configuration values.
func (c Config) Validate() error {
	if c.ThrottlePercent <= 0 || c.ThrottlePercent > 100 {
		return fmt.Errorf("compliance: throttle_percent must be in (0, 100], got %v", c.ThrottlePercent)
	}
	if c.ThrottleDuration < 0 || c.SuspendDuration < 0 {
		return fmt.Errorf("compliance: durations must not be negative")
	}
	return nil
}

// Violation describes one breach reported against a tenant.
type Violation struct {
	Type        string  `json:"type" validate:"required"`
	Description string  `json:"description,omitempty"`
	MeasuredKW  float64 `json:"measured_kw,omitempty"`
	LimitKW     float64 `json:"limit_kw,omitempty"`
}

// Escalation is the outcome of Escalate.
type Escalation struct {
	TenantID   string                `json:"tenant_id"`
	HubID      string                `json:"hub_id"`
	Violations int                   `json:"violations"`
	Level      model.WarningLevel    `json:"warning_level"`
	Baseline   model.ViolationAction `json:"baseline_action"`
	Action     model.ViolationAction `json:"action"`
	// Forced is set when the count floors overrode the policy action.
	Forced bool         `json:"forced"`
	Tenant model.Tenant `json:"tenant"`
}

// LevelFor maps a violation count to its warning level.
func LevelFor(count int) model.WarningLevel {
	switch {
	case count >= 10:
		return model.WarningCritical
	case count >= 5:
		return model.WarningHigh
	case count >= 3:
		return model.WarningMedium
	case count >= 1:
		return model.WarningLow
	}
	return model.WarningNone
}

// SelectAction returns the action for the given count. base is the policy
// action and defaults to warn.
func SelectAction(count int, base model.ViolationAction) model.ViolationAction {
	if !base.Valid() {
		base = model.ActionWarn
	}
	switch {
	case count >= CutoffThreshold:
		return model.ActionCutoff
	case count >= SuspendThreshold:
		return model.ActionSuspend
	case count >= ThrottleThreshold && base == model.ActionWarn:
		return model.ActionThrottle
	}
	return base
}

// Escalator applies violation escalations to tenants.
type Escalator struct {
	deps     service.Deps
	cfg      Config
	notifier Notifier
}

// NewEscalator returns an Escalator. A nil notifier logs notifications.
func NewEscalator(d service.Deps, cfg Config, n Notifier) *Escalator {
	d = d.WithDefaults()
	cfg.SetDefaults()
	if n == nil {
		n = LogNotifier{Log: d.Log}
	}
	return &Escalator{deps: d, cfg: cfg, notifier: n}
}

// Escalate records v against the tenant and applies the resulting action.
func (e *Escalator) Escalate(ctx context.Context, tenantID string, v Violation) (Escalation, error) {
	if err := service.Validate(v); err != nil {
		return Escalation{}, errs.WithOp("escalate", err)
	}
	var (
		out      Escalation
		beforeKW float64
	)
	err := e.withTenant(ctx, tenantID, func(ctx context.Context, t *model.Tenant) error {
		hub, err := e.deps.Store.Hub(ctx, t.HubID)
		if err != nil {
			return err
		}
		p, ok, err := store.ActivePolicy(ctx, e.deps.Store, hub)
		if err != nil {
			return err
		}
		base := model.ActionWarn
		if ok && p.EnforcementRule.Action.Valid() {
			base = p.EnforcementRule.Action
		}

		now := e.deps.Clock.Now()
		beforeKW = t.Capacity.AllocatedKW
		t.Compliance.Violations++
		t.Compliance.WarningLevel = LevelFor(t.Compliance.Violations)
		t.Compliance.LastViolationAt = &now
		t.Compliance.Notes = append(t.Compliance.Notes, model.ComplianceNote{At: now, Message: note(v)})

		action := SelectAction(t.Compliance.Violations, base)
		var changes store.Changes
		if removed := e.apply(t, action, now); removed > 0 {
			hub.Capacity.AllocatedKW = math.Max(0, hub.Capacity.AllocatedKW-removed)
			hub.Capacity.Recompute()
			hub.UpdatedAt = now
			changes.PutHub(hub)
		}
		t.UpdatedAt = now
		changes.PutTenant(*t)

		if err := e.deps.Store.Commit(ctx, changes); err != nil {
			return err
		}
		out = Escalation{
			TenantID:   t.ID,
			HubID:      t.HubID,
			Violations: t.Compliance.Violations,
			Level:      t.Compliance.WarningLevel,
			Baseline:   base,
			Action:     action,
			Forced:     action != base,
			Tenant:     *t,
		}
		return nil
	})
	if err != nil {
		return Escalation{}, errs.WithOp("escalate", err)
	}

	now := e.deps.Clock.Now()
	rec := audit.NewRecord(audit.TypeViolation, out.HubID, now)
	rec.TenantID = out.TenantID
	rec.Severity = string(out.Level)
	rec.BeforeKW = beforeKW
	rec.AfterKW = out.Tenant.Capacity.AllocatedKW
	rec.Resolution = string(out.Action)
	rec.Details = map[string]any{
		"violation_type": v.Type,
		"description":    v.Description,
		"measured_kw":    v.MeasuredKW,
		"limit_kw":       v.LimitKW,
		"violations":     out.Violations,
		"forced":         out.Forced,
	}
	e.deps.Emit(ctx, component, rec)
	_ = metrics.RecordViolation(e.deps.Metrics, metrics.ViolationEvent{
		HubID:        out.HubID,
		TenantID:     out.TenantID,
		Violations:   out.Violations,
		WarningLevel: string(out.Level),
		Action:       string(out.Action),
		Time:         now,
	})
	e.deps.Log.Infow("violation escalated", map[string]any{
		"tenant_id":  out.TenantID,
		"hub_id":     out.HubID,
		"violations": out.Violations,
		"level":      string(out.Level),
		"action":     string(out.Action),
	})

	n := Notification{
		TenantID:   out.TenantID,
		HubID:      out.HubID,
		Violations: out.Violations,
		Level:      out.Level,
		Action:     out.Action,
		Message:    message(out, v),
		Time:       now,
	}
	if err := e.notifier.Notify(ctx, n); err != nil {
		e.deps.Log.Errorw("tenant notification failed", map[string]any{"tenant_id": out.TenantID, "error": err.Error()})
	}
	return out, nil
}

// apply executes action on t and returns the live draw it took away, which
// the caller hands back to the hub.
func (e *Escalator) apply(t *model.Tenant, action model.ViolationAction, now time.Time) float64 {
	before := t.Usage.CurrentKW
	switch action {
	case model.ActionCutoff:
		allocation.ApplySplit(&t.Capacity, 0)
		t.Usage.CurrentKW = 0
		t.Status = model.TenantCutoff
		t.RequiresManualReactivation = true
		t.SuspendedUntil = nil
		t.Throttle = nil
	case model.ActionSuspend:
		until := now.Add(e.cfg.SuspendDuration)
		t.Status = model.TenantSuspended
		t.SuspendedUntil = &until
		t.RequiresManualReactivation = false
	case model.ActionThrottle:
		until := now.Add(e.cfg.ThrottleDuration)
		if t.Throttle != nil && now.Before(t.Throttle.Until) {
			// already throttled: extend instead of compounding the cut
			t.Throttle.Until = until
			return 0
		}
		allocation.ApplySplit(&t.Capacity, t.Capacity.AllocatedKW*e.cfg.ThrottlePercent/100)
		t.Usage.CurrentKW = math.Min(t.Usage.CurrentKW, t.Capacity.AllocatedKW)
		t.Throttle = &model.Throttle{Percent: e.cfg.ThrottlePercent, Until: until}
	}
	return before - t.Usage.CurrentKW
}

// ResetViolations clears the violation history of a tenant.
func (e *Escalator) ResetViolations(ctx context.Context, tenantID, by string) (model.Tenant, error) {
	var (
		out    model.Tenant
		before int
	)
	err := e.withTenant(ctx, tenantID, func(ctx context.Context, t *model.Tenant) error {
		before = t.Compliance.Violations
		t.Compliance = model.Compliance{WarningLevel: model.WarningNone}
		t.UpdatedAt = e.deps.Clock.Now()
		if err := e.deps.Store.Commit(ctx, store.Changes{Tenants: []model.Tenant{*t}}); err != nil {
			return err
		}
		out = *t
		return nil
	})
	if err != nil {
		return model.Tenant{}, errs.WithOp("reset violations", err)
	}
	rec := audit.NewRecord(audit.TypeViolationsReset, out.HubID, e.deps.Clock.Now())
	rec.TenantID = out.ID
	rec.TriggeredBy = by
	rec.Details = map[string]any{"previous_violations": before}
	e.deps.Emit(ctx, component, rec)
	e.deps.Log.Infow("violations reset", map[string]any{"tenant_id": out.ID, "previous": before, "by": by})
	return out, nil
}

// Reactivate lifts a suspension or cutoff. A cut-off tenant gets its
// guaranteed capacity back until the next rebalance.
func (e *Escalator) Reactivate(ctx context.Context, tenantID, by string) (model.Tenant, error) {
	var (
		out  model.Tenant
		prev model.TenantStatus
	)
	err := e.withTenant(ctx, tenantID, func(ctx context.Context, t *model.Tenant) error {
		prev = t.Status
		switch t.Status {
		case model.TenantSuspended:
		case model.TenantCutoff:
			allocation.ApplySplit(&t.Capacity, t.Capacity.GuaranteedKW)
		default:
			return errs.Invalid("tenant %s is %s, not suspended or cut off", t.ID, t.Status)
		}
		t.Status = model.TenantActive
		t.SuspendedUntil = nil
		t.RequiresManualReactivation = false
		t.UpdatedAt = e.deps.Clock.Now()
		if err := e.deps.Store.Commit(ctx, store.Changes{Tenants: []model.Tenant{*t}}); err != nil {
			return err
		}
		out = *t
		return nil
	})
	if err != nil {
		return model.Tenant{}, errs.WithOp("reactivate", err)
	}
	rec := audit.NewRecord(audit.TypeTenantReactivated, out.HubID, e.deps.Clock.Now())
	rec.TenantID = out.ID
	rec.TriggeredBy = by
	rec.AfterKW = out.Capacity.AllocatedKW
	rec.Details = map[string]any{"previous_status": string(prev)}
	e.deps.Emit(ctx, component, rec)
	e.deps.Log.Infow("tenant reactivated", map[string]any{"tenant_id": out.ID, "previous_status": string(prev), "by": by})
	return out, nil
}

// withTenant loads the tenant under its hub lock and passes a mutable copy to fn.
func (e *Escalator) withTenant(ctx context.Context, tenantID string, fn func(context.Context, *model.Tenant) error) error {
	if tenantID == "" {
		return errs.Invalid("tenant id is required")
	}
	lookup, cancel := context.WithTimeout(ctx, e.deps.SnapshotTimeout)
	t, err := e.deps.Store.Tenant(lookup, tenantID)
	cancel()
	if err != nil {
		return err
	}
	return e.deps.WithHub(ctx, t.HubID, func(ctx context.Context) error {
		t, err := e.deps.Store.Tenant(ctx, tenantID)
		if err != nil {
			return err
		}
		return fn(ctx, &t)
	})
}

func note(v Violation) string {
	s := v.Type
	if v.Description != "" {
		s += ": " + v.Description
	}
	if v.LimitKW > 0 {
		s += fmt.Sprintf(" (%.2f kW measured, %.2f kW limit)", v.MeasuredKW, v.LimitKW)
	}
	return s
}

func message(out Escalation, v Violation) string {
	switch out.Action {
	case model.ActionCutoff:
		return fmt.Sprintf("Capacity cut off after %d violations; contact the hub operator", out.Violations)
	case model.ActionSuspend:
		return fmt.Sprintf("Capacity suspended until %s after %d violations", out.Tenant.SuspendedUntil.Format(time.RFC3339), out.Violations)
	case model.ActionThrottle:
		return fmt.Sprintf("Capacity throttled to %.2f kW after %d violations", out.Tenant.Capacity.AllocatedKW, out.Violations)
	}
	return fmt.Sprintf("Violation recorded (%s); %d violations, warning level %s", v.Type, out.Violations, out.Level)
}
