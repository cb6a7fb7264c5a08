// Package engine exposes the capacity services behind a single facade. Every
// call returns a Result envelope; domain denials are successful results.
package engine

import (
	"context"

	"github.com/kilianp07/powerhub/core/activation"
	"github.com/kilianp07/powerhub/core/audit"
	"github.com/kilianp07/powerhub/core/compliance"
	"github.com/kilianp07/powerhub/core/enforcement"
	"github.com/kilianp07/powerhub/core/errs"
	"github.com/kilianp07/powerhub/core/model"
	"github.com/kilianp07/powerhub/core/rebalance"
	"github.com/kilianp07/powerhub/core/service"
	"github.com/kilianp07/powerhub/core/store"
	"github.com/kilianp07/powerhub/core/vpp"
)

// Result is the envelope returned by every engine call.
type Result[T any] struct {
	Success bool      `json:"success"`
	Data    T         `json:"data,omitempty"`
	Message string    `json:"message,omitempty"`
	Error   string    `json:"error,omitempty"`
	Kind    errs.Kind `json:"kind,omitempty"`
}

// Err returns the failure as an error, or nil on success.
func (r Result[T]) Err() error {
	if r.Success {
		return nil
	}
	return &errs.Error{Kind: r.Kind, Msg: r.Error}
}

func wrap[T any](data T, err error, msg string) Result[T] {
	if err != nil {
		return Result[T]{Error: err.Error(), Kind: errs.KindOf(err)}
	}
	return Result[T]{Success: true, Data: data, Message: msg}
}

// Options configure the services built by New.
type Options struct {
	Compliance compliance.Config
	Notifier   compliance.Notifier
}

// Engine wires the capacity services over shared dependencies.
type Engine struct {
	deps        service.Deps
	enforcement *enforcement.Coordinator
	rebalancer  *rebalance.Rebalancer
	escalator   *compliance.Escalator
	activator   *activation.Activator
	vpp         *vpp.Coordinator
}

func New(d service.Deps, opts Options) *Engine {
	d = d.WithDefaults()
	return &Engine{
		deps:        d,
		enforcement: enforcement.New(d),
		rebalancer:  rebalance.New(d),
		escalator:   compliance.NewEscalator(d, opts.Compliance, opts.Notifier),
		activator:   activation.New(d),
		vpp:         vpp.New(d),
	}
}

// Store returns the entity store the engine operates on.
func (e *Engine) Store() store.Store { return e.deps.Store }

// Rebalancer returns the rebalance service, used by the scheduler.
func (e *Engine) Rebalancer() *rebalance.Rebalancer { return e.rebalancer }

// Escalator returns the compliance service, used by the scheduler.
func (e *Engine) Escalator() *compliance.Escalator { return e.escalator }

func (e *Engine) Enforce(ctx context.Context, req enforcement.Request) Result[enforcement.Outcome] {
	out, err := e.enforcement.Enforce(ctx, req)
	msg := ""
	if err == nil {
		msg = out.Decision.Reason
	}
	return wrap(out, err, msg)
}

func (e *Engine) Release(ctx context.Context, tenantID string, kw float64) Result[enforcement.Outcome] {
	out, err := e.enforcement.Release(ctx, tenantID, kw)
	return wrap(out, err, "usage released")
}

func (e *Engine) Allocate(ctx context.Context, hubID string, method model.AllocationMethod, opts rebalance.Options) Result[rebalance.Result] {
	out, err := e.rebalancer.Allocate(ctx, hubID, method, opts)
	return wrap(out, err, "allocation computed")
}

func (e *Engine) Rebalance(ctx context.Context, hubID string, trigger model.RebalanceTrigger, opts rebalance.Options) Result[rebalance.Result] {
	out, err := e.rebalancer.Rebalance(ctx, hubID, trigger, opts)
	msg := "rebalanced"
	if out.Skipped {
		msg = out.Reason
	}
	return wrap(out, err, msg)
}

func (e *Engine) SavePolicy(ctx context.Context, p model.CapacityPolicy) Result[model.CapacityPolicy] {
	out, err := e.activator.Save(ctx, p)
	return wrap(out, err, "policy saved")
}

func (e *Engine) ApplyPolicy(ctx context.Context, hubID, policyID string, override bool, by string) Result[activation.Applied] {
	out, err := e.activator.Apply(ctx, hubID, policyID, override, by)
	return wrap(out, err, "policy applied")
}

func (e *Engine) DeactivatePolicy(ctx context.Context, policyID, by string) Result[model.CapacityPolicy] {
	out, err := e.activator.Deactivate(ctx, policyID, by)
	return wrap(out, err, "policy deactivated")
}

func (e *Engine) ArchivePolicy(ctx context.Context, policyID, by string) Result[model.CapacityPolicy] {
	out, err := e.activator.Archive(ctx, policyID, by)
	return wrap(out, err, "policy archived")
}

func (e *Engine) EscalateViolation(ctx context.Context, tenantID string, v compliance.Violation) Result[compliance.Escalation] {
	out, err := e.escalator.Escalate(ctx, tenantID, v)
	return wrap(out, err, "violation recorded")
}

func (e *Engine) ResetViolations(ctx context.Context, tenantID, by string) Result[model.Tenant] {
	out, err := e.escalator.ResetViolations(ctx, tenantID, by)
	return wrap(out, err, "violations reset")
}

func (e *Engine) Reactivate(ctx context.Context, tenantID, by string) Result[model.Tenant] {
	out, err := e.escalator.Reactivate(ctx, tenantID, by)
	return wrap(out, err, "tenant reactivated")
}

func (e *Engine) ResolveConflict(ctx context.Context, hubID, tenantID string, claim model.DispatchClaim) Result[vpp.Resolution] {
	out, err := e.vpp.ResolveConflict(ctx, hubID, tenantID, claim)
	return wrap(out, err, out.Label)
}

func (e *Engine) AssessReadiness(ctx context.Context, hubID string, window model.Window) Result[vpp.Readiness] {
	out, err := e.vpp.AssessReadiness(ctx, hubID, window)
	return wrap(out, err, "")
}

// HubStatus returns the hub with its tenants.
type HubStatus struct {
	Hub     model.Hub      `json:"hub"`
	Tenants []model.Tenant `json:"tenants"`
}

func (e *Engine) Hub(ctx context.Context, hubID string) Result[HubStatus] {
	ctx, cancel := context.WithTimeout(ctx, e.deps.SnapshotTimeout)
	defer cancel()
	h, err := e.deps.Store.Hub(ctx, hubID)
	if err != nil {
		return wrap(HubStatus{}, err, "")
	}
	ts, err := e.deps.Store.TenantsByHub(ctx, hubID)
	return wrap(HubStatus{Hub: h, Tenants: ts}, err, "")
}

// History queries the audit sink when it supports queries.
func (e *Engine) History(ctx context.Context, q audit.Query) Result[[]audit.Record] {
	s, ok := e.deps.Audit.(audit.Store)
	if !ok {
		return wrap[[]audit.Record](nil, errs.Invalid("configured audit sink does not support queries"), "")
	}
	recs, err := s.Query(ctx, q)
	return wrap(recs, err, "")
}
