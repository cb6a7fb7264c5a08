// Package service holds the collaborators shared by the engine services.
package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/kilianp07/powerhub/core/audit"
	"github.com/kilianp07/powerhub/core/clock"
	"github.com/kilianp07/powerhub/core/errs"
	"github.com/kilianp07/powerhub/core/lock"
	"github.com/kilianp07/powerhub/core/logger"
	"github.com/kilianp07/powerhub/core/metrics"
	"github.com/kilianp07/powerhub/core/store"
)

// DefaultSnapshotTimeout bounds the load and commit of one operation.
const DefaultSnapshotTimeout = 5 * time.Second

// Deps are the explicit dependencies of every engine service. Only Store is
// required; the rest default to in-process or no-op implementations.
type Deps struct {
	Store   store.Store
	Locker  lock.Locker
	Audit   audit.Sink
	Metrics metrics.MetricsSink
	Clock   clock.Clock
	Log     logger.Logger
	// SnapshotTimeout bounds loading and committing state. Zero uses
	// DefaultSnapshotTimeout.
	SnapshotTimeout time.Duration
}

// WithDefaults fills unset dependencies.
func (d Deps) WithDefaults() Deps {
	if d.Locker == nil {
		d.Locker = lock.NewKeyedMutex()
	}
	if d.Audit == nil {
		d.Audit = audit.NopSink{}
	}
	d.Metrics = metrics.OrNop(d.Metrics)
	if d.Clock == nil {
		d.Clock = clock.System{}
	}
	d.Log = logger.OrNop(d.Log)
	if d.SnapshotTimeout <= 0 {
		d.SnapshotTimeout = DefaultSnapshotTimeout
	}
	return d
}

// WithHub runs fn while holding the hub's exclusive section. The context
// passed to fn is bounded by the snapshot timeout.
func (d Deps) WithHub(ctx context.Context, hubID string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, d.SnapshotTimeout)
	defer cancel()
	unlock, err := d.Locker.Lock(ctx, lock.HubKey(hubID))
	if err != nil {
		return &errs.Error{Kind: errs.KindInternal, Op: "lock", Entity: "hub", ID: hubID, Err: err}
	}
	defer unlock()
	return fn(ctx)
}

// Emit appends rec to the audit sink. A failed append is logged and counted
// but never returned: the decision it describes has already been made.
func (d Deps) Emit(ctx context.Context, component string, rec audit.Record) {
	if err := d.Audit.Append(ctx, rec); err != nil {
		d.Log.Errorw("audit append failed", map[string]any{
			"component": component,
			"record_id": rec.ID,
			"type":      string(rec.Type),
			"hub_id":    rec.HubID,
			"tenant_id": rec.TenantID,
			"error":     err.Error(),
		})
		_ = metrics.RecordAuditFailure(d.Metrics, component)
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the struct tags of v and maps failures to InvalidRequest.
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		return errs.Invalid("%v", err)
	}
	return nil
}
