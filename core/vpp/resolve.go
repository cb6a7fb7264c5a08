// Package vpp arbitrates between external dispatch claims on a hub and the
// tenants drawing from it.
package vpp

import (
	"math"

	"github.com/kilianp07/powerhub/core/model"
)

// Resolution labels, in ladder order.
const (
	NoConflict       = "no-conflict"
	PrioritizeTenant = "prioritize-tenant"
	SharedReduction  = "shared-reduction"
	CancelDispatch   = "cancel-dispatch"
)

// Action types attached to a resolution.
const (
	ActionReduceDispatch = "reduce-dispatch"
	ActionThrottleTenant = "throttle-tenant"
	ActionCancelDispatch = "cancel-dispatch"
)

// TenantShare is the part of a shared reduction taken from the tenant. The
// dispatch absorbs the rest.
const TenantShare = 0.3

// Action is one adjustment required by a resolution.
type Action struct {
	Type string  `json:"type"`
	KW   float64 `json:"kw"`
}

// Resolution is the outcome of arbitrating one dispatch claim.
type Resolution struct {
	ClaimID     string   `json:"claim_id"`
	Label       string   `json:"resolution"`
	ShortfallKW float64  `json:"shortfall_kw"`
	Actions     []Action `json:"actions"`
}

// Resolve applies the resolution ladder to claim. The first matching rung
// wins.
func Resolve(hub model.Hub, tenant model.Tenant, claim model.DispatchClaim) Resolution {
	shortfall := math.Max(0, math.Abs(claim.RequestedKW)-hub.Capacity.AvailableKW)
	res := Resolution{ClaimID: claim.ID, ShortfallKW: shortfall, Actions: []Action{}}
	switch {
	case shortfall == 0:
		res.Label = NoConflict
	case tenant.PriorityTier == model.TierCritical:
		res.Label = PrioritizeTenant
		res.Actions = append(res.Actions, Action{Type: ActionReduceDispatch, KW: shortfall})
	case hub.VPP.TenantOptIn && tenant.Preferences.AllowVPPParticipation:
		res.Label = SharedReduction
		res.Actions = append(res.Actions,
			Action{Type: ActionThrottleTenant, KW: shortfall * TenantShare},
			Action{Type: ActionReduceDispatch, KW: shortfall * (1 - TenantShare)},
		)
	default:
		res.Label = CancelDispatch
		res.Actions = append(res.Actions, Action{Type: ActionCancelDispatch, KW: math.Abs(claim.RequestedKW)})
	}
	return res
}

// ThrottleKW sums the throttle-tenant actions of r.
func (r Resolution) ThrottleKW() float64 {
	var kw float64
	for _, a := range r.Actions {
		if a.Type == ActionThrottleTenant {
			kw += a.KW
		}
	}
	return kw
}
