package vpp

import (
	"math"
	"time"

	"github.com/kilianp07/powerhub/core/model"
	"github.com/kilianp07/powerhub/core/policy"
)

// Readiness thresholds.
const (
	MinCapacityKW          = 10.0
	MaxUtilizationPercent  = 85.0
	DefaultBufferPercent   = 10.0
	ConstraintDisabled     = "vpp-disabled"
	ConstraintCapacity     = "insufficient-capacity"
	ConstraintNoDevices    = "no-devices-online"
	ConstraintUtilization  = "high-utilization"
	WarningPeakOverlap     = "peak-hour-overlap"
	WarningLowTenantBuffer = "low-tenant-buffer"
)

// Readiness reports whether a dispatch should be attempted on a hub.
// Constraints block; warnings do not.
type Readiness struct {
	HubID                 string   `json:"hub_id"`
	Ready                 bool     `json:"ready"`
	AvailableVPPKW        float64  `json:"available_vpp_kw"`
	HubUtilizationPercent float64  `json:"hub_utilization_percent"`
	OnlineDevices         int      `json:"online_devices"`
	TenantBufferKW        float64  `json:"tenant_buffer_kw"`
	Constraints           []string `json:"constraints"`
	Warnings              []string `json:"warnings"`
}

// Assess checks hub for a dispatch over window. A zero window is treated as
// the instant now. p may be the zero policy when the hub has none.
func Assess(hub model.Hub, tenants []model.Tenant, p model.CapacityPolicy, window model.Window, now time.Time) Readiness {
	r := Readiness{
		HubID:                 hub.ID,
		AvailableVPPKW:        math.Max(0, math.Min(hub.VPP.MaxContributionKW, hub.Capacity.AvailableKW)),
		HubUtilizationPercent: hub.Capacity.UtilizationPercent(),
		OnlineDevices:         hub.VPP.OnlineDevices(),
		Constraints:           []string{},
		Warnings:              []string{},
	}
	if !hub.VPP.Enabled {
		r.Constraints = append(r.Constraints, ConstraintDisabled)
	}
	if r.AvailableVPPKW < MinCapacityKW {
		r.Constraints = append(r.Constraints, ConstraintCapacity)
	}
	if r.OnlineDevices == 0 {
		r.Constraints = append(r.Constraints, ConstraintNoDevices)
	}
	if r.HubUtilizationPercent > MaxUtilizationPercent {
		r.Constraints = append(r.Constraints, ConstraintUtilization)
	}

	if window.Start.IsZero() {
		window = model.Window{Start: now, End: now}
	}
	if overlapsPeak(p, window) {
		r.Warnings = append(r.Warnings, WarningPeakOverlap)
	}
	buffer := p.VPPCoordination.BufferPercent
	if buffer <= 0 {
		buffer = DefaultBufferPercent
	}
	for _, t := range tenants {
		if t.Status == model.TenantActive {
			r.TenantBufferKW += math.Max(0, t.HeadroomKW())
		}
	}
	if r.TenantBufferKW < hub.Capacity.TotalKW*buffer/100 {
		r.Warnings = append(r.Warnings, WarningLowTenantBuffer)
	}

	r.Ready = len(r.Constraints) == 0
	return r
}

// overlapsPeak samples the window hourly plus its last instant. Peak rules
// are hour-granular so every covered hour is visited.
func overlapsPeak(p model.CapacityPolicy, w model.Window) bool {
	for t := w.Start; t.Before(w.End); t = t.Add(time.Hour) {
		if policy.IsPeak(p, t) {
			return true
		}
	}
	last := w.End
	if w.End.After(w.Start) {
		last = w.End.Add(-time.Nanosecond)
	}
	return policy.IsPeak(p, last)
}
