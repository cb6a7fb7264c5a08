package model

import (
	"math"
	"time"
)

// HubStatus is the lifecycle state of a hub. Hubs are never deleted, only retired.
type HubStatus string

const (
	HubActive  HubStatus = "active"
	HubRetired HubStatus = "retired"
)

// HubCapacity holds the aggregate capacity figures of a hub in kW.
type HubCapacity struct {
	TotalKW     float64 `json:"total_kw" yaml:"total_kw"`
	AllocatedKW float64 `json:"allocated_kw" yaml:"allocated_kw"`
	AvailableKW float64 `json:"available_kw" yaml:"available_kw"`
	ReservedKW  float64 `json:"reserved_kw" yaml:"reserved_kw"`
}

// Recompute derives AvailableKW from the other fields. It must be called after
// every mutation so the stored value is never stale.
func (c *HubCapacity) Recompute() {
	c.AvailableKW = math.Max(0, c.TotalKW-c.AllocatedKW-c.ReservedKW)
}

// UtilizationPercent returns the allocated share of the pool on a 0-100 scale.
func (c HubCapacity) UtilizationPercent() float64 {
	if c.TotalKW <= 0 {
		return 0
	}
	return c.AllocatedKW / c.TotalKW * 100
}

// VPPDevice is an enrolled asset able to take part in a dispatch event.
type VPPDevice struct {
	ID         string  `json:"id" yaml:"id"`
	Online     bool    `json:"online" yaml:"online"`
	CapacityKW float64 `json:"capacity_kw" yaml:"capacity_kw"`
}

// VPPSettings describes the hub's participation in virtual power plant events.
type VPPSettings struct {
	Enabled             bool        `json:"enabled" yaml:"enabled"`
	TenantOptIn         bool        `json:"tenant_opt_in" yaml:"tenant_opt_in"`
	MaxContributionKW   float64     `json:"max_contribution_kw" yaml:"max_contribution_kw"`
	RevenueSharePercent float64     `json:"revenue_share_percent" yaml:"revenue_share_percent"`
	Devices             []VPPDevice `json:"devices,omitempty" yaml:"devices,omitempty"`
}

// OnlineDevices returns the number of enrolled devices currently online.
func (v VPPSettings) OnlineDevices() int {
	n := 0
	for _, d := range v.Devices {
		if d.Online {
			n++
		}
	}
	return n
}

// Hub is a shared capacity pool serving multiple tenants.
type Hub struct {
	ID             string      `json:"id" yaml:"id"`
	Name           string      `json:"name" yaml:"name"`
	Status         HubStatus   `json:"status" yaml:"status"`
	Capacity       HubCapacity `json:"capacity" yaml:"capacity"`
	ActivePolicyID string      `json:"active_policy_id,omitempty" yaml:"active_policy_id,omitempty"`
	VPP            VPPSettings `json:"vpp" yaml:"vpp"`
	Version        int64       `json:"version" yaml:"-"`
	UpdatedAt      time.Time   `json:"updated_at" yaml:"-"`
}
