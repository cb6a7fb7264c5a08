package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHubCapacityRecompute(t *testing.T) {
	c := HubCapacity{TotalKW: 100, AllocatedKW: 70, ReservedKW: 10}
	c.Recompute()
	assert.Equal(t, 20.0, c.AvailableKW)
	assert.Equal(t, 70.0, c.UtilizationPercent())

	c.AllocatedKW = 120
	c.Recompute()
	assert.Zero(t, c.AvailableKW)
}

func TestTenantBlocked(t *testing.T) {
	now := time.Date(2024, 6, 4, 10, 0, 0, 0, time.UTC)
	until := now.Add(time.Hour)
	tn := Tenant{Status: TenantSuspended, SuspendedUntil: &until}
	assert.True(t, tn.Blocked(now))
	assert.False(t, tn.Blocked(until))

	tn.RequiresManualReactivation = true
	assert.True(t, tn.Blocked(until.Add(time.Hour)))
	assert.True(t, Tenant{Status: TenantCutoff}.Blocked(now))
	assert.False(t, Tenant{Status: TenantActive}.Blocked(now))
}

func TestTenantUtilization(t *testing.T) {
	tn := Tenant{Capacity: TenantCapacity{BaseKW: 40, BurstKW: 10}, Usage: TenantUsage{CurrentKW: 25}}
	assert.Equal(t, 50.0, tn.UtilizationPercent())
	assert.Equal(t, 25.0, tn.HeadroomKW())
	assert.Equal(t, 100.0, Tenant{}.UtilizationPercent())
}

func TestTenantCloneIsDeep(t *testing.T) {
	now := time.Now()
	orig := Tenant{
		Attributes: map[string]float64{"floorArea": 10},
		Compliance: Compliance{Notes: []ComplianceNote{{Message: "a"}}},
		Throttle:   &Throttle{Percent: 80, Until: now},
	}
	c := orig.Clone()
	c.Attributes["floorArea"] = 20
	c.Compliance.Notes[0].Message = "b"
	c.Throttle.Percent = 50
	assert.Equal(t, 10.0, orig.Attributes["floorArea"])
	assert.Equal(t, "a", orig.Compliance.Notes[0].Message)
	assert.Equal(t, 80.0, orig.Throttle.Percent)
}

func TestTimeOfDayMatchesWrap(t *testing.T) {
	r := TimeOfDayRule{StartHour: 22, EndHour: 6}
	assert.True(t, r.Matches(time.Date(2024, 6, 4, 23, 0, 0, 0, time.UTC)))
	assert.True(t, r.Matches(time.Date(2024, 6, 4, 5, 59, 0, 0, time.UTC)))
	assert.False(t, r.Matches(time.Date(2024, 6, 4, 12, 0, 0, 0, time.UTC)))
}
