package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/powerhub/core/metrics"
	"github.com/kilianp07/powerhub/infra/logger"
)

// InfluxSink writes engine events to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordDecision writes one admission_decision point.
func (s *InfluxSink) RecordDecision(ev coremetrics.DecisionEvent) error {
	p := write.NewPointWithMeasurement("admission_decision").
		AddTag("hub_id", ev.HubID).
		AddTag("tenant_id", ev.TenantID).
		AddTag("rule", ev.Rule).
		AddTag("approved", strconv.FormatBool(ev.Approved)).
		AddTag("component", "enforcement").
		AddField("requested_kw", round3(ev.RequestedKW)).
		AddField("granted_kw", round3(ev.GrantedKW)).
		AddField("is_peak", ev.IsPeak).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordRebalance writes a rebalance_pass point.
func (s *InfluxSink) RecordRebalance(ev coremetrics.RebalanceEvent) error {
	p := write.NewPointWithMeasurement("rebalance_pass").
		AddTag("hub_id", ev.HubID).
		AddTag("policy_id", ev.PolicyID).
		AddTag("trigger", ev.Trigger).
		AddTag("method", ev.Method).
		AddTag("dry_run", strconv.FormatBool(ev.DryRun)).
		AddTag("component", "rebalancer").
		AddField("changes", ev.Changes).
		AddField("moved_kw", round3(ev.MovedKW)).
		AddField("duration_ms", round3(ev.Duration.Seconds()*1000)).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordViolation writes a tenant_violation point.
func (s *InfluxSink) RecordViolation(ev coremetrics.ViolationEvent) error {
	p := write.NewPointWithMeasurement("tenant_violation").
		AddTag("hub_id", ev.HubID).
		AddTag("tenant_id", ev.TenantID).
		AddTag("action", ev.Action).
		AddTag("warning_level", ev.WarningLevel).
		AddTag("component", "compliance").
		AddField("violations", ev.Violations).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordConflict writes a dispatch_conflict point.
func (s *InfluxSink) RecordConflict(ev coremetrics.ConflictEvent) error {
	p := write.NewPointWithMeasurement("dispatch_conflict").
		AddTag("hub_id", ev.HubID).
		AddTag("tenant_id", ev.TenantID).
		AddTag("claim_id", ev.ClaimID).
		AddTag("resolution", ev.Resolution).
		AddTag("component", "vpp").
		AddField("shortfall_kw", round3(ev.ShortfallKW)).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordHubUtilization writes a hub_capacity point.
func (s *InfluxSink) RecordHubUtilization(u coremetrics.HubUtilization) error {
	p := write.NewPointWithMeasurement("hub_capacity").
		AddTag("hub_id", u.HubID).
		AddField("utilization_percent", round3(u.UtilizationPercent)).
		AddField("available_kw", round3(u.AvailableKW)).
		SetTime(u.Time)
	return s.write(p)
}

// Close releases the client resources.
func (s *InfluxSink) Close() { s.client.Close() }

func (s *InfluxSink) write(p *write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
