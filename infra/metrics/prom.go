package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/powerhub/core/metrics"
)

// PromSink records engine events in Prometheus metrics.
type PromSink struct {
	decisions   *prometheus.CounterVec
	grantedKW   *prometheus.CounterVec
	rebalances  *prometheus.CounterVec
	rebalanceD  *prometheus.HistogramVec
	violations  *prometheus.CounterVec
	conflicts   *prometheus.CounterVec
	utilization *prometheus.GaugeVec
	availableKW *prometheus.GaugeVec
	auditFails  *prometheus.CounterVec
}

// NewPromSink registers engine metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using cfg.PrometheusPort.
func NewPromSink(cfg coremetrics.Config) (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(_ coremetrics.Config, reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{}
	var err error
	if s.decisions, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "powerhub_decisions_total",
		Help: "Admission decisions by hub, rule and outcome",
	}, []string{"hub_id", "rule", "approved"})); err != nil {
		return nil, err
	}
	if s.grantedKW, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "powerhub_granted_kw_total",
		Help: "Sum of granted capacity in kW",
	}, []string{"hub_id"})); err != nil {
		return nil, err
	}
	if s.rebalances, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "powerhub_rebalance_changes_total",
		Help: "Tenant allocation changes applied by rebalance passes",
	}, []string{"hub_id", "trigger", "dry_run"})); err != nil {
		return nil, err
	}
	if s.rebalanceD, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "powerhub_rebalance_duration_seconds",
		Help:    "Duration of rebalance passes",
		Buckets: prometheus.DefBuckets,
	}, []string{"hub_id"})); err != nil {
		return nil, err
	}
	if s.violations, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "powerhub_violations_total",
		Help: "Escalated tenant violations by applied action",
	}, []string{"hub_id", "action"})); err != nil {
		return nil, err
	}
	if s.conflicts, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "powerhub_dispatch_conflicts_total",
		Help: "Dispatch claims by resolution",
	}, []string{"hub_id", "resolution"})); err != nil {
		return nil, err
	}
	if s.utilization, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "powerhub_hub_utilization_percent",
		Help: "Allocated share of the hub capacity",
	}, []string{"hub_id"})); err != nil {
		return nil, err
	}
	if s.availableKW, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "powerhub_hub_available_kw",
		Help: "Unallocated hub capacity in kW",
	}, []string{"hub_id"})); err != nil {
		return nil, err
	}
	if s.auditFails, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "powerhub_audit_failures_total",
		Help: "History records that could not be written",
	}, []string{"component"})); err != nil {
		return nil, err
	}
	return s, nil
}

// register reuses an already registered collector of the same name.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordDecision counts the decision and the granted kW.
func (s *PromSink) RecordDecision(ev coremetrics.DecisionEvent) error {
	s.decisions.WithLabelValues(ev.HubID, ev.Rule, strconv.FormatBool(ev.Approved)).Inc()
	if ev.GrantedKW > 0 {
		s.grantedKW.WithLabelValues(ev.HubID).Add(ev.GrantedKW)
	}
	return nil
}

func (s *PromSink) RecordRebalance(ev coremetrics.RebalanceEvent) error {
	s.rebalances.WithLabelValues(ev.HubID, ev.Trigger, strconv.FormatBool(ev.DryRun)).Add(float64(ev.Changes))
	s.rebalanceD.WithLabelValues(ev.HubID).Observe(ev.Duration.Seconds())
	return nil
}

func (s *PromSink) RecordViolation(ev coremetrics.ViolationEvent) error {
	s.violations.WithLabelValues(ev.HubID, ev.Action).Inc()
	return nil
}

func (s *PromSink) RecordConflict(ev coremetrics.ConflictEvent) error {
	s.conflicts.WithLabelValues(ev.HubID, ev.Resolution).Inc()
	return nil
}

// RecordHubUtilization sets the hub gauges.
func (s *PromSink) RecordHubUtilization(u coremetrics.HubUtilization) error {
	s.utilization.WithLabelValues(u.HubID).Set(u.UtilizationPercent)
	s.availableKW.WithLabelValues(u.HubID).Set(u.AvailableKW)
	return nil
}

func (s *PromSink) RecordAuditFailure(component string) error {
	s.auditFails.WithLabelValues(component).Inc()
	return nil
}
