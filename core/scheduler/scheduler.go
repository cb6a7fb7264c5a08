package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kilianp07/powerhub/core/logger"
	"github.com/kilianp07/powerhub/core/model"
	"github.com/kilianp07/powerhub/core/rebalance"
	"github.com/kilianp07/powerhub/core/store"
)

// TriggeredBy tags history records produced by scheduled jobs.
const TriggeredBy = "scheduler"

// Rebalancer runs a triggered rebalance pass.
type Rebalancer interface {
	Rebalance(ctx context.Context, hubID string, trigger model.RebalanceTrigger, opts rebalance.Options) (rebalance.Result, error)
}

// ThrottleLifter restores tenants whose throttle has expired.
type ThrottleLifter interface {
	LiftExpiredThrottles(ctx context.Context, hubID string) (int, error)
}

// Scheduler registers one cron entry per hub with a scheduled rebalance
// policy, plus the sweep entry.
type Scheduler struct {
	cfg        Config
	store      store.Store
	rebalancer Rebalancer
	lifter     ThrottleLifter
	log        logger.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	sweep   cron.EntryID
	hubs    map[string]hubEntry
	running bool
}

type hubEntry struct {
	id       cron.EntryID
	schedule string
}

func New(cfg Config, st store.Store, r Rebalancer, l ThrottleLifter, log logger.Logger) *Scheduler {
	cfg.SetDefaults()
	return &Scheduler{
		cfg:        cfg,
		store:      st,
		rebalancer: r,
		lifter:     l,
		log:        logger.OrNop(log),
		cron:       cron.New(),
		hubs:       make(map[string]hubEntry),
	}
}

// Start registers the jobs and starts the cron runner. It stops when ctx is
// done.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	id, err := s.cron.AddFunc(s.cfg.SweepSchedule, func() { s.Sweep(ctx) })
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("schedule sweep: %w", err)
	}
	s.sweep = id
	s.mu.Unlock()

	if err := s.Sync(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.cron.Start()
	s.running = true
	s.mu.Unlock()
	s.log.Infof("scheduler started (sweep %q, default rebalance %q)", s.cfg.SweepSchedule, s.cfg.RebalanceSchedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Sync reconciles the per-hub entries with the active policies. Policies with
// an invalid schedule are logged and skipped.
func (s *Scheduler) Sync(ctx context.Context) error {
	hubs, err := s.store.Hubs(ctx)
	if err != nil {
		return fmt.Errorf("list hubs: %w", err)
	}
	want := make(map[string]string)
	for _, h := range hubs {
		p, ok, err := store.ActivePolicy(ctx, s.store, h)
		if err != nil {
			return fmt.Errorf("active policy of %s: %w", h.ID, err)
		}
		if !ok || !p.RebalanceRule.Enabled || p.RebalanceRule.Trigger != model.TriggerScheduled {
			continue
		}
		sched := p.RebalanceRule.Schedule
		if sched == "" {
			sched = s.cfg.RebalanceSchedule
		}
		want[h.ID] = sched
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for hubID, e := range s.hubs {
		if want[hubID] != e.schedule {
			s.cron.Remove(e.id)
			delete(s.hubs, hubID)
		}
	}
	for hubID, sched := range want {
		if _, ok := s.hubs[hubID]; ok {
			continue
		}
		hubID := hubID
		id, err := s.cron.AddFunc(sched, func() { s.RunScheduled(ctx, hubID) })
		if err != nil {
			s.log.Errorw("invalid rebalance schedule", map[string]any{"hub_id": hubID, "schedule": sched, "error": err.Error()})
			continue
		}
		s.hubs[hubID] = hubEntry{id: id, schedule: sched}
	}
	return nil
}

// RunScheduled runs the scheduled rebalance of one hub.
func (s *Scheduler) RunScheduled(ctx context.Context, hubID string) {
	res, err := s.rebalancer.Rebalance(ctx, hubID, model.TriggerScheduled, rebalance.Options{TriggeredBy: TriggeredBy})
	if err != nil {
		s.log.Errorw("scheduled rebalance failed", map[string]any{"hub_id": hubID, "error": err.Error()})
		return
	}
	s.log.Debugw("scheduled rebalance", map[string]any{"hub_id": hubID, "changes": len(res.Changes), "skipped": res.Skipped})
}

// Sweep lifts expired throttles and fires the threshold trigger on every
// active hub, then reconciles the per-hub entries.
func (s *Scheduler) Sweep(ctx context.Context) {
	hubs, err := s.store.Hubs(ctx)
	if err != nil {
		s.log.Errorf("sweep: list hubs: %v", err)
		return
	}
	for _, h := range hubs {
		if h.Status == model.HubRetired {
			continue
		}
		if s.lifter != nil {
			if _, err := s.lifter.LiftExpiredThrottles(ctx, h.ID); err != nil {
				s.log.Errorw("lift throttles failed", map[string]any{"hub_id": h.ID, "error": err.Error()})
			}
		}
		if _, err := s.rebalancer.Rebalance(ctx, h.ID, model.TriggerThreshold, rebalance.Options{TriggeredBy: TriggeredBy}); err != nil {
			s.log.Errorw("threshold rebalance failed", map[string]any{"hub_id": h.ID, "error": err.Error()})
		}
	}
	if err := s.Sync(ctx); err != nil {
		s.log.Errorf("sweep: sync schedules: %v", err)
	}
}

// Stop stops the scheduler and waits for running jobs to complete. The lock
// is released before waiting since an in-flight sweep ends with Sync.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	was := s.running
	s.running = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	if was {
		s.log.Infof("scheduler stopped")
	}
}

// IsRunning reports whether the cron runner is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled rebalance of hubID.
func (s *Scheduler) NextRun(hubID string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.hubs[hubID]
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(e.id).Next, true
}

// Schedules returns the cron expression registered per hub.
func (s *Scheduler) Schedules() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.hubs))
	for id, e := range s.hubs {
		out[id] = e.schedule
	}
	return out
}
