package scheduler

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/powerhub/core/model"
	"github.com/kilianp07/powerhub/core/rebalance"
	"github.com/kilianp07/powerhub/core/store"
)

type call struct {
	hubID   string
	trigger model.RebalanceTrigger
	by      string
}

type fakeRebalancer struct {
	mu    sync.Mutex
	calls []call
}

func (f *fakeRebalancer) Rebalance(_ context.Context, hubID string, trigger model.RebalanceTrigger, opts rebalance.Options) (rebalance.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{hubID, trigger, opts.TriggeredBy})
	return rebalance.Result{HubID: hubID, Trigger: trigger}, nil
}

// blockingRebalancer holds every call until release is closed.
type blockingRebalancer struct {
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (b *blockingRebalancer) Rebalance(_ context.Context, hubID string, trigger model.RebalanceTrigger, _ rebalance.Options) (rebalance.Result, error) {
	b.once.Do(func() { close(b.entered) })
	<-b.release
	return rebalance.Result{HubID: hubID, Trigger: trigger}, nil
}

type fakeLifter struct{ hubs []string }

func (f *fakeLifter) LiftExpiredThrottles(_ context.Context, hubID string) (int, error) {
	f.hubs = append(f.hubs, hubID)
	return 0, nil
}

func seedStore(t *testing.T) *store.MemoryStore {
	t.Helper()
	s := store.NewMemoryStore()
	seed := store.Seed{
		Hubs: []model.Hub{
			{ID: "h1", Capacity: model.HubCapacity{TotalKW: 100}, ActivePolicyID: "p1"},
			{ID: "h2", Capacity: model.HubCapacity{TotalKW: 100}, ActivePolicyID: "p2"},
			{ID: "h3", Status: model.HubRetired, Capacity: model.HubCapacity{TotalKW: 100}},
		},
		Policies: []model.CapacityPolicy{
			{ID: "p1", HubID: "h1", State: model.PolicyActive, RebalanceRule: model.RebalanceRule{Enabled: true, Trigger: model.TriggerScheduled, Schedule: "30 2 * * *"}},
			{ID: "p2", HubID: "h2", State: model.PolicyActive, RebalanceRule: model.RebalanceRule{Enabled: true, Trigger: model.TriggerThreshold, UtilizationThresholdPercent: 80}},
		},
	}
	require.NoError(t, seed.Apply(context.Background(), s))
	return s
}

func TestSyncRegistersScheduledPolicies(t *testing.T) {
	st := seedStore(t)
	s := New(Config{}, st, &fakeRebalancer{}, nil, nil)
	require.NoError(t, s.Sync(context.Background()))

	assert.Equal(t, map[string]string{"h1": "30 2 * * *"}, s.Schedules())
	_, ok := s.NextRun("h2")
	assert.False(t, ok)
}

func TestSyncFollowsPolicyChanges(t *testing.T) {
	ctx := context.Background()
	st := seedStore(t)
	s := New(Config{}, st, &fakeRebalancer{}, nil, nil)
	require.NoError(t, s.Sync(ctx))

	p, err := st.Policy(ctx, "p1")
	require.NoError(t, err)
	p.RebalanceRule.Schedule = ""
	require.NoError(t, st.Commit(ctx, store.Changes{Policies: []model.CapacityPolicy{p}}))
	require.NoError(t, s.Sync(ctx))
	assert.Equal(t, DefaultRebalanceSchedule, s.Schedules()["h1"])

	p, err = st.Policy(ctx, "p1")
	require.NoError(t, err)
	p.RebalanceRule.Enabled = false
	require.NoError(t, st.Commit(ctx, store.Changes{Policies: []model.CapacityPolicy{p}}))
	require.NoError(t, s.Sync(ctx))
	assert.Empty(t, s.Schedules())
}

func TestSyncSkipsInvalidSchedule(t *testing.T) {
	ctx := context.Background()
	st := seedStore(t)
	p, err := st.Policy(ctx, "p1")
	require.NoError(t, err)
	p.RebalanceRule.Schedule = "every now and then"
	require.NoError(t, st.Commit(ctx, store.Changes{Policies: []model.CapacityPolicy{p}}))

	s := New(Config{}, st, &fakeRebalancer{}, nil, nil)
	require.NoError(t, s.Sync(ctx))
	assert.Empty(t, s.Schedules())
}

func TestSweep(t *testing.T) {
	st := seedStore(t)
	r := &fakeRebalancer{}
	l := &fakeLifter{}
	s := New(Config{}, st, r, l, nil)
	s.Sweep(context.Background())

	assert.Equal(t, []string{"h1", "h2"}, l.hubs)
	require.Len(t, r.calls, 2)
	for _, c := range r.calls {
		assert.Equal(t, model.TriggerThreshold, c.trigger)
		assert.Equal(t, TriggeredBy, c.by)
	}
	assert.Contains(t, s.Schedules(), "h1")
}

func TestRunScheduled(t *testing.T) {
	r := &fakeRebalancer{}
	s := New(Config{}, seedStore(t), r, nil, nil)
	s.RunScheduled(context.Background(), "h1")
	require.Len(t, r.calls, 1)
	assert.Equal(t, call{"h1", model.TriggerScheduled, TriggeredBy}, r.calls[0])
}

func TestStartStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New(Config{}, seedStore(t), &fakeRebalancer{}, &fakeLifter{}, nil)
	require.NoError(t, s.Start(ctx))
	assert.True(t, s.IsRunning())

	next, ok := s.NextRun("h1")
	assert.True(t, ok)
	assert.True(t, next.After(time.Now()))

	cancel()
	assert.Eventually(t, func() bool { return !s.IsRunning() }, time.Second, 10*time.Millisecond)
}

func TestStopWaitsForInFlightSweep(t *testing.T) {
	st := seedStore(t)
	r := &blockingRebalancer{entered: make(chan struct{}), release: make(chan struct{})}
	s := New(Config{Enabled: true, SweepSchedule: "@every 1s"}, st, r, nil, nil)
	require.NoError(t, s.Start(context.Background()))

	select {
	case <-r.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("sweep did not run")
	}

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	assert.Never(t, func() bool {
		select {
		case <-stopped:
			return true
		default:
			return false
		}
	}, 100*time.Millisecond, 10*time.Millisecond, "stop must wait for the running sweep")
	assert.False(t, s.IsRunning())

	// the sweep finishes with Sync, which needs the scheduler lock
	close(r.release)
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("stop did not return after the sweep finished")
	}
	assert.Equal(t, map[string]string{"h1": "30 2 * * *"}, s.Schedules())
}

func TestStartRejectsInvalidConfig(t *testing.T) {
	s := New(Config{SweepSchedule: "nope"}, seedStore(t), &fakeRebalancer{}, nil, nil)
	assert.Error(t, s.Start(context.Background()))
	assert.False(t, s.IsRunning())
}

func TestDecodeConfig(t *testing.T) {
	data := "enabled: true\nsweep_schedule: \"*/10 * * * *\"\n"
	cfg, err := DecodeConfig(bytes.NewBufferString(data), "yaml")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !cfg.Enabled || cfg.SweepSchedule != "*/10 * * * *" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	cfg.SetDefaults()
	if cfg.RebalanceSchedule != DefaultRebalanceSchedule {
		t.Fatalf("default not applied")
	}
	if _, err := DecodeConfig(bytes.NewBufferString("{}"), "toml"); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scheduler.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"enabled":true,"rebalance_schedule":"0 4 * * *"}`), 0o600))
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "0 4 * * *", cfg.RebalanceSchedule)
	assert.NoError(t, cfg.Validate())
}
