package app

import (
	"context"
	"fmt"
	"io"

	"github.com/kilianp07/powerhub/app/plugins"
	"github.com/kilianp07/powerhub/config"
	"github.com/kilianp07/powerhub/core/audit"
	"github.com/kilianp07/powerhub/core/engine"
	coremetrics "github.com/kilianp07/powerhub/core/metrics"
	"github.com/kilianp07/powerhub/core/scheduler"
	"github.com/kilianp07/powerhub/core/service"
	"github.com/kilianp07/powerhub/core/store"
	"github.com/kilianp07/powerhub/infra/logger"
	"github.com/kilianp07/powerhub/infra/metrics"
)

// Service wires the capacity engine, its backends and the scheduler.
type Service struct {
	Engine    *engine.Engine
	Scheduler *scheduler.Scheduler

	cfg     *config.Config
	closers []io.Closer
	log     logger.Logger
}

// New builds a Service from the configuration. The seed file, when set, is
// applied only to an empty store.
func New(ctx context.Context, cfg *config.Config) (_ *Service, err error) {
	if err := logger.Configure(cfg.Logging.Logger()); err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}
	svc := &Service{cfg: cfg, log: logger.New("service")}
	defer func() {
		if err != nil {
			_ = svc.Close()
		}
	}()

	st, err := plugins.NewStore(cfg.Components.Store)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	svc.closers = append(svc.closers, st)
	if err := svc.seed(ctx, st); err != nil {
		return nil, err
	}

	locker, err := plugins.NewLocker(cfg.Components.Lock)
	if err != nil {
		return nil, fmt.Errorf("lock: %w", err)
	}
	if c, ok := locker.(io.Closer); ok {
		svc.closers = append(svc.closers, c)
	}

	sink, err := audit.NewSink(cfg.Components.Audit)
	if err != nil {
		return nil, err
	}
	svc.closers = append(svc.closers, sink)

	ms, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	notifier, err := plugins.NewNotifier(cfg.Components.Notifier)
	if err != nil {
		return nil, fmt.Errorf("notifier: %w", err)
	}

	svc.Engine = engine.New(service.Deps{
		Store:           st,
		Locker:          locker,
		Audit:           sink,
		Metrics:         ms,
		Log:             logger.New("engine"),
		SnapshotTimeout: cfg.SnapshotTimeout,
	}, engine.Options{Compliance: cfg.Compliance, Notifier: notifier})
	svc.Scheduler = scheduler.New(cfg.Scheduler, st, svc.Engine.Rebalancer(), svc.Engine.Escalator(), logger.New("scheduler"))
	return svc, nil
}

func (s *Service) seed(ctx context.Context, st store.Store) error {
	if s.cfg.Seed == "" {
		return nil
	}
	hubs, err := st.Hubs(ctx)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	if len(hubs) > 0 {
		s.log.Debugf("store not empty, seed %s skipped", s.cfg.Seed)
		return nil
	}
	seed, err := store.LoadSeed(s.cfg.Seed)
	if err != nil {
		return err
	}
	if err := seed.Apply(ctx, st); err != nil {
		return err
	}
	s.log.Infof("seeded %d hubs, %d tenants, %d policies", len(seed.Hubs), len(seed.Tenants), len(seed.Policies))
	return nil
}

// Run starts the scheduler and the metrics endpoint, then blocks until the
// context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.cfg.Metrics.PrometheusPort != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, s.cfg.Metrics.PrometheusPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	if s.cfg.Scheduler.Enabled {
		if err := s.Scheduler.Start(ctx); err != nil {
			return fmt.Errorf("scheduler: %w", err)
		}
	}
	s.log.Infof("powerhub running")
	<-ctx.Done()
	s.Scheduler.Stop()
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil
	return first
}
