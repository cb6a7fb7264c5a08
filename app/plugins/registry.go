// Package plugins holds the factories for the pluggable backends of the
// service: entity store, hub locker and tenant notifier. Audit and metrics
// sinks register themselves in their own packages.
package plugins

import (
	"github.com/kilianp07/powerhub/core/compliance"
	"github.com/kilianp07/powerhub/core/factory"
	"github.com/kilianp07/powerhub/core/lock"
	"github.com/kilianp07/powerhub/core/store"
)

var (
	Stores    = factory.NewRegistry[store.Store]()
	Lockers   = factory.NewRegistry[lock.Locker]()
	Notifiers = factory.NewRegistry[compliance.Notifier]()
)

func RegisterStore(name string, f factory.Factory[store.Store]) error {
	return Stores.Register(name, f)
}

func RegisterLocker(name string, f factory.Factory[lock.Locker]) error {
	return Lockers.Register(name, f)
}

func RegisterNotifier(name string, f factory.Factory[compliance.Notifier]) error {
	return Notifiers.Register(name, f)
}

// NewStore builds the configured store. An empty type selects "memory".
func NewStore(cfg factory.ModuleConfig) (store.Store, error) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}
	return Stores.Create(cfg)
}

// NewLocker builds the configured locker. An empty type selects "local".
func NewLocker(cfg factory.ModuleConfig) (lock.Locker, error) {
	if cfg.Type == "" {
		cfg.Type = "local"
	}
	return Lockers.Create(cfg)
}

// NewNotifier builds the configured notifier. An empty type selects "log".
func NewNotifier(cfg factory.ModuleConfig) (compliance.Notifier, error) {
	if cfg.Type == "" {
		cfg.Type = "log"
	}
	return Notifiers.Create(cfg)
}
