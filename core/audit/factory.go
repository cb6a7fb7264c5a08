package audit

import (
	"fmt"

	"github.com/kilianp07/powerhub/core/factory"
)

var sinkRegistry = factory.NewRegistry[Sink]()

// RegisterSink adds an audit sink factory identified by name.
func RegisterSink(name string, f factory.Factory[Sink]) error {
	return sinkRegistry.Register(name, f)
}

// NewSink creates a Sink from the provided configuration. No configuration
// yields a NopSink, several yield a MultiSink.
func NewSink(cfgs []factory.ModuleConfig) (Sink, error) {
	if len(cfgs) == 0 {
		return NopSink{}, nil
	}
	sinks := make([]Sink, 0, len(cfgs))
	for _, c := range cfgs {
		s, err := sinkRegistry.Create(c)
		if err != nil {
			for _, open := range sinks {
				_ = open.Close()
			}
			return nil, fmt.Errorf("audit sink %s: %w", c.Type, err)
		}
		sinks = append(sinks, s)
	}
	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return NewMultiSink(sinks...), nil
}

type fileConf struct {
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

func init() {
	_ = RegisterSink("nop", func(map[string]any) (Sink, error) { return NopSink{}, nil })
	_ = RegisterSink("memory", func(map[string]any) (Sink, error) { return NewMemoryStore(), nil })
	_ = RegisterSink("jsonl", func(conf map[string]any) (Sink, error) {
		var c fileConf
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Path == "" {
			c.Path = "allocation_history.jsonl"
		}
		return NewJSONLStore(c.Path, c.MaxSizeMB, c.MaxBackups, c.MaxAgeDays)
	})
	_ = RegisterSink("sqlite", func(conf map[string]any) (Sink, error) {
		var c fileConf
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Path == "" {
			c.Path = "allocation_history.db"
		}
		return NewSQLiteStore(c.Path)
	})
}
