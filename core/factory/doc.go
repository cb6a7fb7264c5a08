// Package factory instantiates pluggable modules (audit sinks, metrics sinks,
// stores, lockers, notifiers) from configuration. A module is a type name plus
// a map of raw settings; each factory decodes the map into its own typed
// struct with Decode.
//
//	reg := factory.NewRegistry[audit.Sink]()
//	_ = reg.Register("jsonl", func(conf map[string]any) (audit.Sink, error) {
//	    var c struct {
//	        Path      string `json:"path"`
//	        MaxSizeMB int    `json:"max_size_mb"`
//	    }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return audit.NewJSONLStore(c.Path, c.MaxSizeMB, 0, 0)
//	})
//	sink, err := reg.Create(factory.ModuleConfig{Type: "jsonl", Conf: map[string]any{"path": "history.jsonl"}})
package factory
