package config

import "github.com/kilianp07/powerhub/core/factory"

// ComponentsConfig lists the pluggable backends of the service. Each entry is
// defined by a type name and a raw configuration map decoded by the backend.
type ComponentsConfig struct {
	Store    factory.ModuleConfig   `json:"store"`
	Lock     factory.ModuleConfig   `json:"lock"`
	Notifier factory.ModuleConfig   `json:"notifier"`
	Audit    []factory.ModuleConfig `json:"audit"`
}
