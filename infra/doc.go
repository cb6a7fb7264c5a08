// Package infra holds the adapters behind the core interfaces: the SQLite
// entity store, the Redis hub locker, MQTT publishing and metrics exporters.
// These packages depend only on interfaces defined in core.
package infra
