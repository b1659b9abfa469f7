// Package metrics exposes Prometheus instrumentation for the concept engine:
// store operations, layout position writes, user notifications and HTTP
// requests. Each Collector owns its registry so tests can create as many as
// they need.
package metrics
