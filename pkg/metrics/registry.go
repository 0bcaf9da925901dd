// Package metrics defines the observability hooks of the PUT server.
//
// Metrics are optional. Until InitRegistry is called every constructor hands
// out a no-op implementation, so an upload runs the same code path with or
// without a Prometheus endpoint.
//
// Wiring done by putd start when server.metrics.enabled is set:
//
//	metrics.InitRegistry()
//
//	// Counters for commands, connections, throttling and transfers
//	putMetrics := prometheus.NewPutMetrics()
//	adapter := put.New(cfg.Adapters.Put, putMetrics)
//
//	// Per-operation timings of the S3 backend
//	st, err := s3.New(ctx, s3.S3StoreConfig{..., Metrics: prometheus.NewS3Metrics()})
//
//	// /metrics served from the same registry
//	srv := metrics.NewServer(metrics.ServerConfig{Port: 9090})
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name exported by putd, e.g.
// putd_commands_total or putd_s3_operations_total.
const Namespace = "putd"

var (
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry creates the registry shared by the PUT adapter, the S3 store
// and the /metrics handler. Later calls are ignored.
//
// Call it before building the adapter or the store: constructors that run
// earlier return no-op metrics for the lifetime of the process.
func InitRegistry() {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
	})
}

// GetRegistry returns the shared registry, or nil when metrics are off.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled reports whether InitRegistry has run.
func IsEnabled() bool {
	return registry != nil
}
