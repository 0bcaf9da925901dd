package config

import (
	"github.com/marmos91/putd/pkg/health"
	"github.com/marmos91/putd/pkg/metrics"
	promMetrics "github.com/marmos91/putd/pkg/metrics/prometheus"
	"github.com/marmos91/putd/pkg/store"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// PutMetrics is the metrics collector for the PUT adapter (never nil, uses noop if disabled)
	PutMetrics metrics.PutMetrics
}

// InitializeMetrics creates and initializes all metrics components based on configuration.
//
// If metrics are enabled in the configuration:
//   - Initializes the global Prometheus registry
//   - Creates the metrics HTTP server
//   - Creates Prometheus-backed metrics instances for all components
//
// If metrics are disabled:
//   - Returns nil server
//   - Returns no-op metrics implementations (zero overhead)
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Server.Metrics.Enabled {
		return &MetricsResult{
			Server:     nil,
			PutMetrics: metrics.NewNoopPutMetrics(),
		}
	}

	metrics.InitRegistry()

	server := metrics.NewServer(metrics.ServerConfig{
		BindAddress: cfg.Server.Metrics.BindAddress,
		Port:        cfg.Server.Metrics.Port,
	})

	return &MetricsResult{
		Server:     server,
		PutMetrics: promMetrics.NewPutMetrics(),
	}
}

// CreateHealthServer returns the gRPC health server watching st, or nil
// when health reporting is disabled.
func CreateHealthServer(cfg *Config, st store.Store, m metrics.PutMetrics) *health.Server {
	if !cfg.Server.Health.Enabled {
		return nil
	}

	return health.New(health.Config{
		BindAddress:   cfg.Server.Health.BindAddress,
		Port:          cfg.Server.Health.Port,
		CheckInterval: cfg.Server.Health.CheckInterval,
	}, st, m)
}
