package prometheus

import (
	"time"

	"github.com/marmos91/putd/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// putMetrics is the Prometheus implementation of metrics.PutMetrics.
type putMetrics struct {
	commandsTotal          *prometheus.CounterVec
	commandDuration        *prometheus.HistogramVec
	bytesReceived          prometheus.Counter
	transfersTotal         *prometheus.CounterVec
	transferSize           *prometheus.HistogramVec
	transferDuration       *prometheus.HistogramVec
	throttleWait           prometheus.Histogram
	activeConnections      prometheus.Gauge
	connectionsAccepted    prometheus.Counter
	connectionsClosed      prometheus.Counter
	connectionsForceClosed prometheus.Counter
	storageFiles           prometheus.Gauge
	storageBytes           prometheus.Gauge
}

// NewPutMetrics creates Prometheus-backed PutMetrics on the global registry.
//
// Returns a no-op implementation if metrics are not enabled (InitRegistry not called).
func NewPutMetrics() metrics.PutMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopPutMetrics()
	}
	return NewPutMetricsWithRegistry(metrics.GetRegistry())
}

// NewPutMetricsWithRegistry registers the PUT adapter metrics on reg.
func NewPutMetricsWithRegistry(reg prometheus.Registerer) metrics.PutMetrics {
	factory := promauto.With(reg)
	ns := metrics.Namespace

	return &putMetrics{
		commandsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "commands_total",
				Help:      "Total number of commands by verb, status and error reason",
			},
			[]string{"command", "status", "reason"},
		),
		commandDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Name:      "command_duration_milliseconds",
				Help:      "Time from command parse to reply in milliseconds",
				Buckets: []float64{
					1,      // 1ms
					10,     // 10ms
					100,    // 100ms
					1000,   // 1s
					10000,  // 10s
					100000, // 100s (large uploads)
				},
			},
			[]string{"command"},
		),
		bytesReceived: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "bytes_received_total",
				Help:      "Total payload bytes persisted",
			},
		),
		transfersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "transfers_total",
				Help:      "Total number of uploads by outcome",
			},
			[]string{"outcome"},
		),
		transferSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Name:      "transfer_size_bytes",
				Help:      "Distribution of received upload sizes",
				Buckets: []float64{
					4096,       // 4KB
					65536,      // 64KB
					1048576,    // 1MB
					10485760,   // 10MB
					104857600,  // 100MB
					1073741824, // 1GB
				},
			},
			[]string{"outcome"},
		),
		transferDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Name:      "transfer_duration_seconds",
				Help:      "Duration of uploads in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"outcome"},
		),
		throttleWait: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: ns,
				Name:      "throttle_wait_seconds",
				Help:      "Time commands spent waiting on the rate limiter",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
			},
		),
		activeConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: ns,
				Name:      "active_connections",
				Help:      "Current number of open client connections",
			},
		),
		connectionsAccepted: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "connections_accepted_total",
				Help:      "Total number of connections accepted",
			},
		),
		connectionsClosed: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "connections_closed_total",
				Help:      "Total number of connections closed",
			},
		),
		connectionsForceClosed: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "connections_force_closed_total",
				Help:      "Total number of connections force-closed during shutdown timeout",
			},
		),
		storageFiles: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: ns,
				Name:      "storage_files",
				Help:      "Number of entries under the storage root",
			},
		),
		storageBytes: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: ns,
				Name:      "storage_used_bytes",
				Help:      "Bytes used under the storage root",
			},
		),
	}
}

func (m *putMetrics) RecordCommand(command string, duration time.Duration, reason string) {
	status := "success"
	if reason != "" {
		status = "error"
	}

	m.commandsTotal.WithLabelValues(command, status, reason).Inc()
	m.commandDuration.WithLabelValues(command).Observe(duration.Seconds() * 1000) // Convert to milliseconds
}

func (m *putMetrics) RecordBytesReceived(bytes int) {
	m.bytesReceived.Add(float64(bytes))
}

func (m *putMetrics) RecordTransfer(outcome string, bytes uint64, duration time.Duration) {
	m.transfersTotal.WithLabelValues(outcome).Inc()
	m.transferSize.WithLabelValues(outcome).Observe(float64(bytes))
	m.transferDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (m *putMetrics) RecordThrottled(wait time.Duration) {
	m.throttleWait.Observe(wait.Seconds())
}

func (m *putMetrics) SetActiveConnections(count int32) {
	m.activeConnections.Set(float64(count))
}

func (m *putMetrics) RecordConnectionAccepted() {
	m.connectionsAccepted.Inc()
}

func (m *putMetrics) RecordConnectionClosed() {
	m.connectionsClosed.Inc()
}

func (m *putMetrics) RecordConnectionForceClosed() {
	m.connectionsForceClosed.Inc()
}

func (m *putMetrics) SetStorageUsage(files uint64, bytes uint64) {
	m.storageFiles.Set(float64(files))
	m.storageBytes.Set(float64(bytes))
}
