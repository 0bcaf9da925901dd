package prometheus

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPutMetricsWithRegistry(reg).(*putMetrics)

	m.RecordCommand("PUT", 5*time.Millisecond, "")
	m.RecordCommand("PUT", time.Millisecond, "FILE_EXISTS")
	m.RecordCommand("LIST", time.Millisecond, "")
	m.RecordBytesReceived(4096)
	m.RecordBytesReceived(10)
	m.RecordTransfer("complete", 4106, time.Second)
	m.RecordTransfer("aborted", 3, time.Millisecond)
	m.RecordConnectionAccepted()
	m.RecordConnectionClosed()
	m.SetActiveConnections(3)
	m.SetStorageUsage(2, 4106)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.commandsTotal.WithLabelValues("PUT", "success", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commandsTotal.WithLabelValues("PUT", "error", "FILE_EXISTS")))
	assert.Equal(t, 4106.0, testutil.ToFloat64(m.bytesReceived))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transfersTotal.WithLabelValues("complete")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transfersTotal.WithLabelValues("aborted")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.activeConnections))
	assert.Equal(t, 4106.0, testutil.ToFloat64(m.storageBytes))

	count, err := testutil.GatherAndCount(reg, "putd_commands_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestNewPutMetrics_DisabledIsNoop(t *testing.T) {
	m := NewPutMetrics()
	// Must not panic without a registry.
	m.RecordCommand("QUIT", 0, "")
	m.SetStorageUsage(0, 0)
}

func TestS3Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewS3MetricsWithRegistry(reg).(*s3Metrics)

	m.ObserveOperation("HeadObject", 2*time.Millisecond, nil)
	m.ObserveOperation("PutObject", time.Second, assert.AnError)
	m.ObserveOperation("PutObject", time.Second, nil)
	m.RecordBytes("PutObject", 4096)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.operationsTotal.WithLabelValues("HeadObject", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operationsTotal.WithLabelValues("PutObject", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errorsTotal.WithLabelValues("PutObject")))
	assert.Equal(t, 4096.0, testutil.ToFloat64(m.bytesTransferred.WithLabelValues("PutObject")))
}

func TestNewS3Metrics_DisabledIsNil(t *testing.T) {
	assert.Nil(t, NewS3Metrics())
}
