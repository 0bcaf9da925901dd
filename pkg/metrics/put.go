package metrics

import "time"

// PutMetrics provides observability for the PUT adapter.
//
// This interface is optional - if not provided to the adapter, a no-op
// implementation is used.
//
// Example usage:
//
//	// With metrics enabled
//	m := prometheus.NewPutMetrics()
//	adapter := put.New(config, m)
//
//	// Without metrics (no-op)
//	adapter := put.New(config, nil)
type PutMetrics interface {
	// RecordCommand records one handled command.
	//
	// Parameters:
	//   - command: "LIST", "PUT", "QUIT" or "INVALID"
	//   - duration: time from parse to reply
	//   - reason: the ERROR reason sent back, empty on success
	RecordCommand(command string, duration time.Duration, reason string)

	// RecordBytesReceived adds payload bytes persisted by the engine.
	RecordBytesReceived(bytes int)

	// RecordTransfer records a finished transfer.
	//
	// Parameters:
	//   - outcome: "complete", "incomplete" or "aborted"
	//   - bytes: bytes received
	//   - duration: transfer wall time
	RecordTransfer(outcome string, bytes uint64, duration time.Duration)

	// RecordThrottled records time a command spent waiting on the rate limiter.
	RecordThrottled(wait time.Duration)

	// SetActiveConnections updates the current connection count.
	SetActiveConnections(count int32)

	// RecordConnectionAccepted increments the accepted connections counter.
	RecordConnectionAccepted()

	// RecordConnectionClosed increments the closed connections counter.
	RecordConnectionClosed()

	// RecordConnectionForceClosed increments the counter of connections
	// closed because the shutdown timeout expired.
	RecordConnectionForceClosed()

	// SetStorageUsage publishes the storage root usage.
	SetStorageUsage(files uint64, bytes uint64)
}

// noopPutMetrics discards everything.
type noopPutMetrics struct{}

// NewNoopPutMetrics returns a PutMetrics that records nothing.
func NewNoopPutMetrics() PutMetrics {
	return noopPutMetrics{}
}

func (noopPutMetrics) RecordCommand(string, time.Duration, string) {}
func (noopPutMetrics) RecordBytesReceived(int) {}
func (noopPutMetrics) RecordTransfer(string, uint64, time.Duration) {}
func (noopPutMetrics) RecordThrottled(time.Duration) {}
func (noopPutMetrics) SetActiveConnections(int32) {}
func (noopPutMetrics) RecordConnectionAccepted() {}
func (noopPutMetrics) RecordConnectionClosed() {}
func (noopPutMetrics) RecordConnectionForceClosed() {}
func (noopPutMetrics) SetStorageUsage(uint64, uint64) {}
