// Package journal records the outcome of every upload.
//
// The connection handler emits one Record per PUT that reached the transfer
// engine. Sinks decide what to keep: the CSV sink appends completed
// transfers in the classic client_log.csv layout, the Badger sink keeps a
// queryable history of all outcomes and the sample sink dumps per-chunk
// TCP_INFO readings. Sink failures never affect the protocol; callers log
// them and move on.
package journal

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/putd/internal/transfer"
	"github.com/marmos91/putd/pkg/diag"
)

// Record describes one finished (or failed) upload.
type Record struct {
	ID                 uuid.UUID     `json:"id"`
	RemoteAddr         string        `json:"remote_addr"`
	Filename           string        `json:"filename"`
	StartTime          time.Time     `json:"start_time"`
	EndTime            time.Time     `json:"end_time"`
	BytesTransferred   uint64        `json:"bytes_transferred"`
	DeclaredSize       uint64        `json:"declared_size"`
	DurationSeconds    float64       `json:"duration_seconds"`
	RateBytesPerSecond *float64      `json:"rate_bytes_per_second,omitempty"`
	Outcome            string        `json:"outcome"`
	Error              string        `json:"error,omitempty"`
	Samples            []diag.Sample `json:"samples,omitempty"`
}

// Completed reports whether the upload reached its declared size.
func (r *Record) Completed() bool {
	return r.Outcome == transfer.Complete.String()
}

// NewRecord builds a Record from an engine result.
//
// transferErr is the error returned by the engine, if any. The rate is left
// unset when no measurable time elapsed.
func NewRecord(result *transfer.Result, remoteAddr string, transferErr error, samples []diag.Sample) Record {
	rec := Record{
		ID:               uuid.New(),
		RemoteAddr:       remoteAddr,
		Filename:         result.Name,
		StartTime:        result.StartTime,
		EndTime:          result.EndTime,
		BytesTransferred: result.BytesTransferred,
		DeclaredSize:     result.DeclaredSize,
		DurationSeconds:  result.Elapsed().Seconds(),
		Outcome:          result.Outcome.String(),
		Samples:          samples,
	}
	if rate, ok := result.Rate(); ok {
		rec.RateBytesPerSecond = &rate
	}
	if transferErr != nil {
		rec.Error = transferErr.Error()
	}
	return rec
}

// Sink consumes transfer records.
//
// Implementations must be safe for concurrent use; every connection calls
// RecordTransfer from its own goroutine.
type Sink interface {
	RecordTransfer(ctx context.Context, rec Record) error
	Close() error
}

// NoopSink discards all records.
type NoopSink struct{}

func (NoopSink) RecordTransfer(context.Context, Record) error { return nil }

func (NoopSink) Close() error { return nil }

// MultiSink fans records out to several sinks.
//
// Every sink receives every record even if an earlier one fails; the
// returned error joins all failures.
type MultiSink []Sink

func (m MultiSink) RecordTransfer(ctx context.Context, rec Record) error {
	var errs []error
	for _, sink := range m {
		if err := sink.RecordTransfer(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiSink) Close() error {
	var errs []error
	for _, sink := range m {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Reader is implemented by sinks that can return past records, newest first.
type Reader interface {
	List(ctx context.Context, limit int) ([]Record, error)
}
