package s3

import "time"

// S3Metrics observes calls made to the bucket.
//
// Operation names are the S3 API names (HeadObject, PutObject, ...).
// A nil S3Metrics in S3StoreConfig disables collection.
type S3Metrics interface {
	// ObserveOperation records one API call and whether it failed.
	ObserveOperation(operation string, duration time.Duration, err error)

	// RecordBytes adds bytes moved by an operation.
	RecordBytes(operation string, bytes int64)
}

type noopMetrics struct{}

func (noopMetrics) ObserveOperation(string, time.Duration, error) {}
func (noopMetrics) RecordBytes(string, int64) {}

// observe times fn and reports it under operation.
func (s *S3Store) observe(operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	s.metrics.ObserveOperation(operation, time.Since(start), err)
	return err
}
