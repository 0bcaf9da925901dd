package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/marmos91/putd/pkg/store"
)

// S3Store implements store.Store on Amazon S3 or an S3-compatible service.
//
// Key Design:
//   - Each file is one object at <keyPrefix><name>
//   - Objects whose key contains a further "/" after the prefix are ignored,
//     since file names never contain one
//
// Exclusive Create:
// S3 has no open-exclusive primitive, so creation is guarded twice:
//  1. An in-process reservation set keyed by name serializes connections of
//     this server and lets List report in-progress uploads
//  2. The final PutObject carries If-None-Match: *, so a concurrent writer
//     from another process makes Commit fail with store.ErrExists instead
//     of overwriting
//
// Upload Spooling:
// Payload bytes are spooled to a local temporary file and sent with a single
// PutObject on Commit. Nothing is written to the bucket for aborted uploads,
// which makes partial-file cleanup a local delete.
//
// Thread Safety:
// This implementation is safe for concurrent use by multiple goroutines.
type S3Store struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
	spoolDir  string
	metrics   S3Metrics

	mu       sync.Mutex
	reserved map[string]struct{}
}

// S3StoreConfig contains configuration for the S3 store.
type S3StoreConfig struct {
	// Client is the configured S3 client
	Client *s3.Client

	// Bucket is the S3 bucket name. It must already exist.
	Bucket string

	// KeyPrefix is an optional prefix for all object keys
	// Example: "uploads/" results in keys like "uploads/report.pdf"
	KeyPrefix string

	// SpoolDir is where in-progress uploads are buffered.
	// Defaults to os.TempDir().
	SpoolDir string

	// Metrics is optional; nil disables S3 operation metrics.
	Metrics S3Metrics
}

// New creates a new S3-based store.
//
// Context Cancellation:
// This operation checks the context before verifying bucket access.
func New(ctx context.Context, cfg S3StoreConfig) (*S3Store, error) {
	// ========================================================================
	// Step 1: Check context before S3 operations
	// ========================================================================

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// ========================================================================
	// Step 2: Validate configuration
	// ========================================================================

	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	spoolDir := cfg.SpoolDir
	if spoolDir == "" {
		spoolDir = os.TempDir()
	}
	if err := os.MkdirAll(spoolDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create spool directory: %w", err)
	}

	// ========================================================================
	// Step 3: Verify bucket access
	// ========================================================================

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}

	st := &S3Store{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
		spoolDir:  spoolDir,
		metrics:   metrics,
		reserved:  make(map[string]struct{}),
	}

	if err := st.headBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	return st, nil
}

func (s *S3Store) objectKey(name string) string {
	return s.keyPrefix + name
}

// isNotFound reports whether err is a missing-object response.
// HeadObject answers with a bare 404 (types.NotFound) while GetObject uses
// types.NoSuchKey.
func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

// isPreconditionFailed reports whether a conditional write lost the race.
func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "PreconditionFailed", "ConditionalRequestConflict":
			return true
		}
	}
	return false
}

// ============================================================================
// Store Interface Implementation
// ============================================================================

// List returns object names under the prefix merged with in-progress
// reservations.
func (s *S3Store) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.keyPrefix),
	})
	for paginator.HasMorePages() {
		var page *s3.ListObjectsV2Output
		err := s.observe("ListObjectsV2", func() (err error) {
			page, err = paginator.NextPage(ctx)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), s.keyPrefix)
			if store.ValidateName(name) != nil {
				continue
			}
			seen[name] = struct{}{}
		}
	}

	s.mu.Lock()
	for name := range s.reserved {
		seen[name] = struct{}{}
	}
	s.mu.Unlock()

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *S3Store) Exists(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := store.ValidateName(name); err != nil {
		return false, err
	}

	s.mu.Lock()
	_, reserved := s.reserved[name]
	s.mu.Unlock()
	if reserved {
		return true, nil
	}

	return s.objectExists(ctx, name)
}

func (s *S3Store) objectExists(ctx context.Context, name string) (bool, error) {
	_, err := s.headObject(ctx, name)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to head object %s: %w", name, err)
	}
	return true, nil
}

// Create reserves name locally, checks the bucket and opens a spool file.
func (s *S3Store) Create(ctx context.Context, name string) (store.Upload, error) {
	// ========================================================================
	// Step 1: Check context and validate the name
	// ========================================================================

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := store.ValidateName(name); err != nil {
		return nil, err
	}

	// ========================================================================
	// Step 2: Take the in-process reservation
	// ========================================================================

	s.mu.Lock()
	if _, ok := s.reserved[name]; ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("file %s: %w", name, store.ErrExists)
	}
	s.reserved[name] = struct{}{}
	s.mu.Unlock()

	// ========================================================================
	// Step 3: Reject names already in the bucket
	// ========================================================================

	exists, err := s.objectExists(ctx, name)
	if err != nil {
		s.release(name)
		return nil, err
	}
	if exists {
		s.release(name)
		return nil, fmt.Errorf("file %s: %w", name, store.ErrExists)
	}

	// ========================================================================
	// Step 4: Open the spool file
	// ========================================================================

	spool, err := os.CreateTemp(s.spoolDir, "putd-s3-*")
	if err != nil {
		s.release(name)
		return nil, fmt.Errorf("failed to create spool file: %w", store.WrapNoSpace(err))
	}

	return &s3Upload{store: s, name: name, spool: spool}, nil
}

func (s *S3Store) release(name string) {
	s.mu.Lock()
	delete(s.reserved, name)
	s.mu.Unlock()
}

func (s *S3Store) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := store.ValidateName(name); err != nil {
		return nil, err
	}

	var result *s3.GetObjectOutput
	err := s.observe("GetObject", func() (err error) {
		result, err = s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.objectKey(name)),
		})
		return err
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("file %s: %w", name, store.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}
	return result.Body, nil
}

func (s *S3Store) Size(ctx context.Context, name string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := store.ValidateName(name); err != nil {
		return 0, err
	}

	result, err := s.headObject(ctx, name)
	if err != nil {
		if isNotFound(err) {
			return 0, fmt.Errorf("file %s: %w", name, store.ErrNotFound)
		}
		return 0, fmt.Errorf("failed to head object: %w", err)
	}
	if result.ContentLength == nil {
		return 0, fmt.Errorf("content length not available for %s", name)
	}
	return uint64(*result.ContentLength), nil
}

// Remove deletes the object. S3 deletes are idempotent.
func (s *S3Store) Remove(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := store.ValidateName(name); err != nil {
		return err
	}

	err := s.observe("DeleteObject", func() error {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.objectKey(name)),
		})
		return err
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete object %s: %w", name, err)
	}
	return nil
}

// Healthcheck verifies the bucket is still reachable.
func (s *S3Store) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.headBucket(ctx); err != nil {
		return fmt.Errorf("bucket %q unreachable: %w", s.bucket, err)
	}
	return nil
}

func (s *S3Store) headBucket(ctx context.Context) error {
	return s.observe("HeadBucket", func() error {
		_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
			Bucket: aws.String(s.bucket),
		})
		return err
	})
}

func (s *S3Store) headObject(ctx context.Context, name string) (*s3.HeadObjectOutput, error) {
	var result *s3.HeadObjectOutput
	err := s.observe("HeadObject", func() (err error) {
		result, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.objectKey(name)),
		})
		return err
	})
	return result, err
}

func (s *S3Store) Close() error {
	return nil
}

// ============================================================================
// Upload
// ============================================================================

type s3Upload struct {
	store *S3Store
	name  string

	mu      sync.Mutex
	spool   *os.File
	written int64
	done    bool
}

func (u *s3Upload) Name() string {
	return u.name
}

func (u *s3Upload) Write(p []byte) (int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.done {
		return 0, os.ErrClosed
	}

	n, err := u.spool.Write(p)
	u.written += int64(n)
	if err != nil {
		return n, fmt.Errorf("failed to spool %s: %w", u.name, store.WrapNoSpace(err))
	}
	return n, nil
}

// Commit uploads the spooled content with a conditional PutObject.
func (u *s3Upload) Commit(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.done {
		return os.ErrClosed
	}
	defer u.cleanupLocked()

	if _, err := u.spool.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind spool for %s: %w", u.name, err)
	}

	err := u.store.observe("PutObject", func() error {
		_, err := u.store.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(u.store.bucket),
			Key:           aws.String(u.store.objectKey(u.name)),
			Body:          u.spool,
			ContentLength: aws.Int64(u.written),
			IfNoneMatch:   aws.String("*"),
		})
		return err
	})
	if err != nil {
		if isPreconditionFailed(err) {
			return fmt.Errorf("file %s: %w", u.name, store.ErrExists)
		}
		return fmt.Errorf("failed to put object %s: %w", u.name, err)
	}
	u.store.metrics.RecordBytes("PutObject", u.written)
	return nil
}

// Abort drops the spool file. Nothing was sent to the bucket.
func (u *s3Upload) Abort(_ context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.done {
		return nil
	}
	u.cleanupLocked()
	return nil
}

func (u *s3Upload) cleanupLocked() {
	u.done = true
	path := u.spool.Name()
	_ = u.spool.Close()
	_ = os.Remove(path)
	u.store.release(u.name)
}
