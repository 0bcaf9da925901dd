package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/marmos91/putd/pkg/store"
)

// healthProbePrefix names the temporary directories written by Healthcheck.
// List only reports regular files, so a probe never shows up as an entry.
const healthProbePrefix = ".putd-health-"

// FSStore implements store.Store on a local directory.
//
// Every entry is a regular file directly under the base directory, named
// exactly as the client announced it. Exclusive create relies on the kernel:
// files are opened with O_CREATE|O_EXCL, so two connections racing on the
// same name can never both succeed, even across processes sharing the
// directory.
//
// In-progress uploads are written in place and are therefore visible to
// List while they are being received. Aborting an upload deletes the file.
//
// Thread Safety:
// All operations are safe for concurrent use.
type FSStore struct {
	basePath string
	fileMode os.FileMode
}

// New creates a filesystem store rooted at basePath.
//
// The directory (and any missing parents) is created with permissions 0755
// if it does not exist yet.
//
// Context Cancellation:
// This operation checks the context before touching the filesystem.
func New(ctx context.Context, basePath string) (*FSStore, error) {
	// ========================================================================
	// Step 1: Check context before filesystem operation
	// ========================================================================

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if basePath == "" {
		return nil, fmt.Errorf("base path is required")
	}

	// ========================================================================
	// Step 2: Create the storage root if it doesn't exist
	// ========================================================================

	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage root %s: %w", basePath, err)
	}

	return &FSStore{
		basePath: basePath,
		fileMode: 0644,
	}, nil
}

// BasePath returns the storage root directory.
func (s *FSStore) BasePath() string {
	return s.basePath
}

func (s *FSStore) path(name string) string {
	return filepath.Join(s.basePath, name)
}

// List returns the regular files under the storage root, sorted by name.
func (s *FSStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read storage root: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		names = append(names, entry.Name())
	}

	sort.Strings(names)
	return names, nil
}

// Exists reports whether a file with the given name is present.
func (s *FSStore) Exists(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := store.ValidateName(name); err != nil {
		return false, err
	}

	_, err := os.Lstat(s.path(name))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat %s: %w", name, err)
}

// Create opens name for writing with O_EXCL.
//
// The file exists on disk from this point on; it is either completed by
// Commit or deleted by Abort.
func (s *FSStore) Create(ctx context.Context, name string) (store.Upload, error) {
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
	// Step 2: Atomically create the file
	// ========================================================================

	path := s.path(name)
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, s.fileMode)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("file %s: %w", name, store.ErrExists)
		}
		return nil, fmt.Errorf("failed to create %s: %w", name, store.WrapNoSpace(err))
	}

	return &fsUpload{name: name, path: path, file: file}, nil
}

// Open returns the file for reading.
func (s *FSStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := store.ValidateName(name); err != nil {
		return nil, err
	}

	file, err := os.Open(s.path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("file %s: %w", name, store.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	return file, nil
}

// Size returns the file size in bytes.
func (s *FSStore) Size(ctx context.Context, name string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := store.ValidateName(name); err != nil {
		return 0, err
	}

	info, err := os.Stat(s.path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("file %s: %w", name, store.ErrNotFound)
		}
		return 0, fmt.Errorf("failed to stat %s: %w", name, err)
	}
	return uint64(info.Size()), nil
}

// Remove deletes the file. A missing file is not an error.
func (s *FSStore) Remove(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := store.ValidateName(name); err != nil {
		return err
	}

	if err := os.Remove(s.path(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", name, err)
	}
	return nil
}

// Healthcheck creates and removes a probe directory under the storage root.
// Creating it needs the same write permission on the root as an upload.
func (s *FSStore) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	probe, err := os.MkdirTemp(s.basePath, healthProbePrefix+"*")
	if err != nil {
		return fmt.Errorf("storage root %s is not writable: %w", s.basePath, store.WrapNoSpace(err))
	}

	if err := os.Remove(probe); err != nil {
		return fmt.Errorf("failed to remove health probe: %w", err)
	}
	return nil
}

// Stats counts the listed files and sums their sizes.
func (s *FSStore) Stats(ctx context.Context) (*store.Stats, error) {
	names, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	stats := &store.Stats{FileCount: uint64(len(names))}
	for _, name := range names {
		info, err := os.Lstat(s.path(name))
		if err != nil {
			// Removed between ReadDir and Lstat.
			continue
		}
		stats.UsedBytes += uint64(info.Size())
	}
	return stats, nil
}

// Close is a no-op; the filesystem store holds no open resources.
func (s *FSStore) Close() error {
	return nil
}

// ============================================================================
// Upload
// ============================================================================

type fsUpload struct {
	name string
	path string

	mu   sync.Mutex
	file *os.File
	done bool
}

func (u *fsUpload) Name() string {
	return u.name
}

func (u *fsUpload) Write(p []byte) (int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.done {
		return 0, os.ErrClosed
	}

	n, err := u.file.Write(p)
	if err != nil {
		return n, fmt.Errorf("failed to write %s: %w", u.name, store.WrapNoSpace(err))
	}
	return n, nil
}

// Commit flushes the file to disk and closes it. On failure the partial file
// is removed.
func (u *fsUpload) Commit(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.done {
		return os.ErrClosed
	}

	if err := ctx.Err(); err != nil {
		u.discardLocked()
		return err
	}

	syncErr := u.file.Sync()
	closeErr := u.file.Close()
	u.done = true

	if err := errors.Join(syncErr, closeErr); err != nil {
		_ = os.Remove(u.path)
		return fmt.Errorf("failed to commit %s: %w", u.name, store.WrapNoSpace(err))
	}
	return nil
}

// Abort closes and deletes the partial file.
func (u *fsUpload) Abort(_ context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.done {
		return nil
	}
	return u.discardLocked()
}

func (u *fsUpload) discardLocked() error {
	u.done = true
	_ = u.file.Close()
	if err := os.Remove(u.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove partial file %s: %w", u.name, err)
	}
	return nil
}
