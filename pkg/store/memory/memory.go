package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/marmos91/putd/pkg/store"
)

// MemoryStore implements store.Store in process memory.
//
// It's designed for tests and ephemeral deployments. Content is lost when
// the process exits.
//
// Characteristics:
//   - Exclusive create is a map insert under a mutex
//   - Reserved names are listed like committed ones, matching the
//     filesystem store where in-progress files are visible
//   - An optional byte limit makes writes fail with store.ErrStorageFull
//
// Thread Safety:
// All operations are protected by a sync.RWMutex. Data is copied on write so
// callers can reuse their buffers.
type MemoryStore struct {
	mu sync.RWMutex

	// files holds both committed and in-progress entries keyed by name
	files map[string]*entry

	// used is the sum of len(entry.data) over files
	used uint64

	// maxSize bounds used; 0 means unlimited
	maxSize uint64
}

type entry struct {
	data      []byte
	committed bool
}

// New creates an empty in-memory store.
//
// maxSizeBytes caps the total content held by the store; 0 disables the cap.
func New(ctx context.Context, maxSizeBytes uint64) (*MemoryStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &MemoryStore{
		files:   make(map[string]*entry),
		maxSize: maxSizeBytes,
	}, nil
}

// List returns every name in the store, reserved ones included.
func (s *MemoryStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	names := make([]string, 0, len(s.files))
	for name := range s.files {
		names = append(names, name)
	}
	s.mu.RUnlock()

	sort.Strings(names)
	return names, nil
}

func (s *MemoryStore) Exists(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := store.ValidateName(name); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.files[name]
	return ok, nil
}

// Create reserves name. The check and the insert happen under the same lock.
func (s *MemoryStore) Create(ctx context.Context, name string) (store.Upload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := store.ValidateName(name); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[name]; ok {
		return nil, fmt.Errorf("file %s: %w", name, store.ErrExists)
	}

	e := &entry{}
	s.files[name] = e
	return &memoryUpload{store: s, name: name, entry: e}, nil
}

// Open returns a reader over a snapshot of committed content.
func (s *MemoryStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.files[name]
	if !ok || !e.committed {
		return nil, fmt.Errorf("file %s: %w", name, store.ErrNotFound)
	}

	snapshot := make([]byte, len(e.data))
	copy(snapshot, e.data)
	return io.NopCloser(bytes.NewReader(snapshot)), nil
}

func (s *MemoryStore) Size(ctx context.Context, name string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.files[name]
	if !ok {
		return 0, fmt.Errorf("file %s: %w", name, store.ErrNotFound)
	}
	return uint64(len(e.data)), nil
}

func (s *MemoryStore) Remove(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(name)
	return nil
}

func (s *MemoryStore) removeLocked(name string) {
	if e, ok := s.files[name]; ok {
		s.used -= uint64(len(e.data))
		delete(s.files, name)
	}
}

// Healthcheck always succeeds unless ctx is done.
func (s *MemoryStore) Healthcheck(ctx context.Context) error {
	return ctx.Err()
}

// Stats reports usage computed from the tracked byte count.
func (s *MemoryStore) Stats(ctx context.Context) (*store.Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return &store.Stats{
		FileCount:     uint64(len(s.files)),
		UsedBytes:     s.used,
		CapacityBytes: s.maxSize,
	}, nil
}

// Close drops all content.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.files = make(map[string]*entry)
	s.used = 0
	return nil
}

// ============================================================================
// Upload
// ============================================================================

type memoryUpload struct {
	store *MemoryStore
	name  string
	entry *entry
	done  bool
}

func (u *memoryUpload) Name() string {
	return u.name
}

func (u *memoryUpload) Write(p []byte) (int, error) {
	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.done {
		return 0, os.ErrClosed
	}
	if s.files[u.name] != u.entry {
		return 0, fmt.Errorf("file %s was removed: %w", u.name, store.ErrNotFound)
	}

	if s.maxSize > 0 && s.used+uint64(len(p)) > s.maxSize {
		return 0, fmt.Errorf("writing %s: %w", u.name, store.ErrStorageFull)
	}

	u.entry.data = append(u.entry.data, p...)
	s.used += uint64(len(p))
	return len(p), nil
}

func (u *memoryUpload) Commit(ctx context.Context) error {
	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.done {
		return os.ErrClosed
	}
	u.done = true

	if s.files[u.name] != u.entry {
		return fmt.Errorf("file %s was removed: %w", u.name, store.ErrNotFound)
	}
	if err := ctx.Err(); err != nil {
		s.removeLocked(u.name)
		return err
	}

	u.entry.committed = true
	return nil
}

func (u *memoryUpload) Abort(_ context.Context) error {
	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.done {
		return nil
	}
	u.done = true

	// Only drop the entry if it is still ours; Close may have reset the map.
	if s.files[u.name] == u.entry {
		s.removeLocked(u.name)
	}
	return nil
}
