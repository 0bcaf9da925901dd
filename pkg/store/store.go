package store

import (
	"context"
	"fmt"
	"io"

	"github.com/marmos91/putd/internal/protocol/wire"
)

// ============================================================================
// Store Interface
// ============================================================================

// Store is the storage root that uploaded files are written into.
//
// A Store holds a flat namespace of file names. There are no directories and
// names are validated with ValidateName before they reach a backend.
//
// Exclusive Create:
// Create is the only way to add an entry and it must be atomic with respect
// to every other caller of the same Store: when two connections race to
// create the same name, exactly one of them gets an Upload and the other
// gets ErrExists. Backends must not implement this as exists-then-open.
//
// Visibility:
// A name becomes reserved as soon as Create succeeds. Reserved names are
// reported by List and Exists even before the upload is committed, so a
// concurrent LIST may observe a file that is still being written. Aborting
// an upload removes the reservation and any partial content.
//
// Thread Safety:
// Implementations must be safe for concurrent use by multiple goroutines.
type Store interface {
	// List returns the names under the storage root, sorted.
	List(ctx context.Context) ([]string, error)

	// Exists reports whether name is present or reserved.
	Exists(ctx context.Context, name string) (bool, error)

	// Create reserves name and returns an Upload that writes its content.
	//
	// Returns ErrExists if the name is present or reserved, ErrInvalidName
	// for names rejected by ValidateName and ErrStorageFull when the backend
	// has no room for a new entry.
	Create(ctx context.Context, name string) (Upload, error)

	// Open returns a reader over committed content.
	// Returns ErrNotFound if name does not exist.
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// Size returns the size in bytes of the entry.
	// Returns ErrNotFound if name does not exist.
	Size(ctx context.Context, name string) (uint64, error)

	// Remove deletes the entry. Removing a missing entry is not an error.
	Remove(ctx context.Context, name string) error

	// Healthcheck verifies the backend is reachable and writable.
	Healthcheck(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// Upload is an exclusive, in-progress entry returned by Store.Create.
//
// Exactly one of Commit or Abort must be called. After either returns the
// Upload must not be used again.
type Upload interface {
	io.Writer

	// Name returns the reserved file name.
	Name() string

	// Commit makes the written content durable under Name.
	//
	// If Commit fails the implementation has already removed the partial
	// content and released the reservation.
	Commit(ctx context.Context) error

	// Abort discards the written content and releases the reservation.
	// Abort is idempotent.
	Abort(ctx context.Context) error
}

// Stats describes the current usage of a storage root.
type Stats struct {
	// FileCount is the number of entries, reserved ones included.
	FileCount uint64

	// UsedBytes is the sum of all entry sizes.
	UsedBytes uint64

	// CapacityBytes is the configured limit, or 0 when unbounded.
	CapacityBytes uint64
}

// StatsReporter is implemented by stores that can report usage cheaply.
type StatsReporter interface {
	Stats(ctx context.Context) (*Stats, error)
}

// ValidateName returns ErrInvalidName wrapped with details when name cannot be
// used as an entry under the storage root.
func ValidateName(name string) error {
	if err := wire.ValidateName(name); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidName, err)
	}
	return nil
}
