package adapter

import (
	"context"

	"github.com/marmos91/putd/pkg/store"
)

// Adapter represents a protocol-specific server adapter that can be managed by PutServer.
//
// Each adapter exposes a wire protocol over the storage root and provides a
// unified interface for lifecycle management. All adapters share the same
// store, so an exclusive create on one adapter is visible to every other.
//
// Lifecycle:
//  1. Creation: Adapter is created with protocol-specific configuration
//  2. Store injection: SetStore() provides the shared storage root
//  3. Startup: Serve() starts the protocol server and blocks until shutdown
//  4. Shutdown: Stop() initiates graceful shutdown with timeout
//
// Thread safety:
// Implementations must be safe for concurrent use. SetStore() is called
// once before Serve(), but Stop() may be called concurrently with Serve().
type Adapter interface {
	// Serve starts the protocol server and blocks until the context is cancelled
	// or an unrecoverable error occurs.
	//
	// When the context is cancelled, Serve must initiate graceful shutdown:
	//   - Stop accepting new connections
	//   - Wait for active transfers to finish (with timeout)
	//   - Return nil
	//
	// If Serve returns before context cancellation, PutServer treats it as
	// a fatal error and stops all other adapters.
	Serve(ctx context.Context) error

	// SetStore injects the storage root.
	//
	// Called exactly once by PutServer before Serve(), no synchronization needed.
	SetStore(st store.Store)

	// Stop initiates graceful shutdown of the protocol server.
	//
	// Must be idempotent and safe to call concurrently with Serve(). The
	// context bounds how long Stop waits for active connections.
	Stop(ctx context.Context) error

	// Protocol returns the human-readable protocol name for logging and metrics.
	Protocol() string

	// Port returns the TCP port the adapter is configured on.
	//
	// Returns 0 when the adapter uses dynamic port allocation.
	Port() int
}
