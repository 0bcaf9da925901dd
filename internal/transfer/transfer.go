package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"time"

	"github.com/marmos91/putd/pkg/store"
)

// DefaultBufferSize is the chunk size used when Options.BufferSize is zero.
const DefaultBufferSize = 4096

// ErrPeerClosed is returned when the sender closes the connection before the
// declared number of bytes arrived.
var ErrPeerClosed = errors.New("peer closed connection before transfer completed")

// Outcome classifies a finished transfer.
type Outcome int

const (
	// Complete means exactly the declared number of bytes was received and
	// the upload was committed.
	Complete Outcome = iota

	// Incomplete means the transfer stopped because of a local failure
	// (storage write/commit error or a transport error other than a clean
	// close).
	Incomplete

	// Aborted means the peer went away or the transfer was cancelled.
	Aborted
)

func (o Outcome) String() string {
	switch o {
	case Complete:
		return "complete"
	case Incomplete:
		return "incomplete"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Options tunes a single Receive call.
type Options struct {
	// BufferSize is the maximum number of bytes requested per read.
	// Defaults to DefaultBufferSize.
	BufferSize int

	// OnChunk, if set, is called after every chunk is persisted with the
	// number of bytes in that chunk.
	OnChunk func(n int)
}

// Result is the byte accounting of one transfer.
type Result struct {
	Name             string
	BytesTransferred uint64
	DeclaredSize     uint64
	StartTime        time.Time
	EndTime          time.Time
	Outcome          Outcome
}

// Elapsed returns the wall-clock duration of the transfer.
func (r *Result) Elapsed() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// Rate returns the throughput in bytes per second. The second return value is
// false when no time elapsed and the rate is undefined.
func (r *Result) Rate() (float64, bool) {
	seconds := r.Elapsed().Seconds()
	if seconds <= 0 {
		return 0, false
	}
	return float64(r.BytesTransferred) / seconds, true
}

// Complete reports whether the transfer ended with the declared byte count.
func (r *Result) Complete() bool {
	return r.Outcome == Complete
}

// Receive copies exactly declaredSize bytes from src into dst.
//
// Reads never ask for more than the remaining byte count, so bytes that
// follow the payload on the same stream are left unread. Short reads are
// normal; a zero-byte read (io.EOF) before the declared size means the peer
// closed the connection.
//
// On success dst is committed and the Result has Outcome Complete. In every
// other case dst is aborted, which removes the partial entry, and the
// returned error wraps the cause: ErrPeerClosed, the read error, the storage
// error or the context error. The Result is always non-nil.
func Receive(ctx context.Context, src io.Reader, dst store.Upload, declaredSize uint64, opts Options) (*Result, error) {
	bufferSize := opts.BufferSize
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}

	result := &Result{
		Name:         dst.Name(),
		DeclaredSize: declaredSize,
		StartTime:    time.Now(),
	}

	buf := make([]byte, bufferSize)
	outcome, err := copyPayload(ctx, src, dst, buf, result, opts.OnChunk)

	if err == nil {
		if commitErr := dst.Commit(ctx); commitErr != nil {
			outcome = Incomplete
			err = fmt.Errorf("commit %s: %w", result.Name, commitErr)
		}
	}

	if err != nil {
		// Commit already cleaned up after itself; Abort is idempotent.
		if abortErr := dst.Abort(context.WithoutCancel(ctx)); abortErr != nil {
			err = errors.Join(err, fmt.Errorf("abort %s: %w", result.Name, abortErr))
		}
	}

	result.EndTime = time.Now()
	result.Outcome = outcome
	return result, err
}

func copyPayload(ctx context.Context, src io.Reader, dst io.Writer, buf []byte, result *Result, onChunk func(int)) (Outcome, error) {
	for result.BytesTransferred < result.DeclaredSize {
		if err := ctx.Err(); err != nil {
			return Aborted, err
		}

		toRead := uint64(len(buf))
		if remaining := result.DeclaredSize - result.BytesTransferred; remaining < toRead {
			toRead = remaining
		}

		n, readErr := src.Read(buf[:toRead])

		// Data returned alongside an error is still payload.
		if n > 0 {
			written, writeErr := dst.Write(buf[:n])
			result.BytesTransferred += uint64(written)
			if writeErr == nil && written < n {
				writeErr = io.ErrShortWrite
			}
			if writeErr != nil {
				return Incomplete, fmt.Errorf("write %s: %w", result.Name, writeErr)
			}
			if onChunk != nil {
				onChunk(n)
			}
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				if result.BytesTransferred == result.DeclaredSize {
					return Complete, nil
				}
				return Aborted, fmt.Errorf("%w: received %d of %d bytes",
					ErrPeerClosed, result.BytesTransferred, result.DeclaredSize)
			}
			return classifyReadError(readErr), fmt.Errorf("read payload: %w", readErr)
		}

		if n == 0 {
			// A conforming reader never returns (0, nil) for a stream socket
			// but treating it as a close avoids spinning.
			return Aborted, fmt.Errorf("%w: zero-byte read after %d of %d bytes",
				ErrPeerClosed, result.BytesTransferred, result.DeclaredSize)
		}
	}

	return Complete, nil
}

// classifyReadError maps transport failures to an outcome. Cancellation,
// resets and closed connections count as the peer going away; anything else,
// timeouts included, is a failure to finish the transfer.
func classifyReadError(err error) Outcome {
	switch {
	case errors.Is(err, context.Canceled),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, syscall.ECONNRESET):
		return Aborted
	default:
		return Incomplete
	}
}

// ReceiveFile reserves name in st and receives declaredSize bytes into it.
//
// Errors from Create (store.ErrExists and friends) are returned with a nil
// Result since no payload byte has been read.
func ReceiveFile(ctx context.Context, src io.Reader, st store.Store, name string, declaredSize uint64, opts Options) (*Result, error) {
	upload, err := st.Create(ctx, name)
	if err != nil {
		return nil, err
	}
	return Receive(ctx, src, upload, declaredSize, opts)
}
