package put

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/marmos91/putd/internal/logger"
	"github.com/marmos91/putd/internal/protocol/wire"
	"github.com/marmos91/putd/internal/transfer"
	"github.com/marmos91/putd/pkg/diag"
	"github.com/marmos91/putd/pkg/journal"
	"github.com/marmos91/putd/pkg/store"
)

// PutConnection serves the commands of one client.
//
// Commands are strictly sequential: a command is read, handled and answered
// before the next one is read. The connection ends on QUIT, when the client
// closes its side, on a transport error or timeout, after an upload that did
// not complete, or on server shutdown.
type PutConnection struct {
	server *PutAdapter
	conn   net.Conn
	addr   string
	buf    []byte

	// deadlineMu orders read-deadline updates against shutdown interrupts.
	deadlineMu sync.Mutex
}

// NewPutConnection wraps conn for serving by server.
func NewPutConnection(server *PutAdapter, conn net.Conn) *PutConnection {
	return &PutConnection{
		server: server,
		conn:   conn,
		addr:   conn.RemoteAddr().String(),
		buf:    make([]byte, wire.MaxMessageSize),
	}
}

// Serve handles commands until the connection ends. It recovers panics so a
// single misbehaving connection cannot crash the server.
//
// Cancelling ctx interrupts a blocked read; an upload in progress is aborted
// and its partial entry removed.
func (c *PutConnection) Serve(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic in connection handler from %s: %v", c.addr, r)
		}
		_ = c.conn.Close()
	}()

	stop := context.AfterFunc(ctx, c.interrupt)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug("Connection from %s closed due to context cancellation", c.addr)
			return
		case <-c.server.shutdown:
			logger.Debug("Connection from %s closed due to server shutdown", c.addr)
			return
		default:
		}

		done, err := c.handleCommand(ctx)
		if err != nil {
			var netErr net.Error
			switch {
			case errors.Is(err, io.EOF):
				logger.Debug("Connection from %s closed by client", c.addr)
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				logger.Debug("Connection from %s cancelled: %v", c.addr, err)
			case errors.As(err, &netErr) && netErr.Timeout():
				logger.Info("Connection from %s timed out: %v", c.addr, err)
			default:
				logger.Warn("Error handling command from %s: %v", c.addr, err)
			}
			return
		}
		if done {
			return
		}
	}
}

// interrupt unblocks any pending read.
func (c *PutConnection) interrupt() {
	c.deadlineMu.Lock()
	defer c.deadlineMu.Unlock()
	_ = c.conn.SetReadDeadline(time.Now())
}

// armReadDeadline sets the read deadline for the next read. A zero timeout
// clears it. Fails if ctx is already cancelled so a pending interrupt is
// never overwritten.
func (c *PutConnection) armReadDeadline(ctx context.Context, timeout time.Duration) error {
	c.deadlineMu.Lock()
	defer c.deadlineMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return fmt.Errorf("set read deadline: %w", err)
	}
	return nil
}

// readCommand reads one control message. A zero-byte read is io.EOF.
func (c *PutConnection) readCommand(ctx context.Context) ([]byte, error) {
	if err := c.armReadDeadline(ctx, c.server.config.Timeouts.Idle); err != nil {
		return nil, err
	}

	n, err := c.conn.Read(c.buf)
	if n > 0 {
		return c.buf[:n], nil
	}
	if err == nil {
		err = io.EOF
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return nil, err
}

// handleCommand reads, dispatches and answers one command. done reports
// whether the connection must be closed without error.
func (c *PutConnection) handleCommand(ctx context.Context) (done bool, err error) {
	// Step 1: Wait for the next command
	line, err := c.readCommand(ctx)
	if err != nil {
		return true, err
	}

	// Step 2: Throttle
	if !c.server.limiter.Allow() {
		logger.Debug("Throttling command from %s", c.addr)
		waitStart := time.Now()
		if err := c.server.limiter.Wait(ctx); err != nil {
			return true, err
		}
		c.server.metrics.RecordThrottled(time.Since(waitStart))
	}

	// Step 3: Parse and dispatch
	start := time.Now()
	cmd := wire.ParseCommand(line)
	logger.Debug("Command from %s: %s", c.addr, cmd.Kind)

	switch cmd.Kind {
	case wire.CommandList:
		return false, c.reply(cmd.Kind, start, c.handleList(ctx))

	case wire.CommandPut:
		return c.handlePut(ctx, cmd, start)

	case wire.CommandQuit:
		logger.Info("Client %s sent QUIT", c.addr)
		c.server.metrics.RecordCommand(cmd.Kind.String(), time.Since(start), "")
		return true, nil

	default:
		logger.Debug("Invalid command from %s: %q (%s)", c.addr, cmd.Raw, cmd.Reason)
		return false, c.reply(cmd.Kind, start, wire.Error(cmd.Reason))
	}
}

// handleList builds the listing reply, falling back to an error reply when
// the listing cannot be read or does not fit in one message.
func (c *PutConnection) handleList(ctx context.Context) wire.Reply {
	names, err := c.server.store.List(ctx)
	if err != nil {
		logger.Warn("LIST from %s failed: %v", c.addr, err)
		return wire.Error(wire.ReasonListFailed)
	}

	reply := wire.FileList(names)
	if _, err := wire.EncodeReply(reply); errors.Is(err, wire.ErrMessageTooLarge) {
		logger.Warn("LIST from %s: %d names do not fit in one reply", c.addr, len(names))
		return wire.Error(wire.ReasonListTooLarge)
	}
	return reply
}

// handlePut reserves the name, acknowledges and receives the payload.
func (c *PutConnection) handlePut(ctx context.Context, cmd wire.Command, start time.Time) (bool, error) {
	logger.Info("Client %s uploading %s (%d bytes)", c.addr, cmd.Name, cmd.DeclaredSize)

	// Step 1: Admission checks, before any payload byte is read
	if limit := c.server.config.MaxUploadSize; limit > 0 && cmd.DeclaredSize > limit {
		logger.Info("Rejected %s from %s: %d bytes exceeds limit of %d",
			cmd.Name, c.addr, cmd.DeclaredSize, limit)
		return false, c.reply(cmd.Kind, start, wire.Error(wire.ReasonFileTooLarge))
	}

	// Step 2: Exclusive reservation
	upload, err := c.server.store.Create(ctx, cmd.Name)
	if err != nil {
		reason := createFailureReason(err)
		if reason == wire.ReasonFileExists {
			logger.Info("Rejected %s from %s: file exists", cmd.Name, c.addr)
		} else {
			logger.Warn("Failed to create %s for %s: %v", cmd.Name, c.addr, err)
		}
		return false, c.reply(cmd.Kind, start, wire.Error(reason))
	}

	// Step 3: Acknowledge
	if err := c.writeReply(wire.OK()); err != nil {
		_ = upload.Abort(context.WithoutCancel(ctx))
		return true, err
	}

	// Step 4: Receive
	collector := diag.NewCollector(c.server.sampler, c.conn, diag.WithMaxSamples(c.server.config.MaxSamples))
	result, err := transfer.Receive(ctx, &chunkReader{conn: c, ctx: ctx}, upload, cmd.DeclaredSize, transfer.Options{
		BufferSize: c.server.config.BufferSize,
		OnChunk: func(n int) {
			c.server.metrics.RecordBytesReceived(n)
			collector.Capture()
		},
	})

	c.server.metrics.RecordTransfer(result.Outcome.String(), result.BytesTransferred, result.Elapsed())
	c.server.recordTransfer(ctx, journal.NewRecord(result, c.addr, err, collector.Samples()))

	// Step 5: Report
	if err != nil {
		logger.Warn("Upload of %s from %s failed (%s, %d of %d bytes): %v",
			cmd.Name, c.addr, result.Outcome, result.BytesTransferred, result.DeclaredSize, err)
		c.server.metrics.RecordCommand(cmd.Kind.String(), time.Since(start), result.Outcome.String())
		// Unread payload would be parsed as commands.
		return true, nil
	}

	if rate, ok := result.Rate(); ok {
		logger.Info("Upload of %s from %s complete: %d bytes in %v (%.2f B/s)",
			cmd.Name, c.addr, result.BytesTransferred, result.Elapsed(), rate)
	} else {
		logger.Info("Upload of %s from %s complete: %d bytes", cmd.Name, c.addr, result.BytesTransferred)
	}
	return false, c.reply(cmd.Kind, start, wire.UploadComplete())
}

// createFailureReason maps a store.Create error to its protocol reason.
func createFailureReason(err error) string {
	switch {
	case errors.Is(err, store.ErrExists):
		return wire.ReasonFileExists
	case errors.Is(err, store.ErrInvalidName):
		return wire.ReasonMalformedPut
	case errors.Is(err, store.ErrStorageFull):
		return wire.ReasonStorageFull
	default:
		return wire.ReasonStorageError
	}
}

// reply writes r and records the command.
func (c *PutConnection) reply(kind wire.CommandKind, start time.Time, r wire.Reply) error {
	reason := ""
	if r.Kind == wire.ReplyKindError {
		reason = r.Reason
	}
	c.server.metrics.RecordCommand(kind.String(), time.Since(start), reason)
	return c.writeReply(r)
}

// writeReply encodes r and sends it in a single write.
func (c *PutConnection) writeReply(r wire.Reply) error {
	msg, err := wire.EncodeReply(r)
	if err != nil {
		return fmt.Errorf("encode reply: %w", err)
	}

	if timeout := c.server.config.Timeouts.Write; timeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}

	if _, err := c.conn.Write(msg); err != nil {
		return fmt.Errorf("write reply: %w", err)
	}
	return nil
}
