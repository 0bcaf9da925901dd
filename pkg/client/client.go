// Package client speaks the PUT protocol to a putd server.
//
// A Client owns one connection and issues commands sequentially; it is not
// safe for concurrent use.
//
//	c, err := client.Dial(ctx, "localhost:13000")
//	if err != nil { ... }
//	defer c.Close()
//
//	names, err := c.List(ctx)
//	result, err := c.Put(ctx, "report.pdf", size, f)
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/marmos91/putd/internal/protocol/wire"
	"github.com/marmos91/putd/internal/transfer"
)

// Client is a connection to a putd server.
type Client struct {
	conn       net.Conn
	buf        []byte
	bufferSize int
	timeout    time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithBufferSize sets the payload chunk size. Defaults to 4096.
func WithBufferSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.bufferSize = n
		}
	}
}

// WithTimeout bounds every reply read. Zero (the default) waits forever.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// Dial connects to addr.
func Dial(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return New(conn, opts...), nil
}

// New wraps an established connection.
func New(conn net.Conn, opts ...Option) *Client {
	c := &Client{
		conn:       conn,
		buf:        make([]byte, wire.MaxMessageSize),
		bufferSize: transfer.DefaultBufferSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Conn returns the underlying connection, e.g. for TCP_INFO sampling.
func (c *Client) Conn() net.Conn {
	return c.conn
}

// Close closes the connection without sending QUIT.
func (c *Client) Close() error {
	return c.conn.Close()
}

// List returns the names stored on the server. An empty storage root yields
// an empty slice.
func (c *Client) List(ctx context.Context) ([]string, error) {
	if err := c.send(ctx, wire.List()); err != nil {
		return nil, err
	}
	msg, err := c.receive(ctx)
	if err != nil {
		return nil, err
	}
	names, err := wire.DecodeFileList(msg)
	if err != nil {
		return nil, wrapServerError(err)
	}
	return names, nil
}

// PutOption configures a single upload.
type PutOption func(*putOptions)

type putOptions struct {
	onChunk func(n int)
}

// WithChunkHook calls fn after every payload chunk is written to the socket.
func WithChunkHook(fn func(n int)) PutOption {
	return func(o *putOptions) {
		o.onChunk = fn
	}
}

// Put uploads size bytes read from r under name.
//
// The returned Result describes what was sent; its Outcome is Complete only
// when the server confirmed the upload. A name already present on the server
// yields ErrFileExists before any payload byte is sent. When the payload
// could not be delivered or the server did not confirm it, the error wraps
// ErrUploadFailed and the connection should be closed.
func (c *Client) Put(ctx context.Context, name string, size uint64, r io.Reader, opts ...PutOption) (*transfer.Result, error) {
	var o putOptions
	for _, opt := range opts {
		opt(&o)
	}

	// Step 1: Announce
	if err := c.send(ctx, wire.Put(name, size)); err != nil {
		return nil, err
	}

	// Step 2: Wait for the reservation
	msg, err := c.receive(ctx)
	if err != nil {
		return nil, err
	}
	if err := wire.DecodeAck(msg); err != nil {
		return nil, wrapServerError(err)
	}

	// Step 3: Stream
	result := &transfer.Result{
		Name:         name,
		DeclaredSize: size,
		StartTime:    time.Now(),
		Outcome:      transfer.Incomplete,
	}
	sendErr := c.stream(ctx, r, result, o.onChunk)
	if sendErr != nil {
		result.EndTime = time.Now()
		return result, fmt.Errorf("%w: %w", ErrUploadFailed, sendErr)
	}

	// Step 4: Final verdict
	msg, err = c.receive(ctx)
	result.EndTime = time.Now()
	if err != nil {
		return result, fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	if err := wire.DecodeResult(msg); err != nil {
		return result, fmt.Errorf("%w: %w", ErrUploadFailed, wrapServerError(err))
	}

	result.Outcome = transfer.Complete
	return result, nil
}

func (c *Client) stream(ctx context.Context, r io.Reader, result *transfer.Result, onChunk func(int)) error {
	buf := make([]byte, c.bufferSize)
	for result.BytesTransferred < result.DeclaredSize {
		if err := ctx.Err(); err != nil {
			result.Outcome = transfer.Aborted
			return err
		}

		toRead := uint64(len(buf))
		if remaining := result.DeclaredSize - result.BytesTransferred; remaining < toRead {
			toRead = remaining
		}

		n, readErr := r.Read(buf[:toRead])
		if n > 0 {
			written, err := c.conn.Write(buf[:n])
			result.BytesTransferred += uint64(written)
			if err != nil {
				return fmt.Errorf("send payload: %w", err)
			}
			if onChunk != nil {
				onChunk(n)
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) && result.BytesTransferred == result.DeclaredSize {
				return nil
			}
			if errors.Is(readErr, io.EOF) {
				return fmt.Errorf("source ended after %d of %d bytes", result.BytesTransferred, result.DeclaredSize)
			}
			return fmt.Errorf("read source: %w", readErr)
		}
	}
	return nil
}

// Quit sends QUIT and closes the connection. The server does not answer.
func (c *Client) Quit(ctx context.Context) error {
	sendErr := c.send(ctx, wire.Quit())
	closeErr := c.conn.Close()
	if sendErr != nil {
		return sendErr
	}
	return closeErr
}

// Raw sends msg verbatim and returns the reply. Meant for tooling and tests.
func (c *Client) Raw(ctx context.Context, msg []byte) ([]byte, error) {
	if err := c.write(ctx, msg); err != nil {
		return nil, err
	}
	return c.receive(ctx)
}

func (c *Client) send(ctx context.Context, cmd wire.Command) error {
	msg, err := cmd.Encode()
	if err != nil {
		return err
	}
	return c.write(ctx, msg)
}

func (c *Client) write(ctx context.Context, msg []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
	} else {
		_ = c.conn.SetWriteDeadline(time.Time{})
	}
	if _, err := c.conn.Write(msg); err != nil {
		return fmt.Errorf("send command: %w", err)
	}
	return nil
}

// receive reads one reply with a single read.
func (c *Client) receive(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var deadline time.Time
	if c.timeout > 0 {
		deadline = time.Now().Add(c.timeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("set read deadline: %w", err)
	}

	n, err := c.conn.Read(c.buf)
	if n > 0 {
		msg := make([]byte, n)
		copy(msg, c.buf[:n])
		return msg, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return nil, ErrConnectionClosed
	}
	return nil, fmt.Errorf("read reply: %w", err)
}
