package put

import (
	"context"
	"errors"
	"net"
)

// chunkReader feeds upload payload to the transfer engine, arming the chunk
// timeout before every read.
type chunkReader struct {
	conn *PutConnection
	ctx  context.Context
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if err := r.conn.armReadDeadline(r.ctx, r.conn.server.config.Timeouts.Chunk); err != nil {
		return 0, err
	}

	n, err := r.conn.conn.Read(p)
	if err != nil && r.ctx.Err() != nil {
		// The deadline was forced by a shutdown interrupt.
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			err = r.ctx.Err()
		}
	}
	return n, err
}
