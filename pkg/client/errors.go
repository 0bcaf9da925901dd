package client

import (
	"errors"
	"fmt"

	"github.com/marmos91/putd/internal/protocol/wire"
)

var (
	// ErrFileExists is returned by Put when the name is already taken.
	ErrFileExists = errors.New("file already exists on server")

	// ErrUploadFailed is returned by Put when the payload was not confirmed.
	ErrUploadFailed = errors.New("upload failed")

	// ErrConnectionClosed is returned when the server closed the connection
	// instead of replying.
	ErrConnectionClosed = errors.New("connection closed by server")
)

// ServerError is an ERROR reply from the server.
type ServerError = wire.ServerError

// wrapServerError adds ErrFileExists to FILE_EXISTS replies so callers can
// test with errors.Is.
func wrapServerError(err error) error {
	var serverErr *ServerError
	if errors.As(err, &serverErr) && serverErr.Reason == wire.ReasonFileExists {
		return fmt.Errorf("%w: %w", ErrFileExists, err)
	}
	return err
}
