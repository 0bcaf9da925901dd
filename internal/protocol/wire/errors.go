package wire

import "errors"

var (
	// ErrMessageTooLarge is returned when a control message does not fit in
	// MaxMessageSize bytes.
	ErrMessageTooLarge = errors.New("message exceeds buffer size")

	// ErrInvalidName is returned for names that are empty, "." / "..", or
	// contain path separators, NUL or whitespace.
	ErrInvalidName = errors.New("invalid file name")

	// ErrUnexpectedReply is returned by the client-side decoders when the
	// server answered with something the protocol does not allow here.
	ErrUnexpectedReply = errors.New("unexpected reply")
)
