package wire

import (
	"fmt"
	"strings"
)

// ReplyKind tags the Reply variant.
type ReplyKind int

const (
	ReplyKindOK ReplyKind = iota
	ReplyKindError
	ReplyKindFileList
	ReplyKindNoFiles
	ReplyKindUploadComplete
)

// Reply is one server response.
type Reply struct {
	Kind   ReplyKind
	Reason string   // ReplyKindError
	Names  []string // ReplyKindFileList
}

func OK() Reply { return Reply{Kind: ReplyKindOK} }

func Error(reason string) Reply { return Reply{Kind: ReplyKindError, Reason: reason} }

func NoFiles() Reply { return Reply{Kind: ReplyKindNoFiles} }

func UploadComplete() Reply { return Reply{Kind: ReplyKindUploadComplete} }

// FileList builds a listing reply; an empty listing becomes NoFiles.
func FileList(names []string) Reply {
	if len(names) == 0 {
		return NoFiles()
	}
	return Reply{Kind: ReplyKindFileList, Names: names}
}

// EncodeReply renders r in its wire form.
//
// A reply that would not fit in MaxMessageSize returns ErrMessageTooLarge;
// the peer reads replies with a single buffer of that size and would
// otherwise see a truncated message.
func EncodeReply(r Reply) ([]byte, error) {
	var msg string
	switch r.Kind {
	case ReplyKindOK:
		msg = ReplyOK
	case ReplyKindError:
		msg = ErrorPrefix + r.Reason
	case ReplyKindNoFiles:
		msg = NoFilesSentinel
	case ReplyKindUploadComplete:
		msg = ReplyUploadComplete
	case ReplyKindFileList:
		msg = strings.Join(r.Names, "\n")
	default:
		return nil, fmt.Errorf("unknown reply kind %d", r.Kind)
	}

	if len(msg) > MaxMessageSize {
		return nil, fmt.Errorf("reply of %d bytes: %w", len(msg), ErrMessageTooLarge)
	}
	return []byte(msg), nil
}

// IsError reports whether msg is an ERROR reply and returns its reason.
func IsError(msg []byte) (string, bool) {
	s := string(msg)
	if !strings.HasPrefix(s, ErrorPrefix) {
		return "", false
	}
	return strings.TrimPrefix(s, ErrorPrefix), true
}

// DecodeAck interprets the server's answer to a PUT header.
// It returns nil for OK, a *ServerError for ERROR replies and
// ErrUnexpectedReply for anything else.
func DecodeAck(msg []byte) error {
	if reason, ok := IsError(msg); ok {
		return &ServerError{Reason: reason}
	}
	if string(msg) != ReplyOK {
		return fmt.Errorf("%w: %q", ErrUnexpectedReply, msg)
	}
	return nil
}

// DecodeResult interprets the server's answer after a payload was sent.
func DecodeResult(msg []byte) error {
	if reason, ok := IsError(msg); ok {
		return &ServerError{Reason: reason}
	}
	if string(msg) != ReplyUploadComplete {
		return fmt.Errorf("%w: %q", ErrUnexpectedReply, msg)
	}
	return nil
}

// DecodeFileList interprets a LIST answer. The no-files sentinel decodes to
// an empty, non-nil slice.
func DecodeFileList(msg []byte) ([]string, error) {
	if reason, ok := IsError(msg); ok {
		return nil, &ServerError{Reason: reason}
	}
	s := string(msg)
	if s == NoFilesSentinel {
		return []string{}, nil
	}
	if s == "" {
		return nil, fmt.Errorf("%w: empty file list", ErrUnexpectedReply)
	}
	return strings.Split(s, "\n"), nil
}

// ServerError is an ERROR reply decoded on the client side.
type ServerError struct {
	Reason string
}

func (e *ServerError) Error() string {
	return "server error: " + e.Reason
}
