package wire

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		kind   CommandKind
		file   string
		size   uint64
		reason string
	}{
		{name: "list", input: "LIST", kind: CommandList},
		{name: "list lowercase", input: "list", kind: CommandList},
		{name: "list extra tokens", input: "LIST everything now", kind: CommandList},
		{name: "quit mixed case", input: "QuIt", kind: CommandQuit},
		{name: "put", input: "PUT a.txt 11", kind: CommandPut, file: "a.txt", size: 11},
		{name: "put lowercase", input: "put a.txt 0", kind: CommandPut, file: "a.txt", size: 0},
		{name: "put surrounding whitespace", input: "  PUT\ta.txt   5\n", kind: CommandPut, file: "a.txt", size: 5},
		{name: "put max uint64", input: "PUT big 18446744073709551615", kind: CommandPut, file: "big", size: ^uint64(0)},
		{name: "empty", input: "", kind: CommandInvalid, reason: ReasonUnknownCommand},
		{name: "whitespace only", input: "   ", kind: CommandInvalid, reason: ReasonUnknownCommand},
		{name: "unknown verb", input: "GET a.txt", kind: CommandInvalid, reason: ReasonUnknownCommand},
		{name: "bare put", input: "PUT", kind: CommandInvalid, reason: ReasonMalformedPut},
		{name: "put non utf8 name", input: "PUT \xff\xfe.bin 1", kind: CommandInvalid, reason: ReasonMalformedPut},
		{name: "put missing size", input: "PUT a.txt", kind: CommandInvalid, reason: ReasonMalformedPut},
		{name: "put too many tokens", input: "PUT a b 3", kind: CommandInvalid, reason: ReasonMalformedPut},
		{name: "put negative size", input: "PUT a.txt -1", kind: CommandInvalid, reason: ReasonMalformedPut},
		{name: "put non numeric size", input: "PUT a.txt ten", kind: CommandInvalid, reason: ReasonMalformedPut},
		{name: "put overflowing size", input: "PUT a.txt 18446744073709551616", kind: CommandInvalid, reason: ReasonMalformedPut},
		{name: "put path traversal", input: "PUT ../etc/passwd 3", kind: CommandInvalid, reason: ReasonMalformedPut},
		{name: "put dotdot", input: "PUT .. 3", kind: CommandInvalid, reason: ReasonMalformedPut},
		{name: "put backslash", input: `PUT a\b 3`, kind: CommandInvalid, reason: ReasonMalformedPut},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := ParseCommand([]byte(tt.input))
			assert.Equal(t, tt.kind, cmd.Kind)
			switch tt.kind {
			case CommandPut:
				assert.Equal(t, tt.file, cmd.Name)
				assert.Equal(t, tt.size, cmd.DeclaredSize)
			case CommandInvalid:
				assert.Equal(t, tt.reason, cmd.Reason)
				assert.Equal(t, tt.input, cmd.Raw)
			}
		})
	}
}

func TestCommandEncodeRoundTrip(t *testing.T) {
	for _, cmd := range []Command{List(), Quit(), Put("report.pdf", 1024)} {
		data, err := cmd.Encode()
		require.NoError(t, err)
		assert.Equal(t, cmd, ParseCommand(data))
	}
}

func TestCommandEncodeRejectsBadInput(t *testing.T) {
	_, err := Put("a/b", 1).Encode()
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = Put(strings.Repeat("x", MaxMessageSize), 1).Encode()
	assert.ErrorIs(t, err, ErrMessageTooLarge)

	_, err = ParseCommand([]byte("nope")).Encode()
	assert.Error(t, err)
}

func TestEncodeReply(t *testing.T) {
	tests := []struct {
		reply Reply
		want  string
	}{
		{OK(), "OK"},
		{Error(ReasonFileExists), "ERROR: FILE_EXISTS"},
		{UploadComplete(), "SUCCESS: UPLOAD_COMPLETE"},
		{FileList(nil), NoFilesSentinel},
		{FileList([]string{"a.txt"}), "a.txt"},
		{FileList([]string{"a.txt", "b.bin"}), "a.txt\nb.bin"},
	}

	for _, tt := range tests {
		data, err := EncodeReply(tt.reply)
		require.NoError(t, err)
		assert.Equal(t, tt.want, string(data))
	}
}

func TestEncodeReplyTooLarge(t *testing.T) {
	names := make([]string, 0, 100)
	for i := 0; i < 100; i++ {
		names = append(names, strings.Repeat("n", 64))
	}
	_, err := EncodeReply(FileList(names))
	assert.ErrorIs(t, err, ErrMessageTooLarge)
}

func TestDecodeFileList(t *testing.T) {
	names, err := DecodeFileList([]byte(NoFilesSentinel))
	require.NoError(t, err)
	assert.NotNil(t, names)
	assert.Empty(t, names)

	names, err = DecodeFileList([]byte("a\nb"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)

	_, err = DecodeFileList([]byte("ERROR: LIST_FAILED"))
	var serverErr *ServerError
	require.True(t, errors.As(err, &serverErr))
	assert.Equal(t, ReasonListFailed, serverErr.Reason)
}

func TestDecodeAckAndResult(t *testing.T) {
	assert.NoError(t, DecodeAck([]byte("OK")))
	assert.ErrorIs(t, DecodeAck([]byte("HELLO")), ErrUnexpectedReply)

	var serverErr *ServerError
	require.ErrorAs(t, DecodeAck([]byte("ERROR: FILE_EXISTS")), &serverErr)
	assert.Equal(t, ReasonFileExists, serverErr.Reason)

	assert.NoError(t, DecodeResult([]byte(ReplyUploadComplete)))
	assert.ErrorIs(t, DecodeResult([]byte("OK")), ErrUnexpectedReply)
}

func TestValidateName(t *testing.T) {
	for _, bad := range []string{"", ".", "..", "a/b", `a\b`, "a\x00b", "a b", "\xff\xfe.bin"} {
		assert.ErrorIs(t, ValidateName(bad), ErrInvalidName, "name %q", bad)
	}
	for _, good := range []string{"a", ".hidden", "report-2024.tar.gz", "ñandú", ".putd-health-report"} {
		assert.NoError(t, ValidateName(good), "name %q", good)
	}
}
