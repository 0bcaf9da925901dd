package transfer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/marmos91/putd/pkg/store"
	"github.com/marmos91/putd/pkg/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *memory.MemoryStore {
	t.Helper()
	s, err := memory.New(context.Background(), 0)
	require.NoError(t, err)
	return s
}

func mustCreate(t *testing.T, s store.Store, name string) store.Upload {
	t.Helper()
	upload, err := s.Create(context.Background(), name)
	require.NoError(t, err)
	return upload
}

func readAll(t *testing.T, s store.Store, name string) []byte {
	t.Helper()
	r, err := s.Open(context.Background(), name)
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return data
}

func TestReceive_ExactSize(t *testing.T) {
	s := newStore(t)
	payload := bytes.Repeat([]byte("0123456789"), 1000)

	result, err := Receive(context.Background(), bytes.NewReader(payload), mustCreate(t, s, "exact.bin"), uint64(len(payload)), Options{})
	require.NoError(t, err)

	assert.Equal(t, Complete, result.Outcome)
	assert.True(t, result.Complete())
	assert.Equal(t, "exact.bin", result.Name)
	assert.Equal(t, uint64(len(payload)), result.BytesTransferred)
	assert.Equal(t, uint64(len(payload)), result.DeclaredSize)
	assert.False(t, result.EndTime.Before(result.StartTime))
	assert.Equal(t, payload, readAll(t, s, "exact.bin"))
}

func TestReceive_LeavesTrailingBytesUnread(t *testing.T) {
	s := newStore(t)
	src := strings.NewReader("hello worldLIST")

	result, err := Receive(context.Background(), src, mustCreate(t, s, "a.txt"), 11, Options{BufferSize: 4})
	require.NoError(t, err)
	assert.Equal(t, Complete, result.Outcome)
	assert.Equal(t, "hello world", string(readAll(t, s, "a.txt")))

	rest, err := io.ReadAll(src)
	require.NoError(t, err)
	assert.Equal(t, "LIST", string(rest))
}

func TestReceive_ShortReads(t *testing.T) {
	s := newStore(t)
	payload := []byte("short reads are normal on a stream socket")

	var chunks []int
	result, err := Receive(context.Background(),
		iotest.OneByteReader(bytes.NewReader(payload)),
		mustCreate(t, s, "short.txt"),
		uint64(len(payload)),
		Options{OnChunk: func(n int) { chunks = append(chunks, n) }},
	)
	require.NoError(t, err)

	assert.Equal(t, Complete, result.Outcome)
	assert.Len(t, chunks, len(payload))
	assert.Equal(t, payload, readAll(t, s, "short.txt"))
}

func TestReceive_DataWithEOF(t *testing.T) {
	s := newStore(t)
	payload := []byte("last chunk arrives with EOF")

	result, err := Receive(context.Background(),
		iotest.DataErrReader(bytes.NewReader(payload)),
		mustCreate(t, s, "eof.txt"),
		uint64(len(payload)),
		Options{},
	)
	require.NoError(t, err)
	assert.Equal(t, Complete, result.Outcome)
	assert.Equal(t, payload, readAll(t, s, "eof.txt"))
}

func TestReceive_ZeroSize(t *testing.T) {
	s := newStore(t)

	result, err := Receive(context.Background(), strings.NewReader("not payload"), mustCreate(t, s, "empty.txt"), 0, Options{})
	require.NoError(t, err)

	assert.Equal(t, Complete, result.Outcome)
	assert.Zero(t, result.BytesTransferred)
	assert.Empty(t, readAll(t, s, "empty.txt"))
}

func TestReceive_PeerClosesEarly(t *testing.T) {
	s := newStore(t)

	result, err := Receive(context.Background(), strings.NewReader("only 12 byte"), mustCreate(t, s, "partial.bin"), 100, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPeerClosed)

	assert.Equal(t, Aborted, result.Outcome)
	assert.Equal(t, uint64(12), result.BytesTransferred)
	assert.Equal(t, uint64(100), result.DeclaredSize)

	exists, err := s.Exists(context.Background(), "partial.bin")
	require.NoError(t, err)
	assert.False(t, exists, "partial entry must be removed")
}

func TestReceive_ReadError(t *testing.T) {
	s := newStore(t)
	boom := errors.New("boom")

	src := io.MultiReader(strings.NewReader("abc"), iotest.ErrReader(boom))
	result, err := Receive(context.Background(), src, mustCreate(t, s, "broken.bin"), 10, Options{})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, Incomplete, result.Outcome)
	assert.Equal(t, uint64(3), result.BytesTransferred)

	names, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)
}

type failingUpload struct {
	store.Upload
	failAfter int
	written   int
	aborted   bool
}

func (f *failingUpload) Write(p []byte) (int, error) {
	if f.written+len(p) > f.failAfter {
		return 0, store.ErrStorageFull
	}
	f.written += len(p)
	return f.Upload.Write(p)
}

func (f *failingUpload) Abort(ctx context.Context) error {
	f.aborted = true
	return f.Upload.Abort(ctx)
}

func TestReceive_WriteFailure(t *testing.T) {
	s := newStore(t)
	upload := &failingUpload{Upload: mustCreate(t, s, "full.bin"), failAfter: 8}

	result, err := Receive(context.Background(), strings.NewReader("0123456789abcdef"), upload, 16, Options{BufferSize: 4})

	assert.ErrorIs(t, err, store.ErrStorageFull)
	assert.Equal(t, Incomplete, result.Outcome)
	assert.Equal(t, uint64(8), result.BytesTransferred)
	assert.True(t, upload.aborted)

	exists, err := s.Exists(context.Background(), "full.bin")
	require.NoError(t, err)
	assert.False(t, exists)
}

type failingCommit struct {
	store.Upload
}

func (f failingCommit) Commit(ctx context.Context) error {
	_ = f.Upload.Abort(ctx)
	return errors.New("commit refused")
}

func TestReceive_CommitFailure(t *testing.T) {
	s := newStore(t)
	upload := failingCommit{Upload: mustCreate(t, s, "commit.bin")}

	result, err := Receive(context.Background(), strings.NewReader("data"), upload, 4, Options{})

	assert.Error(t, err)
	assert.Equal(t, Incomplete, result.Outcome)
	assert.Equal(t, uint64(4), result.BytesTransferred)
}

func TestReceive_ContextCancelled(t *testing.T) {
	s := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())

	pr, pw := io.Pipe()
	defer pr.Close()
	go func() {
		_, _ = pw.Write([]byte("first"))
		cancel()
		_, _ = pw.Write([]byte("second"))
		_ = pw.Close()
	}()

	result, err := Receive(ctx, pr, mustCreate(t, s, "cancel.bin"), 1<<20, Options{BufferSize: 5})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Aborted, result.Outcome)

	exists, err := s.Exists(context.Background(), "cancel.bin")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestReceiveFile_Exists(t *testing.T) {
	s := newStore(t)

	_, err := ReceiveFile(context.Background(), strings.NewReader("x"), s, "dup", 1, Options{})
	require.NoError(t, err)

	src := strings.NewReader("y")
	result, err := ReceiveFile(context.Background(), src, s, "dup", 1, Options{})
	assert.ErrorIs(t, err, store.ErrExists)
	assert.Nil(t, result)
	assert.Equal(t, 1, src.Len(), "no payload byte may be consumed on conflict")
	assert.Equal(t, "x", string(readAll(t, s, "dup")))
}

func TestResult_Rate(t *testing.T) {
	start := time.Now()
	r := &Result{BytesTransferred: 1000, StartTime: start, EndTime: start.Add(2 * time.Second)}

	rate, ok := r.Rate()
	require.True(t, ok)
	assert.InDelta(t, 500.0, rate, 0.001)
	assert.Equal(t, 2*time.Second, r.Elapsed())

	r.EndTime = start
	_, ok = r.Rate()
	assert.False(t, ok)
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "complete", Complete.String())
	assert.Equal(t, "incomplete", Incomplete.String())
	assert.Equal(t, "aborted", Aborted.String())
}
