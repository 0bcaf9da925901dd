package testing

import (
	"bytes"
	"context"
	"testing"

	"github.com/marmos91/putd/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunUploadTests executes Create / Commit / Abort tests.
func (suite *StoreTestSuite) RunUploadTests(t *testing.T) {
	t.Run("Commit_Basic", suite.testCommitBasic)
	t.Run("Commit_MultipleWrites", suite.testCommitMultipleWrites)
	t.Run("Commit_Empty", suite.testCommitEmpty)
	t.Run("Create_Existing", suite.testCreateExisting)
	t.Run("Create_Reserved", suite.testCreateReserved)
	t.Run("Reserved_Listed", suite.testReservedListed)
	t.Run("Abort_RemovesEntry", suite.testAbortRemovesEntry)
	t.Run("Abort_Idempotent", suite.testAbortIdempotent)
	t.Run("Commit_CancelledContext", suite.testCommitCancelledContext)
}

func (suite *StoreTestSuite) testCommitBasic(t *testing.T) {
	s := suite.NewStore(t)

	data := []byte("Hello, World!")
	mustPut(t, s, "hello.txt", data)

	assertContent(t, s, "hello.txt", data)
}

func (suite *StoreTestSuite) testCommitMultipleWrites(t *testing.T) {
	s := suite.NewStore(t)

	upload := mustCreate(t, s, "chunks.bin")
	assert.Equal(t, "chunks.bin", upload.Name())

	var expected []byte
	for i := 0; i < 10; i++ {
		chunk := bytes.Repeat([]byte{byte('a' + i)}, 1000)
		_, err := upload.Write(chunk)
		require.NoError(t, err)
		expected = append(expected, chunk...)
	}
	require.NoError(t, upload.Commit(testContext()))

	assertContent(t, s, "chunks.bin", expected)
}

func (suite *StoreTestSuite) testCommitEmpty(t *testing.T) {
	s := suite.NewStore(t)

	mustPut(t, s, "empty.txt", nil)

	assertExists(t, s, "empty.txt", true)
	assertContent(t, s, "empty.txt", []byte{})
}

func (suite *StoreTestSuite) testCreateExisting(t *testing.T) {
	s := suite.NewStore(t)

	original := []byte("original")
	mustPut(t, s, "dup.txt", original)

	_, err := s.Create(testContext(), "dup.txt")
	assert.ErrorIs(t, err, store.ErrExists)

	assertContent(t, s, "dup.txt", original)
}

func (suite *StoreTestSuite) testCreateReserved(t *testing.T) {
	s := suite.NewStore(t)

	upload := mustCreate(t, s, "busy.txt")
	defer func() { _ = upload.Abort(testContext()) }()

	_, err := s.Create(testContext(), "busy.txt")
	assert.ErrorIs(t, err, store.ErrExists)
}

func (suite *StoreTestSuite) testReservedListed(t *testing.T) {
	s := suite.NewStore(t)

	upload := mustCreate(t, s, "in-progress.bin")
	_, err := upload.Write([]byte("partial"))
	require.NoError(t, err)

	assert.Equal(t, []string{"in-progress.bin"}, mustList(t, s))
	assertExists(t, s, "in-progress.bin", true)

	require.NoError(t, upload.Abort(testContext()))
}

func (suite *StoreTestSuite) testAbortRemovesEntry(t *testing.T) {
	s := suite.NewStore(t)

	upload := mustCreate(t, s, "partial.bin")
	_, err := upload.Write([]byte("only half"))
	require.NoError(t, err)
	require.NoError(t, upload.Abort(testContext()))

	assertExists(t, s, "partial.bin", false)
	assert.Empty(t, mustList(t, s))

	// The name is free again.
	mustPut(t, s, "partial.bin", []byte("complete"))
	assertContent(t, s, "partial.bin", []byte("complete"))
}

func (suite *StoreTestSuite) testAbortIdempotent(t *testing.T) {
	s := suite.NewStore(t)

	upload := mustCreate(t, s, "twice.bin")
	require.NoError(t, upload.Abort(testContext()))
	assert.NoError(t, upload.Abort(testContext()))
}

func (suite *StoreTestSuite) testCommitCancelledContext(t *testing.T) {
	s := suite.NewStore(t)

	upload := mustCreate(t, s, "cancelled.bin")
	_, err := upload.Write([]byte("data"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(testContext())
	cancel()

	assert.Error(t, upload.Commit(ctx))
	_ = upload.Abort(testContext())

	assertExists(t, s, "cancelled.bin", false)
}
