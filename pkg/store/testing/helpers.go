package testing

import (
	"io"
	"testing"

	"github.com/marmos91/putd/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mustPut creates, writes and commits name in one go.
func mustPut(t *testing.T, s store.Store, name string, data []byte) {
	t.Helper()
	upload, err := s.Create(testContext(), name)
	require.NoError(t, err, "Create should succeed")

	if len(data) > 0 {
		n, err := upload.Write(data)
		require.NoError(t, err, "Write should succeed")
		require.Equal(t, len(data), n)
	}
	require.NoError(t, upload.Commit(testContext()), "Commit should succeed")
}

// mustCreate reserves name and fails the test on error.
func mustCreate(t *testing.T, s store.Store, name string) store.Upload {
	t.Helper()
	upload, err := s.Create(testContext(), name)
	require.NoError(t, err, "Create should succeed")
	return upload
}

// mustRead returns the full content of name.
func mustRead(t *testing.T, s store.Store, name string) []byte {
	t.Helper()
	reader, err := s.Open(testContext(), name)
	require.NoError(t, err, "Open should succeed")
	defer reader.Close()

	data, err := io.ReadAll(reader)
	require.NoError(t, err, "Reading content should succeed")
	return data
}

// mustList returns the current listing.
func mustList(t *testing.T, s store.Store) []string {
	t.Helper()
	names, err := s.List(testContext())
	require.NoError(t, err, "List should succeed")
	return names
}

// assertExists checks the existence of name.
func assertExists(t *testing.T, s store.Store, name string, expected bool) {
	t.Helper()
	exists, err := s.Exists(testContext(), name)
	require.NoError(t, err, "Exists should not error")
	assert.Equal(t, expected, exists, "existence mismatch for %s", name)
}

// assertContent checks that name holds exactly expected.
func assertContent(t *testing.T, s store.Store, name string, expected []byte) {
	t.Helper()
	data := mustRead(t, s, name)
	assert.Equal(t, expected, data, "content mismatch for %s", name)

	size, err := s.Size(testContext(), name)
	require.NoError(t, err, "Size should succeed")
	assert.Equal(t, uint64(len(expected)), size, "size mismatch for %s", name)
}
