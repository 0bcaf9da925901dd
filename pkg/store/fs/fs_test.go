package fs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/marmos91/putd/pkg/store"
	storetesting "github.com/marmos91/putd/pkg/store/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFSStore runs the complete store test suite against FSStore.
func TestFSStore(t *testing.T) {
	suite := &storetesting.StoreTestSuite{
		NewStore: func(t *testing.T) store.Store {
			s, err := New(context.Background(), t.TempDir())
			require.NoError(t, err)
			return s
		},
	}

	suite.Run(t)
}

func TestNew_CreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "server_files")

	s, err := New(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, root, s.BasePath())

	info, err := os.Stat(root)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNew_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(ctx, t.TempDir())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestList_SkipsDirectories(t *testing.T) {
	root := t.TempDir()
	s, err := New(context.Background(), root)
	require.NoError(t, err)

	require.NoError(t, os.Mkdir(filepath.Join(root, "subdir"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "file.txt"), []byte("x"), 0644))

	names, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"file.txt"}, names)
}

func TestCreate_ExistingFileOnDisk(t *testing.T) {
	root := t.TempDir()
	s, err := New(context.Background(), root)
	require.NoError(t, err)

	path := filepath.Join(root, "preexisting.txt")
	require.NoError(t, os.WriteFile(path, []byte("keep me"), 0644))

	_, err = s.Create(context.Background(), "preexisting.txt")
	assert.ErrorIs(t, err, store.ErrExists)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(data))
}

func TestAbort_DeletesPartialFile(t *testing.T) {
	root := t.TempDir()
	s, err := New(context.Background(), root)
	require.NoError(t, err)

	upload, err := s.Create(context.Background(), "partial.bin")
	require.NoError(t, err)
	_, err = upload.Write([]byte("half"))
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(root, "partial.bin"))
	require.NoError(t, err, "in-progress file is written in place")

	require.NoError(t, upload.Abort(context.Background()))

	_, err = os.Stat(filepath.Join(root, "partial.bin"))
	assert.True(t, os.IsNotExist(err))
}

func TestStats(t *testing.T) {
	s, err := New(context.Background(), t.TempDir())
	require.NoError(t, err)

	for name, data := range map[string]string{"a": "12345", "b": "678"} {
		upload, err := s.Create(context.Background(), name)
		require.NoError(t, err)
		_, err = upload.Write([]byte(data))
		require.NoError(t, err)
		require.NoError(t, upload.Commit(context.Background()))
	}

	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), stats.FileCount)
	assert.Equal(t, uint64(8), stats.UsedBytes)
}

// TestCreate_SharedRootAcrossStores checks that exclusivity comes from the
// filesystem, not from per-instance state.
func TestCreate_SharedRootAcrossStores(t *testing.T) {
	root := t.TempDir()
	first, err := New(context.Background(), root)
	require.NoError(t, err)
	second, err := New(context.Background(), root)
	require.NoError(t, err)

	upload, err := first.Create(context.Background(), "shared.bin")
	require.NoError(t, err)
	defer func() { _ = upload.Abort(context.Background()) }()

	_, err = second.Create(context.Background(), "shared.bin")
	assert.ErrorIs(t, err, store.ErrExists)
}

func TestList_IncludesHealthPrefixedUpload(t *testing.T) {
	root := t.TempDir()
	s, err := New(context.Background(), root)
	require.NoError(t, err)

	name := healthProbePrefix + "report"
	upload, err := s.Create(context.Background(), name)
	require.NoError(t, err)
	_, err = upload.Write([]byte("abc"))
	require.NoError(t, err)
	require.NoError(t, upload.Commit(context.Background()))

	require.NoError(t, s.Healthcheck(context.Background()))

	names, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{name}, names)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "healthcheck leaves nothing behind")
}
