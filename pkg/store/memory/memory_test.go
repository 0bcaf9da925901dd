package memory

import (
	"context"
	"testing"

	"github.com/marmos91/putd/pkg/store"
	storetesting "github.com/marmos91/putd/pkg/store/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMemoryStore runs the complete store test suite against MemoryStore.
func TestMemoryStore(t *testing.T) {
	suite := &storetesting.StoreTestSuite{
		NewStore: func(t *testing.T) store.Store {
			s, err := New(context.Background(), 0)
			require.NoError(t, err)
			return s
		},
	}

	suite.Run(t)
}

func TestMemoryStore_SizeLimit(t *testing.T) {
	ctx := context.Background()
	s, err := New(ctx, 10)
	require.NoError(t, err)

	upload, err := s.Create(ctx, "big.bin")
	require.NoError(t, err)

	_, err = upload.Write([]byte("123456"))
	require.NoError(t, err)
	_, err = upload.Write([]byte("7890ab"))
	assert.ErrorIs(t, err, store.ErrStorageFull)

	require.NoError(t, upload.Abort(ctx))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), stats.UsedBytes, "aborted bytes are released")
	assert.Equal(t, uint64(10), stats.CapacityBytes)
}

func TestMemoryStore_RemoveDuringUpload(t *testing.T) {
	ctx := context.Background()
	s, err := New(ctx, 0)
	require.NoError(t, err)

	upload, err := s.Create(ctx, "racing.bin")
	require.NoError(t, err)
	require.NoError(t, s.Remove(ctx, "racing.bin"))

	_, err = upload.Write([]byte("late"))
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, upload.Commit(ctx), store.ErrNotFound)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.FileCount)
	assert.Zero(t, stats.UsedBytes)
}
