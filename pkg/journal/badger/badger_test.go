package badger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/putd/pkg/journal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestSink(t *testing.T) *Sink {
	t.Helper()
	sink, err := Open(context.Background(), Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sink.Close() })
	return sink
}

func TestSink_ListNewestFirst(t *testing.T) {
	sink := openTestSink(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		rec := journal.Record{
			ID:        uuid.New(),
			Filename:  fmt.Sprintf("file-%d", i),
			StartTime: base.Add(time.Duration(i) * time.Minute),
			Outcome:   "complete",
		}
		require.NoError(t, sink.RecordTransfer(ctx, rec))
	}

	all, err := sink.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "file-4", all[0].Filename)
	assert.Equal(t, "file-0", all[4].Filename)

	latest, err := sink.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "file-4", latest[0].Filename)
	assert.Equal(t, "file-3", latest[1].Filename)
}

func TestSink_KeepsFailedTransfersAndSameInstant(t *testing.T) {
	sink := openTestSink(t)
	ctx := context.Background()
	start := time.Now()
	rate := 12.5

	first := journal.Record{ID: uuid.New(), Filename: "ok", StartTime: start, Outcome: "complete", RateBytesPerSecond: &rate}
	second := journal.Record{ID: uuid.New(), Filename: "broken", StartTime: start, Outcome: "aborted", Error: "peer closed"}
	require.NoError(t, sink.RecordTransfer(ctx, first))
	require.NoError(t, sink.RecordTransfer(ctx, second))

	records, err := sink.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)

	byName := map[string]journal.Record{}
	for _, r := range records {
		byName[r.Filename] = r
	}
	assert.Equal(t, "peer closed", byName["broken"].Error)
	require.NotNil(t, byName["ok"].RateBytesPerSecond)
	assert.Equal(t, rate, *byName["ok"].RateBytesPerSecond)
	assert.Equal(t, first.ID, byName["ok"].ID)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(context.Background(), Config{})
	assert.Error(t, err)
}

func TestOpen_OnDisk(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	sink, err := Open(ctx, Config{DBPath: dir})
	require.NoError(t, err)
	require.NoError(t, sink.RecordTransfer(ctx, journal.Record{ID: uuid.New(), Filename: "persisted", StartTime: time.Now()}))
	require.NoError(t, sink.Close())

	sink, err = Open(ctx, Config{DBPath: dir})
	require.NoError(t, err)
	defer sink.Close()

	records, err := sink.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "persisted", records[0].Filename)
}
