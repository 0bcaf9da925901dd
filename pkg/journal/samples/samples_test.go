package samples

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/marmos91/putd/pkg/diag"
	"github.com/marmos91/putd/pkg/journal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSink_WritesDump(t *testing.T) {
	dir := t.TempDir()
	sink, err := New(dir)
	require.NoError(t, err)

	rec := journal.Record{
		Filename: "video.mp4",
		Samples: []diag.Sample{
			{Timestamp: time.Unix(1700000000, 0).UTC(), TCPInfo: diag.TCPInfo{State: 1, RTT: 120, SndCwnd: 10}},
			{Timestamp: time.Unix(1700000001, 0).UTC(), TCPInfo: diag.TCPInfo{State: 1, RTT: 90, SndCwnd: 20}},
		},
	}
	require.NoError(t, sink.RecordTransfer(context.Background(), rec))

	data, err := os.ReadFile(filepath.Join(dir, "tcp_info_log_video.mp4.json"))
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 2)
	assert.Contains(t, decoded[0], "timestamp")
	assert.Contains(t, decoded[0], "tcp_info")

	var samples []diag.Sample
	require.NoError(t, json.Unmarshal(data, &samples))
	require.Len(t, samples, 2)
	for i := range samples {
		assert.True(t, rec.Samples[i].Timestamp.Equal(samples[i].Timestamp))
		assert.Equal(t, rec.Samples[i].TCPInfo, samples[i].TCPInfo)
	}
}

func TestSink_SkipsRecordsWithoutSamples(t *testing.T) {
	dir := t.TempDir()
	sink, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, sink.RecordTransfer(context.Background(), journal.Record{Filename: "quiet.txt"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
