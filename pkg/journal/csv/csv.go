// Package csv appends completed transfers to a CSV file.
package csv

import (
	"context"
	stdcsv "encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/marmos91/putd/pkg/journal"
)

// Header is written once, when the file is created.
var Header = []string{"timestamp_inicio", "timestamp_fim", "arquivo", "tamanho_bytes", "duracao_s", "taxa_Bps"}

const timestampLayout = "2006-01-02 15:04:05"

// Sink writes one row per completed transfer.
//
// Incomplete and aborted transfers are skipped; the file only ever describes
// uploads whose size matched the declaration. Rows are flushed immediately
// so the file can be tailed while the process runs.
type Sink struct {
	mu   sync.Mutex
	file *os.File
	w    *stdcsv.Writer
}

// Open opens path in append mode, creating it (and its directory) with the
// header row if it does not exist yet.
func Open(path string) (*Sink, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv journal %s: %w", path, err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to stat csv journal %s: %w", path, err)
	}

	s := &Sink{file: file, w: stdcsv.NewWriter(file)}
	if info.Size() == 0 {
		if err := s.writeRow(Header); err != nil {
			_ = file.Close()
			return nil, err
		}
	}
	return s, nil
}

// Row renders a record in the CSV layout.
func Row(rec journal.Record) []string {
	rate := ""
	if rec.RateBytesPerSecond != nil {
		rate = strconv.FormatFloat(*rec.RateBytesPerSecond, 'f', 2, 64)
	}
	return []string{
		rec.StartTime.Format(timestampLayout),
		rec.EndTime.Format(timestampLayout),
		rec.Filename,
		strconv.FormatUint(rec.BytesTransferred, 10),
		strconv.FormatFloat(rec.DurationSeconds, 'f', 4, 64),
		rate,
	}
}

// RecordTransfer appends rec if it completed.
func (s *Sink) RecordTransfer(ctx context.Context, rec journal.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !rec.Completed() {
		return nil
	}
	return s.writeRow(Row(rec))
}

func (s *Sink) writeRow(row []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return os.ErrClosed
	}
	if err := s.w.Write(row); err != nil {
		return fmt.Errorf("failed to write csv row: %w", err)
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return fmt.Errorf("failed to flush csv row: %w", err)
	}
	return nil
}

func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	s.w.Flush()
	err := errors.Join(s.w.Error(), s.file.Close())
	s.file = nil
	return err
}

// ReadAll parses a journal file written by Sink, header excluded.
func ReadAll(r io.Reader) ([][]string, error) {
	rows, err := stdcsv.NewReader(r).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 && len(rows[0]) > 0 && rows[0][0] == Header[0] {
		rows = rows[1:]
	}
	return rows, nil
}

// ParseTimestamp parses the timestamp columns of a row.
func ParseTimestamp(s string) (time.Time, error) {
	return time.ParseInLocation(timestampLayout, s, time.Local)
}
