// Package samples dumps the TCP_INFO readings taken during a transfer.
package samples

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/marmos91/putd/pkg/diag"
	"github.com/marmos91/putd/pkg/journal"
)

// FileName returns the dump file name for an uploaded file.
func FileName(filename string) string {
	return "tcp_info_log_" + filename + ".json"
}

// Sink writes tcp_info_log_<file>.json into a directory for every record
// that carries samples. A later upload of the same name replaces the dump.
type Sink struct {
	dir string
}

// New creates the dump directory if needed.
func New(dir string) (*Sink, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create sample directory: %w", err)
	}
	return &Sink{dir: dir}, nil
}

func (s *Sink) RecordTransfer(ctx context.Context, rec journal.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(rec.Samples) == 0 {
		return nil
	}
	return Write(filepath.Join(s.dir, FileName(rec.Filename)), rec.Samples)
}

func (s *Sink) Close() error {
	return nil
}

// Write stores samples as an indented JSON array at path.
func Write(path string, samples []diag.Sample) error {
	data, err := json.MarshalIndent(samples, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode samples: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
