// Package badger keeps the transfer journal in an embedded BadgerDB.
package badger

import (
	"context"
	"encoding/json"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/marmos91/putd/pkg/journal"
)

// Key Layout
// ==========
//
// Data Type   Prefix   Key Format                        Value Type
// =================================================================
// Transfer    "t:"     t:<start-unix-nanos>:<uuid>       Record (JSON)
//
// The start time is zero-padded to 20 digits so that lexicographic key order
// equals chronological order, which lets List walk the prefix in reverse to
// get the newest records first. The UUID keeps keys unique when two
// transfers start in the same nanosecond.
const transferPrefix = "t:"

func transferKey(rec journal.Record) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", transferPrefix, rec.StartTime.UnixNano(), rec.ID))
}

// Sink stores every record, whatever its outcome.
type Sink struct {
	db *badger.DB
}

// Config configures the Badger journal.
type Config struct {
	// DBPath is the BadgerDB directory.
	DBPath string `mapstructure:"db_path"`

	// InMemory runs Badger without touching disk. Intended for tests.
	InMemory bool `mapstructure:"-"`
}

// Open opens (or creates) the journal database.
func Open(ctx context.Context, cfg Config) (*Sink, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.DBPath == "" {
			return nil, fmt.Errorf("badger journal requires db_path")
		}
		opts = badger.DefaultOptions(cfg.DBPath)
	}
	opts = opts.WithLoggingLevel(badger.WARNING).WithCompression(options.None)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", cfg.DBPath, err)
	}
	return &Sink{db: db}, nil
}

func (s *Sink) RecordTransfer(ctx context.Context, rec journal.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(transferKey(rec), value)
	})
}

// List returns up to limit records, newest first. A limit <= 0 returns all
// records.
func (s *Sink) List(ctx context.Context, limit int) ([]journal.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var records []journal.Record
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(transferPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration seeks to the last key <= the seek key, so start
		// past every possible key in the prefix.
		for it.Seek([]byte(transferPrefix + "\xff")); it.ValidForPrefix(opts.Prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if limit > 0 && len(records) >= limit {
				break
			}

			var rec journal.Record
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return fmt.Errorf("failed to decode record %s: %w", it.Item().Key(), err)
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Sink) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close BadgerDB: %w", err)
	}
	return nil
}
