// Package store provides durable persistence for everything the pipeline
// captures: label events, hydrated content and account records, and blob
// records. Backed by Badger; every record type is a keyed upsert + lookup.
package store

import (
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/skywatch-app/skywatch-server/internal/domain"
	"github.com/skywatch-app/skywatch-server/internal/errors"
)

// ErrNotFound is returned by lookups that match nothing.
var ErrNotFound = errors.NotFound("record not found")

// Key prefixes for each record type.
const (
	labelPrefix   = "label:"
	contentPrefix = "content:"
	accountPrefix = "account:"
	blobPrefix    = "blob:"
)

// Store wraps a Badger database instance.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	// Generic entities
	Labels   *Entity[domain.LabelEvent]
	Contents *Entity[domain.ContentRecord]
	Accounts *Entity[domain.AccountRecord]
	Blobs    *Entity[domain.BlobRecord]
}

// Open creates a new Store instance with the given database path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Disable Badger's internal logging
	opts.SyncWrites = true       // Ensure writes are synced to disk to prevent corruption on crashes
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	s := &Store{
		db:     db,
		logger: logger,
	}

	s.Labels = NewEntity[domain.LabelEvent](s, labelPrefix)
	s.Contents = NewEntity[domain.ContentRecord](s, contentPrefix)
	s.Accounts = NewEntity[domain.AccountRecord](s, accountPrefix)
	// Blobs carry a secondary index by content identifier so the processor
	// can find fingerprints computed for any prior owner of the same cid.
	s.Blobs = NewEntity[domain.BlobRecord](s, blobPrefix).
		WithIndex("cid", func(b *domain.BlobRecord) []string {
			return []string{b.CID}
		})

	if logger != nil {
		logger.Info("badger database opened", "path", path)
	}

	return s, nil
}

// Close gracefully closes the database connection.
func (s *Store) Close() error {
	if s.logger != nil {
		s.logger.Info("closing database")
	}
	return s.db.Close()
}
