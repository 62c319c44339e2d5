package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// BlobStore is a durable key/value blob store on top of the blobs table.
// It implements the pattern.BlobStore contract for one fixed key.
//
// Save is transactional: a reader observes either the previous blob or the
// new one in full, never a torn write. This is what makes the pattern
// store's "old or new complete set, never a mixture" guarantee hold all the
// way down to disk.
type BlobStore struct {
	db  *DB
	key string
}

// NewBlobStore creates a blob store bound to a single key.
//
// Parameters:
//   - db: Open database connection
//   - key: The row key this store reads and writes (e.g. "learned_patterns")
func NewBlobStore(db *DB, key string) *BlobStore {
	return &BlobStore{db: db, key: key}
}

// Load returns the stored blob, or (nil, nil) if no blob has been saved yet.
func (b *BlobStore) Load(ctx context.Context) ([]byte, error) {
	var value []byte
	err := b.db.QueryRowContext(ctx,
		"SELECT value FROM blobs WHERE key = ?", b.key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading blob %q: %w", b.key, err)
	}
	return value, nil
}

// Save atomically replaces the stored blob.
func (b *BlobStore) Save(ctx context.Context, blob []byte) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("saving blob %q: %w", b.key, err)
	}
	defer tx.Rollback() //nolint:errcheck // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO blobs (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		b.key, blob, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving blob %q: %w", b.key, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("saving blob %q: %w", b.key, err)
	}
	return nil
}
