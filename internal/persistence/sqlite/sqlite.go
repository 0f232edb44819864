// Package sqlite persists snapshots to an embedded SQLite database, one JSON
// payload per bucket.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"gigbook/internal/store"
)

// DefaultPath is used when Open receives an empty path.
const DefaultPath = "gigbook.db"

const (
	bucketSongs    = "songs"
	bucketSetlists = "setlists"
)

var buckets = []string{bucketSongs, bucketSetlists}

// Backend saves snapshots to a single state table.
type Backend struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// Open opens (creating when needed) the database at path.
func Open(ctx context.Context, path string) (*Backend, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create state table: %w", err)
	}
	return &Backend{db: db, path: path}, nil
}

// Load reads every bucket back into a snapshot. Unknown buckets are ignored.
func (b *Backend) Load(ctx context.Context) (store.Snapshot, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT bucket, payload FROM state`)
	if err != nil {
		return store.Snapshot{}, fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snap store.Snapshot
	targets := map[string]any{
		bucketSongs:    &snap.Songs,
		bucketSetlists: &snap.Setlists,
	}
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return store.Snapshot{}, fmt.Errorf("scan state: %w", err)
		}
		target, ok := targets[bucket]
		if !ok || len(payload) == 0 {
			continue
		}
		if err := json.Unmarshal(payload, target); err != nil {
			return store.Snapshot{}, fmt.Errorf("decode %s: %w", bucket, err)
		}
	}
	if err := rows.Err(); err != nil {
		return store.Snapshot{}, fmt.Errorf("iterate state: %w", err)
	}
	return snap, nil
}

// Save upserts every bucket in one transaction.
func (b *Backend) Save(ctx context.Context, snap store.Snapshot) (retErr error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range buckets {
		var data []byte
		switch bucket {
		case bucketSongs:
			data, err = json.Marshal(snap.Songs)
		case bucketSetlists:
			data, err = json.Marshal(snap.Setlists)
		}
		if err != nil {
			return fmt.Errorf("encode %s: %w", bucket, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, bucket, data); err != nil {
			return fmt.Errorf("upsert %s: %w", bucket, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit state: %w", err)
	}
	return nil
}

// Path returns the database file path.
func (b *Backend) Path() string { return b.path }

func (b *Backend) Close() error {
	return b.db.Close()
}
