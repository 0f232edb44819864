// Package postgres persists snapshots to a normalized Postgres schema: songs,
// song sections, setlists, setlist items and item sections each get a table.
// The schema is managed by the embedded migrations (see Migrate).
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	"github.com/lib/pq"

	"gigbook/internal/catalog"
	"gigbook/internal/store"
)

const (
	driverName = "pgx"
	// DefaultDSN is used when no connection string is configured.
	DefaultDSN = "postgres://localhost/gigbook?sslmode=disable"
)

var sqlOpen = sql.Open

// Backend saves snapshots by replacing the table contents in one transaction.
type Backend struct {
	db *sql.DB
	mu sync.Mutex
}

// New wraps an open database. The schema must already be migrated.
func New(db *sql.DB) *Backend {
	return &Backend{db: db}
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*Backend, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	db, err := sqlOpen(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return New(db), nil
}

// DB exposes the underlying handle.
func (b *Backend) DB() *sql.DB { return b.db }

func (b *Backend) Close() error {
	return b.db.Close()
}

// Save replaces every stored row with the contents of snap.
func (b *Backend) Save(ctx context.Context, snap store.Snapshot) (err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM setlists`); err != nil {
		return fmt.Errorf("clear setlists: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM songs`); err != nil {
		return fmt.Errorf("clear songs: %w", err)
	}
	for _, song := range snap.Songs {
		if err = insertSongTx(ctx, tx, song); err != nil {
			return err
		}
	}
	for _, setlist := range snap.Setlists {
		if err = insertSetlistTx(ctx, tx, setlist); err != nil {
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

func insertSongTx(ctx context.Context, tx *sql.Tx, song catalog.Song) error {
	keys, types, sizes := splitImages(song.Images)
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO songs (id, title, tempo, song_key, time_signature, notes, image_keys, image_types, image_sizes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		song.ID, song.Title, nullInt(song.Tempo), nullString(song.Key), nullString(song.TimeSignature), nullString(song.Notes),
		pq.Array(keys), pq.Array(types), pq.Array(sizes), song.CreatedAt, song.UpdatedAt,
	); err != nil {
		return insertError(store.EntitySong, song.ID, err)
	}
	for _, sec := range song.Sections {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO song_sections (id, song_id, section_type, position, label, name)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			sec.ID, song.ID, string(sec.Type), sec.Order, nullString(sec.Label), nullString(sec.Name),
		); err != nil {
			return insertError(store.EntitySection, sec.ID, err)
		}
	}
	return nil
}

func insertSetlistTx(ctx context.Context, tx *sql.Tx, setlist catalog.Setlist) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO setlists (id, title, performance_date, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		setlist.ID, setlist.Title, nullTime(setlist.PerformanceDate), nullString(setlist.Notes), setlist.CreatedAt, setlist.UpdatedAt,
	); err != nil {
		return insertError(store.EntitySetlist, setlist.ID, err)
	}
	for _, item := range setlist.Items {
		keys, types, sizes := splitImages(item.Images)
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO setlist_items (id, setlist_id, song_id, position, key_override, tempo_override, notes, image_keys, image_types, image_sizes)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			item.ID, setlist.ID, item.SongID, item.Order, nullString(item.KeyOverride), nullInt(item.TempoOverride), nullString(item.Notes),
			pq.Array(keys), pq.Array(types), pq.Array(sizes),
		); err != nil {
			return insertError(store.EntityItem, item.ID, err)
		}
		for _, sec := range item.Sections {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO item_sections (id, item_id, section_type, position, label, name)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				sec.ID, item.ID, string(sec.Type), sec.Order, nullString(sec.Label), nullString(sec.Name),
			); err != nil {
				return insertError(store.EntityItemSection, sec.ID, err)
			}
		}
	}
	return nil
}

// Load reads every table and assembles the aggregates in creation order.
func (b *Backend) Load(ctx context.Context) (store.Snapshot, error) {
	songs, err := b.loadSongs(ctx)
	if err != nil {
		return store.Snapshot{}, err
	}
	setlists, err := b.loadSetlists(ctx)
	if err != nil {
		return store.Snapshot{}, err
	}
	return store.Snapshot{Songs: songs, Setlists: setlists}, nil
}

func (b *Backend) loadSongs(ctx context.Context) ([]catalog.Song, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT id, title, tempo, song_key, time_signature, notes, image_keys, image_types, image_sizes, created_at, updated_at
		FROM songs
		ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list songs: %w", err)
	}
	defer rows.Close()

	songs := []catalog.Song{}
	index := map[string]int{}
	for rows.Next() {
		song := catalog.NewSong("")
		var tempo sql.NullInt64
		var key, timeSig, notes sql.NullString
		var keys, types []string
		var sizes []int64
		if err := rows.Scan(&song.ID, &song.Title, &tempo, &key, &timeSig, &notes,
			pq.Array(&keys), pq.Array(&types), pq.Array(&sizes), &song.CreatedAt, &song.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan song: %w", err)
		}
		song.Tempo = intFromNull(tempo)
		song.Key = stringFromNull(key)
		song.TimeSignature = stringFromNull(timeSig)
		song.Notes = stringFromNull(notes)
		if song.Images, err = joinImages(keys, types, sizes); err != nil {
			return nil, fmt.Errorf("song %s: %w", song.ID, err)
		}
		index[song.ID] = len(songs)
		songs = append(songs, song)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate songs: %w", err)
	}

	secRows, err := b.db.QueryContext(ctx, `
		SELECT id, song_id, section_type, position, label, name
		FROM song_sections
		ORDER BY song_id, position`)
	if err != nil {
		return nil, fmt.Errorf("list song sections: %w", err)
	}
	defer secRows.Close()

	for secRows.Next() {
		var sec catalog.Section
		var songID, secType string
		var label, name sql.NullString
		if err := secRows.Scan(&sec.ID, &songID, &secType, &sec.Order, &label, &name); err != nil {
			return nil, fmt.Errorf("scan song section: %w", err)
		}
		i, ok := index[songID]
		if !ok {
			return nil, store.NotFoundError{Entity: store.EntitySong, ID: songID}
		}
		sec.Type = catalog.SectionType(secType)
		sec.Label = stringFromNull(label)
		sec.Name = stringFromNull(name)
		songs[i].Sections = append(songs[i].Sections, sec)
	}
	if err := secRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate song sections: %w", err)
	}
	return songs, nil
}

func (b *Backend) loadSetlists(ctx context.Context) ([]catalog.Setlist, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT id, title, performance_date, notes, created_at, updated_at
		FROM setlists
		ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list setlists: %w", err)
	}
	defer rows.Close()

	setlists := []catalog.Setlist{}
	index := map[string]int{}
	for rows.Next() {
		setlist := catalog.NewSetlist("")
		var date sql.NullTime
		var notes sql.NullString
		if err := rows.Scan(&setlist.ID, &setlist.Title, &date, &notes, &setlist.CreatedAt, &setlist.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan setlist: %w", err)
		}
		if date.Valid {
			d := date.Time
			setlist.PerformanceDate = &d
		}
		setlist.Notes = stringFromNull(notes)
		index[setlist.ID] = len(setlists)
		setlists = append(setlists, setlist)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate setlists: %w", err)
	}

	itemRows, err := b.db.QueryContext(ctx, `
		SELECT id, setlist_id, song_id, position, key_override, tempo_override, notes, image_keys, image_types, image_sizes
		FROM setlist_items
		ORDER BY setlist_id, position`)
	if err != nil {
		return nil, fmt.Errorf("list setlist items: %w", err)
	}
	defer itemRows.Close()

	type itemRef struct{ setlist, item int }
	items := map[string]itemRef{}
	for itemRows.Next() {
		item := catalog.SetlistItem{Sections: []catalog.SetlistItemSection{}}
		var key, notes sql.NullString
		var tempo sql.NullInt64
		var keys, types []string
		var sizes []int64
		if err := itemRows.Scan(&item.ID, &item.SetlistID, &item.SongID, &item.Order, &key, &tempo, &notes,
			pq.Array(&keys), pq.Array(&types), pq.Array(&sizes)); err != nil {
			return nil, fmt.Errorf("scan setlist item: %w", err)
		}
		i, ok := index[item.SetlistID]
		if !ok {
			return nil, store.NotFoundError{Entity: store.EntitySetlist, ID: item.SetlistID}
		}
		item.KeyOverride = stringFromNull(key)
		item.TempoOverride = intFromNull(tempo)
		item.Notes = stringFromNull(notes)
		if item.Images, err = joinImages(keys, types, sizes); err != nil {
			return nil, fmt.Errorf("setlist item %s: %w", item.ID, err)
		}
		items[item.ID] = itemRef{setlist: i, item: len(setlists[i].Items)}
		setlists[i].Items = append(setlists[i].Items, item)
	}
	if err := itemRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate setlist items: %w", err)
	}

	secRows, err := b.db.QueryContext(ctx, `
		SELECT id, item_id, section_type, position, label, name
		FROM item_sections
		ORDER BY item_id, position`)
	if err != nil {
		return nil, fmt.Errorf("list item sections: %w", err)
	}
	defer secRows.Close()

	for secRows.Next() {
		var sec catalog.SetlistItemSection
		var itemID, secType string
		var label, name sql.NullString
		if err := secRows.Scan(&sec.ID, &itemID, &secType, &sec.Order, &label, &name); err != nil {
			return nil, fmt.Errorf("scan item section: %w", err)
		}
		ref, ok := items[itemID]
		if !ok {
			return nil, store.NotFoundError{Entity: store.EntityItem, ID: itemID}
		}
		sec.Type = catalog.SectionType(secType)
		sec.Label = stringFromNull(label)
		sec.Name = stringFromNull(name)
		item := &setlists[ref.setlist].Items[ref.item]
		item.Sections = append(item.Sections, sec)
	}
	if err := secRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate item sections: %w", err)
	}
	return setlists, nil
}

func insertError(entity store.Entity, id string, err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("insert %s %s: %w", entity, id, store.DuplicateIdentifierError{Entity: entity, ID: id, Existing: entity})
	}
	return fmt.Errorf("insert %s %s: %w", entity, id, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func splitImages(images []catalog.ImageRef) ([]string, []string, []int64) {
	keys := make([]string, len(images))
	types := make([]string, len(images))
	sizes := make([]int64, len(images))
	for i, img := range images {
		keys[i] = img.Key
		types[i] = img.ContentType
		sizes[i] = img.Size
	}
	return keys, types, sizes
}

func joinImages(keys, types []string, sizes []int64) ([]catalog.ImageRef, error) {
	if len(types) != len(keys) || len(sizes) != len(keys) {
		return nil, fmt.Errorf("image columns out of step: %d keys, %d types, %d sizes", len(keys), len(types), len(sizes))
	}
	images := make([]catalog.ImageRef, len(keys))
	for i := range keys {
		images[i] = catalog.ImageRef{Key: keys[i], ContentType: types[i], Size: sizes[i]}
	}
	return images, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func stringFromNull(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func intFromNull(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	v := int(ni.Int64)
	return &v
}
