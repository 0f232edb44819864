package store

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound signals a stale or unknown reference.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateIdentifier signals an insert whose identifier is already registered.
	ErrDuplicateIdentifier = errors.New("duplicate identifier")
	// ErrSongInUse blocks deleting a song that setlists still reference.
	ErrSongInUse = errors.New("song is referenced by a setlist")
)

// Entity names a record type held by the store.
type Entity string

const (
	EntitySong        Entity = "song"
	EntitySection     Entity = "section"
	EntitySetlist     Entity = "setlist"
	EntityItem        Entity = "setlist item"
	EntityItemSection Entity = "setlist item section"
	EntityImage       Entity = "image"
)

// NotFoundError is returned when a lookup, update or delete targets a record
// that does not exist.
type NotFoundError struct {
	Entity Entity
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e NotFoundError) Unwrap() error { return ErrNotFound }

// DuplicateIdentifierError is returned when an insert reuses a registered ID.
type DuplicateIdentifierError struct {
	Entity   Entity
	ID       string
	Existing Entity
}

func (e DuplicateIdentifierError) Error() string {
	return fmt.Sprintf("%s %s: identifier already used by a %s", e.Entity, e.ID, e.Existing)
}

func (e DuplicateIdentifierError) Unwrap() error { return ErrDuplicateIdentifier }

// SongInUseError lists the setlists that block a song deletion.
type SongInUseError struct {
	SongID     string
	SetlistIDs []string
}

func (e SongInUseError) Error() string {
	return fmt.Sprintf("song %s is used by setlists %s", e.SongID, strings.Join(e.SetlistIDs, ", "))
}

func (e SongInUseError) Unwrap() error { return ErrSongInUse }
