// Package store holds the canonical song and setlist aggregates in memory and
// enforces their referential and ordering invariants.
//
// Songs own their sections, setlists own their items and items own their
// sections. Items reference songs by identifier. Every mutation runs against a
// private copy of the state and is committed only when it succeeds, so a
// failed operation leaves nothing behind.
package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"gigbook/internal/catalog"
)

// Store is the in-memory entity store. It is safe for concurrent use; all
// mutations are serialized.
type Store struct {
	mu    sync.RWMutex
	state state
	now   func() time.Time
	newID func() string
}

// Option configures a Store.
type Option func(*Store)

// WithClock injects the time source used for CreatedAt/UpdatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator injects the identifier source used for new records.
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		state: newState(),
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot captures every aggregate for persistence.
type Snapshot struct {
	Songs    []catalog.Song    `json:"songs"`
	Setlists []catalog.Setlist `json:"setlists"`
}

type state struct {
	songs    map[string]catalog.Song
	setlists map[string]catalog.Setlist
	ids      map[string]Entity
}

func newState() state {
	return state{
		songs:    make(map[string]catalog.Song),
		setlists: make(map[string]catalog.Setlist),
		ids:      make(map[string]Entity),
	}
}

// clone copies the maps. Aggregates are never mutated in place, so sharing
// them between the copies is safe.
func (st state) clone() state {
	out := state{
		songs:    make(map[string]catalog.Song, len(st.songs)),
		setlists: make(map[string]catalog.Setlist, len(st.setlists)),
		ids:      make(map[string]Entity, len(st.ids)),
	}
	for k, v := range st.songs {
		out.songs[k] = v
	}
	for k, v := range st.setlists {
		out.setlists[k] = v
	}
	for k, v := range st.ids {
		out.ids[k] = v
	}
	return out
}

type txn struct {
	state state
	now   time.Time
	newID func() string
}

// update runs fn against a copy of the state and commits it when fn succeeds.
func (s *Store) update(fn func(tx *txn) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &txn{state: s.state.clone(), now: s.now(), newID: s.newID}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

func (s *Store) view(fn func(st state) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.state)
}

// register claims an identifier for a new record, generating one when id is empty.
func (tx *txn) register(kind Entity, id string) (string, error) {
	if id == "" {
		for {
			id = tx.newID()
			if _, taken := tx.state.ids[id]; !taken {
				break
			}
		}
	} else if existing, taken := tx.state.ids[id]; taken {
		return "", DuplicateIdentifierError{Entity: kind, ID: id, Existing: existing}
	}
	tx.state.ids[id] = kind
	return id, nil
}

func (tx *txn) release(ids ...string) {
	for _, id := range ids {
		delete(tx.state.ids, id)
	}
}

func (tx *txn) song(id string) (catalog.Song, error) {
	song, ok := tx.state.songs[id]
	if !ok {
		return catalog.Song{}, NotFoundError{Entity: EntitySong, ID: id}
	}
	return song.Clone(), nil
}

func (tx *txn) setlist(id string) (catalog.Setlist, error) {
	setlist, ok := tx.state.setlists[id]
	if !ok {
		return catalog.Setlist{}, NotFoundError{Entity: EntitySetlist, ID: id}
	}
	return setlist.Clone(), nil
}

// putSong validates the song, stamps it and stages it for commit.
func (tx *txn) putSong(song catalog.Song) error {
	if err := song.Validate(); err != nil {
		return err
	}
	song.UpdatedAt = tx.now
	tx.state.songs[song.ID] = song
	return nil
}

// putSetlist validates the setlist, stamps it and stages it for commit.
func (tx *txn) putSetlist(setlist catalog.Setlist) error {
	if err := setlist.Validate(); err != nil {
		return err
	}
	setlist.UpdatedAt = tx.now
	tx.state.setlists[setlist.ID] = setlist
	return nil
}

// Snapshot returns a deep copy of every aggregate, songs and setlists sorted
// by creation time.
func (s *Store) Snapshot() Snapshot {
	var snap Snapshot
	_ = s.view(func(st state) error {
		snap.Songs = make([]catalog.Song, 0, len(st.songs))
		for _, song := range st.songs {
			snap.Songs = append(snap.Songs, song.Clone())
		}
		snap.Setlists = make([]catalog.Setlist, 0, len(st.setlists))
		for _, setlist := range st.setlists {
			snap.Setlists = append(snap.Setlists, setlist.Clone())
		}
		return nil
	})
	sort.Slice(snap.Songs, func(i, j int) bool {
		return lessByCreation(snap.Songs[i].CreatedAt, snap.Songs[i].ID, snap.Songs[j].CreatedAt, snap.Songs[j].ID)
	})
	sort.Slice(snap.Setlists, func(i, j int) bool {
		return lessByCreation(snap.Setlists[i].CreatedAt, snap.Setlists[i].ID, snap.Setlists[j].CreatedAt, snap.Setlists[j].ID)
	})
	return snap
}

// Restore replaces the store contents with snap. The snapshot is validated as
// a whole: every record needs a unique identifier, every aggregate must pass
// validation and every item must reference a known song. Orders are compacted.
// On failure the current contents are kept.
func (s *Store) Restore(snap Snapshot) error {
	st := newState()
	tx := &txn{state: st}
	for _, song := range snap.Songs {
		song = normalizeSong(song.Clone())
		if err := song.Validate(); err != nil {
			return err
		}
		if _, err := tx.registerExisting(EntitySong, song.ID); err != nil {
			return err
		}
		for _, sec := range song.Sections {
			if _, err := tx.registerExisting(EntitySection, sec.ID); err != nil {
				return err
			}
		}
		song.Sections = compactSections(song.Sections)
		st.songs[song.ID] = song
	}
	for _, setlist := range snap.Setlists {
		setlist = normalizeSetlist(setlist.Clone())
		if err := setlist.Validate(); err != nil {
			return err
		}
		if _, err := tx.registerExisting(EntitySetlist, setlist.ID); err != nil {
			return err
		}
		for i := range setlist.Items {
			item := &setlist.Items[i]
			if _, ok := st.songs[item.SongID]; !ok {
				return NotFoundError{Entity: EntitySong, ID: item.SongID}
			}
			if _, err := tx.registerExisting(EntityItem, item.ID); err != nil {
				return err
			}
			for _, sec := range item.Sections {
				if _, err := tx.registerExisting(EntityItemSection, sec.ID); err != nil {
					return err
				}
			}
			item.SetlistID = setlist.ID
			item.Sections = compactItemSections(item.Sections)
		}
		setlist.Items = compactItems(setlist.Items)
		st.setlists[setlist.ID] = setlist
	}

	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	return nil
}

// registerExisting claims an identifier that must already be set.
func (tx *txn) registerExisting(kind Entity, id string) (string, error) {
	if id == "" {
		return "", NotFoundError{Entity: kind, ID: "(empty)"}
	}
	return tx.register(kind, id)
}

func lessByCreation(at time.Time, id string, bt time.Time, bid string) bool {
	if !at.Equal(bt) {
		return at.Before(bt)
	}
	return id < bid
}

func normalizeTitle(title string) string {
	return strings.TrimSpace(title)
}

func normalizeSong(song catalog.Song) catalog.Song {
	song.Title = normalizeTitle(song.Title)
	if song.Images == nil {
		song.Images = []catalog.ImageRef{}
	}
	if song.Sections == nil {
		song.Sections = []catalog.Section{}
	}
	return song
}

func normalizeSetlist(setlist catalog.Setlist) catalog.Setlist {
	setlist.Title = normalizeTitle(setlist.Title)
	if setlist.Items == nil {
		setlist.Items = []catalog.SetlistItem{}
	}
	for i := range setlist.Items {
		setlist.Items[i] = normalizeItem(setlist.Items[i])
	}
	return setlist
}

func normalizeItem(item catalog.SetlistItem) catalog.SetlistItem {
	if item.Sections == nil {
		item.Sections = []catalog.SetlistItemSection{}
	}
	if item.Images == nil {
		item.Images = []catalog.ImageRef{}
	}
	return item
}
