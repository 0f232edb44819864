package store

import (
	"fmt"
	"sort"
	"strings"

	"gigbook/internal/catalog"
)

// CreateSong inserts a new song. An empty ID is generated; a registered ID
// fails with DuplicateIdentifierError. Sections passed in are registered and
// compacted.
func (s *Store) CreateSong(song catalog.Song) (catalog.Song, error) {
	var created catalog.Song
	err := s.update(func(tx *txn) error {
		song = normalizeSong(song.Clone())
		if err := song.Validate(); err != nil {
			return err
		}
		id, err := tx.register(EntitySong, song.ID)
		if err != nil {
			return err
		}
		song.ID = id
		for i := range song.Sections {
			secID, err := tx.register(EntitySection, song.Sections[i].ID)
			if err != nil {
				return err
			}
			song.Sections[i].ID = secID
		}
		song.Sections = compactSections(song.Sections)
		song.CreatedAt = tx.now
		if err := tx.putSong(song); err != nil {
			return err
		}
		created = tx.state.songs[id].Clone()
		return nil
	})
	return created, err
}

// GetSong returns a single song by ID.
func (s *Store) GetSong(id string) (catalog.Song, error) {
	var song catalog.Song
	err := s.view(func(st state) error {
		found, ok := st.songs[id]
		if !ok {
			return NotFoundError{Entity: EntitySong, ID: id}
		}
		song = found.Clone()
		return nil
	})
	return song, err
}

// ListSongs returns every song sorted by title.
func (s *Store) ListSongs() []catalog.Song {
	songs := s.allSongs()
	sort.SliceStable(songs, func(i, j int) bool {
		a, b := strings.ToLower(songs[i].Title), strings.ToLower(songs[j].Title)
		if a != b {
			return a < b
		}
		return songs[i].ID < songs[j].ID
	})
	return songs
}

// RecentSongs returns up to limit songs, most recently modified first. A
// non-positive limit returns all of them.
func (s *Store) RecentSongs(limit int) []catalog.Song {
	songs := s.allSongs()
	sort.SliceStable(songs, func(i, j int) bool {
		if !songs[i].UpdatedAt.Equal(songs[j].UpdatedAt) {
			return songs[i].UpdatedAt.After(songs[j].UpdatedAt)
		}
		return songs[i].ID < songs[j].ID
	})
	if limit > 0 && len(songs) > limit {
		songs = songs[:limit]
	}
	return songs
}

func (s *Store) allSongs() []catalog.Song {
	var songs []catalog.Song
	_ = s.view(func(st state) error {
		songs = make([]catalog.Song, 0, len(st.songs))
		for _, song := range st.songs {
			songs = append(songs, song.Clone())
		}
		return nil
	})
	return songs
}

// UpdateSong applies mutator to a song's own fields. Sections and images are
// managed by their own operations and are kept as they were.
func (s *Store) UpdateSong(id string, mutator func(*catalog.Song) error) (catalog.Song, error) {
	var updated catalog.Song
	err := s.update(func(tx *txn) error {
		song, err := tx.song(id)
		if err != nil {
			return err
		}
		before := song.Clone()
		if err := mutator(&song); err != nil {
			return err
		}
		song.ID = before.ID
		song.CreatedAt = before.CreatedAt
		song.Sections = before.Sections
		song.Images = before.Images
		song.Title = normalizeTitle(song.Title)
		if err := tx.putSong(song); err != nil {
			return err
		}
		updated = tx.state.songs[id].Clone()
		return nil
	})
	return updated, err
}

// DeleteSong removes a song and its sections. Songs still attached to a
// setlist cannot be deleted. The removed song's images are returned so their
// blobs can be released.
func (s *Store) DeleteSong(id string) ([]catalog.ImageRef, error) {
	var images []catalog.ImageRef
	err := s.update(func(tx *txn) error {
		song, err := tx.song(id)
		if err != nil {
			return err
		}
		if users := tx.setlistsUsing(id); len(users) > 0 {
			return SongInUseError{SongID: id, SetlistIDs: users}
		}
		for _, sec := range song.Sections {
			tx.release(sec.ID)
		}
		tx.release(id)
		delete(tx.state.songs, id)
		images = song.Images
		return nil
	})
	return images, err
}

// SetlistsUsing lists the IDs of setlists that reference the song.
func (s *Store) SetlistsUsing(songID string) []string {
	var ids []string
	_ = s.view(func(st state) error {
		ids = (&txn{state: st}).setlistsUsing(songID)
		return nil
	})
	return ids
}

func (tx *txn) setlistsUsing(songID string) []string {
	var ids []string
	for id, setlist := range tx.state.setlists {
		if setlist.ContainsSong(songID) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// AddSongImage appends an image reference. A song already holding
// catalog.MaxImages images fails with catalog.ErrImageLimitExceeded and is
// left unchanged.
func (s *Store) AddSongImage(songID string, ref catalog.ImageRef) (catalog.Song, error) {
	var updated catalog.Song
	err := s.update(func(tx *txn) error {
		song, err := tx.song(songID)
		if err != nil {
			return err
		}
		if err := catalog.CheckImageCapacity("song", len(song.Images), 1); err != nil {
			return err
		}
		song.Images = append(song.Images, ref)
		if err := tx.putSong(song); err != nil {
			return err
		}
		updated = tx.state.songs[songID].Clone()
		return nil
	})
	return updated, err
}

// RemoveSongImage drops the image at index and returns it.
func (s *Store) RemoveSongImage(songID string, index int) (catalog.ImageRef, error) {
	var removed catalog.ImageRef
	err := s.update(func(tx *txn) error {
		song, err := tx.song(songID)
		if err != nil {
			return err
		}
		if index < 0 || index >= len(song.Images) {
			return NotFoundError{Entity: EntityImage, ID: fmt.Sprintf("%s[%d]", songID, index)}
		}
		removed = song.Images[index]
		song.Images = append(song.Images[:index:index], song.Images[index+1:]...)
		return tx.putSong(song)
	})
	return removed, err
}
