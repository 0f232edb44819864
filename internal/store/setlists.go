package store

import (
	"sort"
	"strings"

	"gigbook/internal/catalog"
)

// CreateSetlist inserts a new setlist. Items passed in must reference known
// songs and carry distinct orders; they are registered and compacted.
func (s *Store) CreateSetlist(setlist catalog.Setlist) (catalog.Setlist, error) {
	var created catalog.Setlist
	err := s.update(func(tx *txn) error {
		setlist = normalizeSetlist(setlist.Clone())
		if err := setlist.Validate(); err != nil {
			return err
		}
		id, err := tx.register(EntitySetlist, setlist.ID)
		if err != nil {
			return err
		}
		setlist.ID = id
		for i := range setlist.Items {
			if err := tx.adoptItem(id, &setlist.Items[i]); err != nil {
				return err
			}
		}
		setlist.Items = compactItems(setlist.Items)
		setlist.CreatedAt = tx.now
		if err := tx.putSetlist(setlist); err != nil {
			return err
		}
		created = tx.state.setlists[id].Clone()
		return nil
	})
	return created, err
}

// adoptItem registers an item and its sections for the given setlist.
func (tx *txn) adoptItem(setlistID string, item *catalog.SetlistItem) error {
	if _, ok := tx.state.songs[item.SongID]; !ok {
		return NotFoundError{Entity: EntitySong, ID: item.SongID}
	}
	id, err := tx.register(EntityItem, item.ID)
	if err != nil {
		return err
	}
	item.ID = id
	item.SetlistID = setlistID
	for i := range item.Sections {
		secID, err := tx.register(EntityItemSection, item.Sections[i].ID)
		if err != nil {
			return err
		}
		item.Sections[i].ID = secID
	}
	item.Sections = compactItemSections(item.Sections)
	return nil
}

// GetSetlist returns a single setlist by ID.
func (s *Store) GetSetlist(id string) (catalog.Setlist, error) {
	var setlist catalog.Setlist
	err := s.view(func(st state) error {
		found, ok := st.setlists[id]
		if !ok {
			return NotFoundError{Entity: EntitySetlist, ID: id}
		}
		setlist = found.Clone()
		return nil
	})
	return setlist, err
}

// ListSetlists returns every setlist ordered by performance date, undated
// ones last, then by title.
func (s *Store) ListSetlists() []catalog.Setlist {
	var setlists []catalog.Setlist
	_ = s.view(func(st state) error {
		setlists = make([]catalog.Setlist, 0, len(st.setlists))
		for _, setlist := range st.setlists {
			setlists = append(setlists, setlist.Clone())
		}
		return nil
	})
	sort.SliceStable(setlists, func(i, j int) bool {
		a, b := setlists[i], setlists[j]
		switch {
		case a.PerformanceDate != nil && b.PerformanceDate == nil:
			return true
		case a.PerformanceDate == nil && b.PerformanceDate != nil:
			return false
		case a.PerformanceDate != nil && !a.PerformanceDate.Equal(*b.PerformanceDate):
			return a.PerformanceDate.Before(*b.PerformanceDate)
		}
		at, bt := strings.ToLower(a.Title), strings.ToLower(b.Title)
		if at != bt {
			return at < bt
		}
		return a.ID < b.ID
	})
	return setlists
}

// UpdateSetlist applies mutator to a setlist's own fields. Items are managed
// by their own operations and are kept as they were.
func (s *Store) UpdateSetlist(id string, mutator func(*catalog.Setlist) error) (catalog.Setlist, error) {
	var updated catalog.Setlist
	err := s.update(func(tx *txn) error {
		setlist, err := tx.setlist(id)
		if err != nil {
			return err
		}
		before := setlist.Clone()
		if err := mutator(&setlist); err != nil {
			return err
		}
		setlist.ID = before.ID
		setlist.CreatedAt = before.CreatedAt
		setlist.Items = before.Items
		setlist.Title = normalizeTitle(setlist.Title)
		if err := tx.putSetlist(setlist); err != nil {
			return err
		}
		updated = tx.state.setlists[id].Clone()
		return nil
	})
	return updated, err
}

// DeleteSetlist removes a setlist with its items and their sections. Songs are
// untouched. Images owned by the removed items are returned.
func (s *Store) DeleteSetlist(id string) ([]catalog.ImageRef, error) {
	var images []catalog.ImageRef
	err := s.update(func(tx *txn) error {
		setlist, err := tx.setlist(id)
		if err != nil {
			return err
		}
		for _, item := range setlist.Items {
			tx.releaseItem(item)
			images = append(images, item.Images...)
		}
		tx.release(id)
		delete(tx.state.setlists, id)
		return nil
	})
	return images, err
}

// ContainsSong reports whether the setlist already has an item for songID.
// Callers check it before AttachSong; the store does not deduplicate.
func (s *Store) ContainsSong(setlistID, songID string) (bool, error) {
	var contains bool
	err := s.view(func(st state) error {
		setlist, ok := st.setlists[setlistID]
		if !ok {
			return NotFoundError{Entity: EntitySetlist, ID: setlistID}
		}
		contains = setlist.ContainsSong(songID)
		return nil
	})
	return contains, err
}

func (tx *txn) releaseItem(item catalog.SetlistItem) {
	for _, sec := range item.Sections {
		tx.release(sec.ID)
	}
	tx.release(item.ID)
}
