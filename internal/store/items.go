package store

import (
	"fmt"

	"gigbook/internal/catalog"
	"gigbook/internal/ordering"
)

// ResolvedItem pairs an item with the song it references and the values a
// performer sees: the override when set, else the song's current value.
type ResolvedItem struct {
	Item  catalog.SetlistItem
	Song  catalog.Song
	Key   *string
	Tempo *int
}

// AttachSong appends a new item for songID at the end of the setlist. The item
// has no overrides and no sections; see CloneSectionsFromSong.
func (s *Store) AttachSong(setlistID, songID string) (catalog.SetlistItem, error) {
	var attached catalog.SetlistItem
	err := s.update(func(tx *txn) error {
		setlist, err := tx.setlist(setlistID)
		if err != nil {
			return err
		}
		song, err := tx.song(songID)
		if err != nil {
			return err
		}
		item := catalog.NewSetlistItem(song, len(setlist.Items))
		id, err := tx.register(EntityItem, "")
		if err != nil {
			return err
		}
		item.ID = id
		item.SetlistID = setlistID
		setlist.Items = ordering.Append(setlist.Items, item)
		if err := tx.putSetlist(setlist); err != nil {
			return err
		}
		attached = setlist.Items[len(setlist.Items)-1].Clone()
		return nil
	})
	return attached, err
}

// RemoveItem deletes an item and its sections, compacting the order of the
// remaining items. The referenced song is kept. The item's images are returned.
func (s *Store) RemoveItem(setlistID, itemID string) ([]catalog.ImageRef, error) {
	var images []catalog.ImageRef
	err := s.update(func(tx *txn) error {
		setlist, err := tx.setlist(setlistID)
		if err != nil {
			return err
		}
		out, removed, ok := ordering.RemoveFunc(setlist.Items, func(item catalog.SetlistItem) bool { return item.ID == itemID })
		if !ok {
			return NotFoundError{Entity: EntityItem, ID: itemID}
		}
		tx.releaseItem(removed)
		setlist.Items = out
		images = removed.Images
		return tx.putSetlist(setlist)
	})
	return images, err
}

// MoveItem moves the item at from to position to in performance order.
func (s *Store) MoveItem(setlistID string, from, to int) ([]catalog.SetlistItem, error) {
	var items []catalog.SetlistItem
	err := s.update(func(tx *txn) error {
		setlist, err := tx.setlist(setlistID)
		if err != nil {
			return err
		}
		setlist.Items = ordering.Move(setlist.Items, from, to)
		if err := tx.putSetlist(setlist); err != nil {
			return err
		}
		items = setlist.Clone().Items
		return nil
	})
	return items, err
}

// UpdateItem applies mutator to an item's overrides and notes. The song
// reference, order, sections and images are kept.
func (s *Store) UpdateItem(setlistID, itemID string, mutator func(*catalog.SetlistItem) error) (catalog.SetlistItem, error) {
	var updated catalog.SetlistItem
	err := s.mutateItem(setlistID, itemID, func(item *catalog.SetlistItem) error {
		before := item.Clone()
		if err := mutator(item); err != nil {
			return err
		}
		item.ID = before.ID
		item.SongID = before.SongID
		item.SetlistID = before.SetlistID
		item.Order = before.Order
		item.Sections = before.Sections
		item.Images = before.Images
		updated = item.Clone()
		return nil
	})
	return updated, err
}

// ResolveItem returns the item with its song and live display values.
func (s *Store) ResolveItem(setlistID, itemID string) (ResolvedItem, error) {
	var resolved ResolvedItem
	err := s.view(func(st state) error {
		setlist, ok := st.setlists[setlistID]
		if !ok {
			return NotFoundError{Entity: EntitySetlist, ID: setlistID}
		}
		idx := itemIndex(setlist.Items, itemID)
		if idx < 0 {
			return NotFoundError{Entity: EntityItem, ID: itemID}
		}
		var err error
		resolved, err = resolve(st, setlist.Items[idx])
		return err
	})
	return resolved, err
}

// ResolveSetlist resolves every item of a setlist in performance order.
func (s *Store) ResolveSetlist(setlistID string) ([]ResolvedItem, error) {
	var resolved []ResolvedItem
	err := s.view(func(st state) error {
		setlist, ok := st.setlists[setlistID]
		if !ok {
			return NotFoundError{Entity: EntitySetlist, ID: setlistID}
		}
		for _, item := range setlist.SortedItems() {
			r, err := resolve(st, item)
			if err != nil {
				return err
			}
			resolved = append(resolved, r)
		}
		return nil
	})
	return resolved, err
}

func resolve(st state, item catalog.SetlistItem) (ResolvedItem, error) {
	song, ok := st.songs[item.SongID]
	if !ok {
		return ResolvedItem{}, NotFoundError{Entity: EntitySong, ID: item.SongID}
	}
	return ResolvedItem{
		Item:  item.Clone(),
		Song:  song.Clone(),
		Key:   catalog.DisplayKey(item, song),
		Tempo: catalog.DisplayTempo(item, song),
	}, nil
}

// CloneSectionsFromSong replaces the item's sections with fresh copies of the
// referenced song's current sections.
func (s *Store) CloneSectionsFromSong(setlistID, itemID string) ([]catalog.SetlistItemSection, error) {
	var sections []catalog.SetlistItemSection
	err := s.mutateItemTx(setlistID, itemID, func(tx *txn, item *catalog.SetlistItem) error {
		song, err := tx.song(item.SongID)
		if err != nil {
			return err
		}
		for _, sec := range item.Sections {
			tx.release(sec.ID)
		}
		copies := catalog.CloneSections(song)
		for i := range copies {
			id, err := tx.register(EntityItemSection, "")
			if err != nil {
				return err
			}
			copies[i].ID = id
		}
		item.Sections = copies
		sections = item.Clone().Sections
		return nil
	})
	return sections, err
}

// AddItemSection appends a section to an item.
func (s *Store) AddItemSection(setlistID, itemID string, section catalog.SetlistItemSection) (catalog.SetlistItemSection, error) {
	var added catalog.SetlistItemSection
	err := s.mutateItemTx(setlistID, itemID, func(tx *txn, item *catalog.SetlistItem) error {
		if err := section.Validate(); err != nil {
			return err
		}
		if section.Type != catalog.SectionCustom && section.Label == nil {
			label := catalog.NextLabel(section.Type, item.SectionTypes())
			section.Label = &label
		}
		id, err := tx.register(EntityItemSection, section.ID)
		if err != nil {
			return err
		}
		section.ID = id
		item.Sections = ordering.Append(item.Sections, section)
		added = item.Sections[len(item.Sections)-1].Clone()
		return nil
	})
	return added, err
}

// UpdateItemSection applies mutator to an item section, keeping its identity
// and order.
func (s *Store) UpdateItemSection(setlistID, itemID, sectionID string, mutator func(*catalog.SetlistItemSection) error) (catalog.SetlistItemSection, error) {
	var updated catalog.SetlistItemSection
	err := s.mutateItem(setlistID, itemID, func(item *catalog.SetlistItem) error {
		idx := itemSectionIndex(item.Sections, sectionID)
		if idx < 0 {
			return NotFoundError{Entity: EntityItemSection, ID: sectionID}
		}
		sec := item.Sections[idx]
		if err := mutator(&sec); err != nil {
			return err
		}
		sec.ID = item.Sections[idx].ID
		sec.Order = item.Sections[idx].Order
		item.Sections[idx] = sec
		updated = sec.Clone()
		return nil
	})
	return updated, err
}

// DeleteItemSection removes an item section and compacts its siblings.
func (s *Store) DeleteItemSection(setlistID, itemID, sectionID string) error {
	return s.mutateItemTx(setlistID, itemID, func(tx *txn, item *catalog.SetlistItem) error {
		out, _, ok := ordering.RemoveFunc(item.Sections, func(sec catalog.SetlistItemSection) bool { return sec.ID == sectionID })
		if !ok {
			return NotFoundError{Entity: EntityItemSection, ID: sectionID}
		}
		tx.release(sectionID)
		item.Sections = out
		return nil
	})
}

// MoveItemSection reorders an item's sections.
func (s *Store) MoveItemSection(setlistID, itemID string, from, to int) ([]catalog.SetlistItemSection, error) {
	var sections []catalog.SetlistItemSection
	err := s.mutateItem(setlistID, itemID, func(item *catalog.SetlistItem) error {
		item.Sections = ordering.Move(item.Sections, from, to)
		sections = item.Clone().Sections
		return nil
	})
	return sections, err
}

// AddItemImage appends a run-of-show image to an item, subject to the same
// limit as song images.
func (s *Store) AddItemImage(setlistID, itemID string, ref catalog.ImageRef) (catalog.SetlistItem, error) {
	var updated catalog.SetlistItem
	err := s.mutateItem(setlistID, itemID, func(item *catalog.SetlistItem) error {
		if err := catalog.CheckImageCapacity("setlist item", len(item.Images), 1); err != nil {
			return err
		}
		item.Images = append(item.Images, ref)
		updated = item.Clone()
		return nil
	})
	return updated, err
}

// RemoveItemImage drops the item image at index and returns it.
func (s *Store) RemoveItemImage(setlistID, itemID string, index int) (catalog.ImageRef, error) {
	var removed catalog.ImageRef
	err := s.mutateItem(setlistID, itemID, func(item *catalog.SetlistItem) error {
		if index < 0 || index >= len(item.Images) {
			return NotFoundError{Entity: EntityImage, ID: fmt.Sprintf("%s[%d]", itemID, index)}
		}
		removed = item.Images[index]
		item.Images = append(item.Images[:index:index], item.Images[index+1:]...)
		return nil
	})
	return removed, err
}

func (s *Store) mutateItem(setlistID, itemID string, fn func(*catalog.SetlistItem) error) error {
	return s.mutateItemTx(setlistID, itemID, func(_ *txn, item *catalog.SetlistItem) error {
		return fn(item)
	})
}

// mutateItemTx runs fn on a copy of the item and stores the owning setlist,
// stamping its UpdatedAt.
func (s *Store) mutateItemTx(setlistID, itemID string, fn func(*txn, *catalog.SetlistItem) error) error {
	return s.update(func(tx *txn) error {
		setlist, err := tx.setlist(setlistID)
		if err != nil {
			return err
		}
		idx := itemIndex(setlist.Items, itemID)
		if idx < 0 {
			return NotFoundError{Entity: EntityItem, ID: itemID}
		}
		item := setlist.Items[idx]
		if err := fn(tx, &item); err != nil {
			return err
		}
		setlist.Items[idx] = item
		return tx.putSetlist(setlist)
	})
}

func itemIndex(items []catalog.SetlistItem, id string) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}

func itemSectionIndex(sections []catalog.SetlistItemSection, id string) int {
	for i := range sections {
		if sections[i].ID == id {
			return i
		}
	}
	return -1
}
