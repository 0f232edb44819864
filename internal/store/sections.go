package store

import (
	"gigbook/internal/catalog"
	"gigbook/internal/ordering"
)

// AddSection appends a section to a song. Quick-add sections without a label
// are numbered per type ("1", "2", ...).
func (s *Store) AddSection(songID string, section catalog.Section) (catalog.Section, error) {
	var added catalog.Section
	err := s.update(func(tx *txn) error {
		song, err := tx.song(songID)
		if err != nil {
			return err
		}
		if err := section.Validate(); err != nil {
			return err
		}
		if section.Type != catalog.SectionCustom && section.Label == nil {
			label := catalog.NextLabel(section.Type, song.SectionTypes())
			section.Label = &label
		}
		id, err := tx.register(EntitySection, section.ID)
		if err != nil {
			return err
		}
		section.ID = id
		song.Sections = ordering.Append(song.Sections, section)
		if err := tx.putSong(song); err != nil {
			return err
		}
		added = song.Sections[len(song.Sections)-1].Clone()
		return nil
	})
	return added, err
}

// UpdateSection applies mutator to a section. Its identity and order are kept;
// use MoveSection to reorder.
func (s *Store) UpdateSection(songID, sectionID string, mutator func(*catalog.Section) error) (catalog.Section, error) {
	var updated catalog.Section
	err := s.update(func(tx *txn) error {
		song, err := tx.song(songID)
		if err != nil {
			return err
		}
		idx := sectionIndex(song.Sections, sectionID)
		if idx < 0 {
			return NotFoundError{Entity: EntitySection, ID: sectionID}
		}
		sec := song.Sections[idx]
		if err := mutator(&sec); err != nil {
			return err
		}
		sec.ID = song.Sections[idx].ID
		sec.Order = song.Sections[idx].Order
		song.Sections[idx] = sec
		if err := tx.putSong(song); err != nil {
			return err
		}
		updated = sec.Clone()
		return nil
	})
	return updated, err
}

// DeleteSection removes a section and compacts the order of its siblings.
func (s *Store) DeleteSection(songID, sectionID string) error {
	return s.update(func(tx *txn) error {
		song, err := tx.song(songID)
		if err != nil {
			return err
		}
		out, _, ok := ordering.RemoveFunc(song.Sections, func(sec catalog.Section) bool { return sec.ID == sectionID })
		if !ok {
			return NotFoundError{Entity: EntitySection, ID: sectionID}
		}
		tx.release(sectionID)
		song.Sections = out
		return tx.putSong(song)
	})
}

// MoveSection moves the section at from to position to, both indexes into the
// order-sorted list, and returns the new arrangement.
func (s *Store) MoveSection(songID string, from, to int) ([]catalog.Section, error) {
	var sections []catalog.Section
	err := s.update(func(tx *txn) error {
		song, err := tx.song(songID)
		if err != nil {
			return err
		}
		song.Sections = ordering.Move(song.Sections, from, to)
		if err := tx.putSong(song); err != nil {
			return err
		}
		sections = song.Clone().Sections
		return nil
	})
	return sections, err
}

func sectionIndex(sections []catalog.Section, id string) int {
	for i := range sections {
		if sections[i].ID == id {
			return i
		}
	}
	return -1
}

func compactSections(sections []catalog.Section) []catalog.Section {
	return ordering.Compact(sections)
}

func compactItemSections(sections []catalog.SetlistItemSection) []catalog.SetlistItemSection {
	return ordering.Compact(sections)
}

func compactItems(items []catalog.SetlistItem) []catalog.SetlistItem {
	return ordering.Compact(items)
}
