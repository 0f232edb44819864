package setlists

import (
	"context"

	"gigbook/internal/catalog"
)

// RunSheet is a setlist as it is played: items in order with the values a
// performer reads off the stand.
type RunSheet struct {
	Setlist catalog.Setlist
	Entries []Entry
}

// Entry is one resolved line of a run sheet.
type Entry struct {
	Number          int
	ItemID          string
	SongID          string
	Title           string
	Key             *string
	KeyOverridden   bool
	Tempo           *int
	TempoOverridden bool
	TimeSignature   *string
	Notes           *string
	Sections        []string
	Images          int
}

// RunSheet resolves every item against the current state of its song. An
// item's own sections win over the song's; items without sections fall back
// to the song's arrangement.
func (s *service) RunSheet(ctx context.Context, setlistID string) (RunSheet, error) {
	if err := ctx.Err(); err != nil {
		return RunSheet{}, err
	}
	setlist, err := s.store.GetSetlist(setlistID)
	if err != nil {
		return RunSheet{}, err
	}
	resolved, err := s.store.ResolveSetlist(setlistID)
	if err != nil {
		return RunSheet{}, err
	}

	sheet := RunSheet{Setlist: setlist, Entries: make([]Entry, 0, len(resolved))}
	for i, r := range resolved {
		entry := Entry{
			Number:          i + 1,
			ItemID:          r.Item.ID,
			SongID:          r.Song.ID,
			Title:           r.Song.Title,
			Key:             r.Key,
			KeyOverridden:   r.Item.KeyOverride != nil,
			Tempo:           r.Tempo,
			TempoOverridden: r.Item.TempoOverride != nil,
			TimeSignature:   r.Song.TimeSignature,
			Notes:           r.Item.Notes,
			Images:          len(r.Item.Images) + len(r.Song.Images),
		}
		if sections := r.Item.SortedSections(); len(sections) > 0 {
			for _, sec := range sections {
				entry.Sections = append(entry.Sections, sec.DisplayName())
			}
		} else {
			for _, sec := range r.Song.SortedSections() {
				entry.Sections = append(entry.Sections, sec.DisplayName())
			}
		}
		sheet.Entries = append(sheet.Entries, entry)
	}
	return sheet, nil
}
