package catalog

import (
	"strings"
	"time"

	"gigbook/internal/ordering"
)

// Setlist is a named, dated performance plan.
type Setlist struct {
	ID              string        `json:"id"`
	Title           string        `json:"title"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
	PerformanceDate *time.Time    `json:"performance_date,omitempty"`
	Notes           *string       `json:"notes,omitempty"`
	Items           []SetlistItem `json:"items"`
}

// NewSetlist returns a setlist with an empty, non-nil item list.
func NewSetlist(title string) Setlist {
	return Setlist{Title: title, Items: []SetlistItem{}}
}

// Validate checks the title, that no two items share an order value, and
// every item. The order check reports; it does not repair.
func (s Setlist) Validate() error {
	if strings.TrimSpace(s.Title) == "" {
		return invalid("setlist", ErrEmptyTitle, "title is required")
	}
	if ordering.HasDuplicates(s.Items) {
		return invalid("setlist", ErrDuplicateOrder, "items share an order value")
	}
	for _, item := range s.Items {
		if err := item.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ContainsSong reports whether songID is already attached.
func (s Setlist) ContainsSong(songID string) bool {
	for _, item := range s.Items {
		if item.SongID == songID {
			return true
		}
	}
	return false
}

// SortedItems returns the items in performance order.
func (s Setlist) SortedItems() []SetlistItem {
	return ordering.Sorted(s.Items)
}

// Clone deep-copies the setlist and everything it owns.
func (s Setlist) Clone() Setlist {
	out := s
	if s.PerformanceDate != nil {
		d := *s.PerformanceDate
		out.PerformanceDate = &d
	}
	out.Notes = cloneString(s.Notes)
	out.Items = make([]SetlistItem, len(s.Items))
	for i, item := range s.Items {
		out.Items[i] = item.Clone()
	}
	return out
}

// SetlistItem attaches a song to a setlist with sparse per-performance
// overrides. SetlistID is empty while the item is detached.
type SetlistItem struct {
	ID            string               `json:"id"`
	SongID        string               `json:"song_id"`
	SetlistID     string               `json:"setlist_id,omitempty"`
	Order         int                  `json:"order"`
	KeyOverride   *string              `json:"key_override,omitempty"`
	TempoOverride *int                 `json:"tempo_override,omitempty"`
	Notes         *string              `json:"notes,omitempty"`
	Sections      []SetlistItemSection `json:"sections"`
	Images        []ImageRef           `json:"images"`
}

// NewSetlistItem references song at the given order. Overrides stay unset and
// sections are not copied.
func NewSetlistItem(song Song, order int) SetlistItem {
	return SetlistItem{
		SongID:   song.ID,
		Order:    order,
		Sections: []SetlistItemSection{},
		Images:   []ImageRef{},
	}
}

func (i *SetlistItem) Position() int     { return i.Order }
func (i *SetlistItem) SetPosition(o int) { i.Order = o }

// Validate checks the tempo override, image count and section ordering.
func (i SetlistItem) Validate() error {
	if i.SongID == "" {
		return invalid("setlist item", ErrMissingSong, "song reference is required")
	}
	if err := validateTempo("setlist item", i.TempoOverride); err != nil {
		return err
	}
	if len(i.Images) > MaxImages {
		return invalid("setlist item", ErrImageLimitExceeded, "%d images, limit is %d", len(i.Images), MaxImages)
	}
	if ordering.HasDuplicates(i.Sections) {
		return invalid("setlist item", ErrDuplicateOrder, "sections share an order value")
	}
	for _, sec := range i.Sections {
		if err := sec.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// SortedSections returns the item's sections in order.
func (i SetlistItem) SortedSections() []SetlistItemSection {
	return ordering.Sorted(i.Sections)
}

// SectionTypes lists the types of the item's sections.
func (i SetlistItem) SectionTypes() []SectionType {
	types := make([]SectionType, len(i.Sections))
	for idx, sec := range i.Sections {
		types[idx] = sec.Type
	}
	return types
}

// Clone deep-copies the item.
func (i SetlistItem) Clone() SetlistItem {
	out := i
	out.KeyOverride = cloneString(i.KeyOverride)
	out.TempoOverride = cloneInt(i.TempoOverride)
	out.Notes = cloneString(i.Notes)
	out.Images = cloneImages(i.Images)
	out.Sections = make([]SetlistItemSection, len(i.Sections))
	for idx, sec := range i.Sections {
		out.Sections[idx] = sec.Clone()
	}
	return out
}

// DisplayKey is the override key when set, else the song's current key.
func DisplayKey(item SetlistItem, song Song) *string {
	if item.KeyOverride != nil {
		return cloneString(item.KeyOverride)
	}
	return cloneString(song.Key)
}

// DisplayTempo is the override tempo when set, else the song's current tempo.
func DisplayTempo(item SetlistItem, song Song) *int {
	if item.TempoOverride != nil {
		return cloneInt(item.TempoOverride)
	}
	return cloneInt(song.Tempo)
}

// CloneSections snapshots the song's sections as item sections in the same
// order. The copies carry no identity yet.
func CloneSections(song Song) []SetlistItemSection {
	sorted := song.SortedSections()
	out := make([]SetlistItemSection, len(sorted))
	for i, sec := range sorted {
		out[i] = NewItemSectionFrom(sec)
		out[i].Order = i
	}
	return out
}
