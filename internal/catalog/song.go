package catalog

import (
	"strings"
	"time"

	"gigbook/internal/ordering"
)

// Tempo bounds in beats per minute.
const (
	MinTempo = 1
	MaxTempo = 300
)

// Song is a reusable catalog entry.
type Song struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	Tempo         *int       `json:"tempo,omitempty"`
	Key           *string    `json:"key,omitempty"`
	TimeSignature *string    `json:"time_signature,omitempty"`
	Notes         *string    `json:"notes,omitempty"`
	Images        []ImageRef `json:"images"`
	Sections      []Section  `json:"sections"`
}

// NewSong returns a song with empty, non-nil collections.
func NewSong(title string) Song {
	return Song{
		Title:    title,
		Images:   []ImageRef{},
		Sections: []Section{},
	}
}

// Validate runs the pre-persistence checks and returns the first failure.
func (s Song) Validate() error {
	if strings.TrimSpace(s.Title) == "" {
		return invalid("song", ErrEmptyTitle, "title is required")
	}
	if err := validateTempo("song", s.Tempo); err != nil {
		return err
	}
	if len(s.Images) > MaxImages {
		return invalid("song", ErrImageLimitExceeded, "%d images, limit is %d", len(s.Images), MaxImages)
	}
	if ordering.HasDuplicates(s.Sections) {
		return invalid("song", ErrDuplicateOrder, "sections share an order value")
	}
	for _, sec := range s.Sections {
		if err := sec.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// SortedSections returns the sections in order.
func (s Song) SortedSections() []Section {
	return ordering.Sorted(s.Sections)
}

// Clone deep-copies the song including its owned collections.
func (s Song) Clone() Song {
	out := s
	out.Tempo = cloneInt(s.Tempo)
	out.Key = cloneString(s.Key)
	out.TimeSignature = cloneString(s.TimeSignature)
	out.Notes = cloneString(s.Notes)
	out.Images = cloneImages(s.Images)
	out.Sections = make([]Section, len(s.Sections))
	for i, sec := range s.Sections {
		out.Sections[i] = sec.Clone()
	}
	return out
}

// SectionTypes lists the types of the song's sections.
func (s Song) SectionTypes() []SectionType {
	types := make([]SectionType, len(s.Sections))
	for i, sec := range s.Sections {
		types[i] = sec.Type
	}
	return types
}

func validateTempo(entity string, tempo *int) error {
	if tempo == nil {
		return nil
	}
	if *tempo < MinTempo || *tempo > MaxTempo {
		return invalid(entity, ErrInvalidTempo, "%d not in [%d, %d]", *tempo, MinTempo, MaxTempo)
	}
	return nil
}
