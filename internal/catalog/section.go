package catalog

import (
	"fmt"
	"strings"
)

// SectionType tags a structural unit of a song.
type SectionType string

const (
	SectionVerse        SectionType = "verse"
	SectionChorus       SectionType = "chorus"
	SectionPreChorus    SectionType = "pre-chorus"
	SectionBridge       SectionType = "bridge"
	SectionIntro        SectionType = "intro"
	SectionOutro        SectionType = "outro"
	SectionInstrumental SectionType = "instrumental"
	SectionCustom       SectionType = "custom"
)

// SectionTypes lists every section type in quick-add order.
var SectionTypes = []SectionType{
	SectionVerse,
	SectionChorus,
	SectionPreChorus,
	SectionBridge,
	SectionIntro,
	SectionOutro,
	SectionInstrumental,
	SectionCustom,
}

var sectionStyles = map[SectionType]struct {
	tag   string
	color string
}{
	SectionVerse:        {"V", "#3B82F6"},
	SectionChorus:       {"C", "#EF4444"},
	SectionPreChorus:    {"PC", "#F97316"},
	SectionBridge:       {"B", "#8B5CF6"},
	SectionIntro:        {"I", "#22C55E"},
	SectionOutro:        {"O", "#6B7280"},
	SectionInstrumental: {"Inst", "#14B8A6"},
	SectionCustom:       {"", "#EC4899"},
}

// ParseSectionType resolves a section type by name.
func ParseSectionType(raw string) (SectionType, error) {
	t := SectionType(strings.ToLower(strings.TrimSpace(raw)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown section type %q", raw)
	}
	return t, nil
}

// Valid reports whether t is a known section type.
func (t SectionType) Valid() bool {
	_, ok := sectionStyles[t]
	return ok
}

// Tag is the short default display label, empty for custom sections.
func (t SectionType) Tag() string { return sectionStyles[t].tag }

// Color is the display color as a hex string.
func (t SectionType) Color() string { return sectionStyles[t].color }

// Section is a structural unit owned by a Song.
type Section struct {
	ID    string      `json:"id"`
	Type  SectionType `json:"type"`
	Order int         `json:"order"`
	Label *string     `json:"label,omitempty"`
	Name  *string     `json:"name,omitempty"`
}

// NewSection builds a quick-add section of a fixed type.
func NewSection(t SectionType, label string) Section {
	s := Section{Type: t}
	if label != "" {
		s.Label = &label
	}
	return s
}

// NewCustomSection builds a custom section carrying a user-supplied name.
func NewCustomSection(name string) (Section, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Section{}, invalid("section", ErrInvalidSection, "custom sections need a name")
	}
	return Section{Type: SectionCustom, Name: &name}, nil
}

func (s *Section) Position() int     { return s.Order }
func (s *Section) SetPosition(o int) { s.Order = o }

// Clone copies the section without sharing its optional fields.
func (s Section) Clone() Section {
	s.Label = cloneString(s.Label)
	s.Name = cloneString(s.Name)
	return s
}

// DisplayName renders the label shown for the section.
func (s Section) DisplayName() string { return displayName(s.Type, s.Label, s.Name) }

// Validate checks the section type and custom name.
func (s Section) Validate() error { return validateSection(s.Type, s.Name) }

// SetlistItemSection mirrors Section but is owned by a SetlistItem, so a
// setlist's structure can diverge from the song's canonical one.
type SetlistItemSection struct {
	ID    string      `json:"id"`
	Type  SectionType `json:"type"`
	Order int         `json:"order"`
	Label *string     `json:"label,omitempty"`
	Name  *string     `json:"name,omitempty"`
}

// NewItemSectionFrom copies type, order, label and name from a song section.
// The copy has no identity until the store assigns one.
func NewItemSectionFrom(s Section) SetlistItemSection {
	return SetlistItemSection{
		Type:  s.Type,
		Order: s.Order,
		Label: cloneString(s.Label),
		Name:  cloneString(s.Name),
	}
}

// NewItemSection builds a quick-add item section of a fixed type.
func NewItemSection(t SectionType, label string) SetlistItemSection {
	return NewItemSectionFrom(NewSection(t, label))
}

// NewCustomItemSection builds a custom item section.
func NewCustomItemSection(name string) (SetlistItemSection, error) {
	s, err := NewCustomSection(name)
	if err != nil {
		return SetlistItemSection{}, err
	}
	return NewItemSectionFrom(s), nil
}

func (s *SetlistItemSection) Position() int     { return s.Order }
func (s *SetlistItemSection) SetPosition(o int) { s.Order = o }

// Clone copies the section without sharing its optional fields.
func (s SetlistItemSection) Clone() SetlistItemSection {
	s.Label = cloneString(s.Label)
	s.Name = cloneString(s.Name)
	return s
}

// DisplayName renders the label shown for the section.
func (s SetlistItemSection) DisplayName() string { return displayName(s.Type, s.Label, s.Name) }

// Validate checks the section type and custom name.
func (s SetlistItemSection) Validate() error { return validateSection(s.Type, s.Name) }

// NextLabel returns the numeric suffix for the next quick-add section of type t
// given the types already present.
func NextLabel(t SectionType, existing []SectionType) string {
	n := 1
	for _, e := range existing {
		if e == t {
			n++
		}
	}
	return fmt.Sprintf("%d", n)
}

func displayName(t SectionType, label, name *string) string {
	if t == SectionCustom && name != nil {
		return *name
	}
	if label == nil {
		return t.Tag()
	}
	return t.Tag() + *label
}

func validateSection(t SectionType, name *string) error {
	if !t.Valid() {
		return invalid("section", ErrInvalidSection, "unknown type %q", t)
	}
	if t == SectionCustom && (name == nil || strings.TrimSpace(*name) == "") {
		return invalid("section", ErrInvalidSection, "custom sections need a name")
	}
	return nil
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneInt(i *int) *int {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}
