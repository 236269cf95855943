package content

import "strings"

// Tier is a reading-complexity level.
type Tier string

const (
	TierBasic        Tier = "basic"
	TierIntermediate Tier = "intermediate"
	TierAdvanced     Tier = "advanced"
)

var tierOrder = []Tier{TierBasic, TierIntermediate, TierAdvanced}

// ParseTier maps a user supplied tier name to a Tier. Unknown or empty
// values fall back to TierIntermediate.
func ParseTier(s string) Tier {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "basic", "simple", "easy":
		return TierBasic
	case "advanced", "detailed", "clinical":
		return TierAdvanced
	default:
		return TierIntermediate
	}
}

// Levels holds the same text written at each reading tier.
type Levels struct {
	Basic        string `json:"basic,omitempty" yaml:"basic,omitempty"`
	Intermediate string `json:"intermediate,omitempty" yaml:"intermediate,omitempty"`
	Advanced     string `json:"advanced,omitempty" yaml:"advanced,omitempty"`
}

// At returns the text for exactly one tier.
func (l Levels) At(t Tier) string {
	switch t {
	case TierBasic:
		return l.Basic
	case TierAdvanced:
		return l.Advanced
	default:
		return l.Intermediate
	}
}

// IsEmpty reports whether no tier carries text.
func (l Levels) IsEmpty() bool {
	return l.Basic == "" && l.Intermediate == "" && l.Advanced == ""
}

// Section is one titled block of an entry's content.
type Section struct {
	Title          string `json:"title" yaml:"title" validate:"required"`
	TitleLocalized string `json:"title_localized,omitempty" yaml:"titleLocalized,omitempty"`
	Levels         Levels `json:"levels" yaml:"levels"`
	Localized      Levels `json:"localized,omitempty" yaml:"localized,omitempty"`
}

// Text returns the section text at tier t. When t has no text the nearest
// lower tier is used, then any tier that has text. Localized requests fall
// back to the canonical text when no localized text exists.
func (s Section) Text(t Tier, localized bool) string {
	levels := s.Levels
	if localized && !s.Localized.IsEmpty() {
		levels = s.Localized
	}
	if text := levels.At(t); text != "" {
		return text
	}
	idx := 1
	for i, candidate := range tierOrder {
		if candidate == t {
			idx = i
		}
	}
	for i := idx - 1; i >= 0; i-- {
		if text := levels.At(tierOrder[i]); text != "" {
			return text
		}
	}
	for _, candidate := range tierOrder {
		if text := levels.At(candidate); text != "" {
			return text
		}
	}
	return ""
}

// RenderedSection is a section flattened to a single tier.
type RenderedSection struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}
