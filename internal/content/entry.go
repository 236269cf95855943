// Package content defines the canonical content model shared by the entry
// store, the bilingual adapter and the resolver: entries, their sections and
// reading tiers, localized source records, and resolution results.
package content

import "strings"

// EntryType classifies what an entry describes.
type EntryType string

const (
	TypeCondition  EntryType = "condition"
	TypeAnatomy    EntryType = "anatomy"
	TypeMedication EntryType = "medication"
	TypeProcedure  EntryType = "procedure"
	TypeSymptom    EntryType = "symptom"
	TypeTest       EntryType = "test"
	TypeWellness   EntryType = "wellness"
)

// Category is the coarse medical domain of an entry.
type Category string

const (
	CategoryGeneral         Category = "general"
	CategoryRespiratory     Category = "respiratory"
	CategoryCardiovascular  Category = "cardiovascular"
	CategoryDigestive       Category = "digestive"
	CategoryEndocrine       Category = "endocrine"
	CategoryNeurological    Category = "neurological"
	CategoryMusculoskeletal Category = "musculoskeletal"
	CategoryMentalHealth    Category = "mental-health"
	CategoryInfectious      Category = "infectious"
	CategoryDermatology     Category = "dermatology"
	CategoryPediatrics      Category = "pediatrics"
	CategoryWomensHealth    Category = "womens-health"
)

// Entry is the canonical content unit. EntryID is assigned once and never
// changes; it is the only stable join key.
type Entry struct {
	EntryID        string         `json:"entry_id" yaml:"entryId" validate:"required,max=200"`
	EntryType      EntryType      `json:"entry_type" yaml:"entryType" validate:"required,oneof=condition anatomy medication procedure symptom test wellness"`
	Name           string         `json:"name" yaml:"name" validate:"required"`
	NameLocalized  string         `json:"name_localized,omitempty" yaml:"nameLocalized,omitempty"`
	Aliases        []string       `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	Category       Category       `json:"category" yaml:"category"`
	Summary        string         `json:"summary,omitempty" yaml:"summary,omitempty"`
	Content        []Section      `json:"content,omitempty" yaml:"content,omitempty" validate:"dive"`
	SearchMetadata SearchMetadata `json:"search_metadata" yaml:"searchMetadata"`
	References     []Reference    `json:"references,omitempty" yaml:"references,omitempty" validate:"dive"`
}

// SearchMetadata carries the keyword lists used by relevance scoring.
type SearchMetadata struct {
	PrimaryKeywords   []string `json:"primary_keywords,omitempty" yaml:"primaryKeywords,omitempty"`
	SecondaryKeywords []string `json:"secondary_keywords,omitempty" yaml:"secondaryKeywords,omitempty"`
	Synonyms          []string `json:"synonyms,omitempty" yaml:"synonyms,omitempty"`
	Tags              []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// Reference is a single citation.
type Reference struct {
	Title  string `json:"title" yaml:"title" validate:"required"`
	Source string `json:"source,omitempty" yaml:"source,omitempty"`
	URL    string `json:"url,omitempty" yaml:"url,omitempty" validate:"omitempty,url"`
	Year   int    `json:"year,omitempty" yaml:"year,omitempty"`
}

// HasAlias reports whether alias is already present, ignoring case.
func (e Entry) HasAlias(alias string) bool {
	for _, a := range e.Aliases {
		if strings.EqualFold(a, alias) {
			return true
		}
	}
	return false
}

// HasSection reports whether a section with the given title exists,
// ignoring case.
func (e Entry) HasSection(title string) bool {
	for _, s := range e.Content {
		if strings.EqualFold(s.Title, title) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can build a modified entry without
// touching the stored one.
func (e Entry) Clone() Entry {
	out := e
	out.Aliases = cloneStrings(e.Aliases)
	out.SearchMetadata = SearchMetadata{
		PrimaryKeywords:   cloneStrings(e.SearchMetadata.PrimaryKeywords),
		SecondaryKeywords: cloneStrings(e.SearchMetadata.SecondaryKeywords),
		Synonyms:          cloneStrings(e.SearchMetadata.Synonyms),
		Tags:              cloneStrings(e.SearchMetadata.Tags),
	}
	if e.Content != nil {
		out.Content = make([]Section, len(e.Content))
		copy(out.Content, e.Content)
	}
	if e.References != nil {
		out.References = make([]Reference, len(e.References))
		copy(out.References, e.References)
	}
	return out
}

// Render returns every section's text at the requested tier.
func (e Entry) Render(tier Tier, localized bool) []RenderedSection {
	out := make([]RenderedSection, 0, len(e.Content))
	for _, s := range e.Content {
		text := s.Text(tier, localized)
		if text == "" {
			continue
		}
		title := s.Title
		if localized && s.TitleLocalized != "" {
			title = s.TitleLocalized
		}
		out = append(out, RenderedSection{Title: title, Text: text})
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
