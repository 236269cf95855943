package content

// Source tags which resolution strategy produced a match.
type Source string

const (
	SourceExactID       Source = "exact_id"
	SourceExactName     Source = "exact_name"
	SourceAlias         Source = "alias"
	SourceSlug          Source = "slug"
	SourceCrossLanguage Source = "cross_language"
	SourceFuzzy         Source = "fuzzy"
)

// Confidence values reported by each deterministic strategy. Fuzzy matches
// are capped at ConfidenceFuzzyMax.
const (
	ConfidenceExactID       = 100
	ConfidenceExactName     = 95
	ConfidenceAlias         = 95
	ConfidenceSlug          = 90
	ConfidenceCrossLanguage = 80
	ConfidenceFuzzyMax      = 70
)

// Resolution is the transient result of one lookup.
type Resolution struct {
	EntryID    string `json:"entry_id"`
	Source     Source `json:"source"`
	Confidence int    `json:"confidence"`
}
