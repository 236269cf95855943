package content

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// CompositePrefix starts every identifier synthesized for a localized record.
const CompositePrefix = "localized-"

// CompositeID builds the identifier used to address a localized record
// before, or instead of, merging it into a canonical entry.
func CompositeID(category, localID string) string {
	return CompositePrefix + category + "-" + localID
}

// Strings is a list of text values that may be written in YAML either as a
// single scalar or as a sequence.
type Strings []string

// UnmarshalYAML accepts both `field: text` and `field: [a, b]`.
func (s *Strings) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Value == "" {
			*s = nil
			return nil
		}
		*s = Strings{node.Value}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*s = list
		return nil
	default:
		return fmt.Errorf("line %d: expected string or list of strings", node.Line)
	}
}

// First returns the first non-blank value.
func (s Strings) First() string {
	for _, v := range s {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// Prose joins the values into sentences separated by ". ", ending with a
// period.
func (s Strings) Prose() string {
	parts := make([]string, 0, len(s))
	for _, v := range s {
		v = strings.TrimSpace(v)
		v = strings.TrimRight(v, ".")
		if v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, ". ") + "."
}

// IsEmpty reports whether every value is blank.
func (s Strings) IsEmpty() bool {
	return s.First() == ""
}

// Pair holds the same field written in the localized and the canonical
// language.
type Pair struct {
	Localized Strings `json:"localized,omitempty" yaml:"localized,omitempty"`
	Canonical Strings `json:"canonical,omitempty" yaml:"canonical,omitempty"`
}

// IsEmpty reports whether neither language carries text.
func (p Pair) IsEmpty() bool {
	return p.Localized.IsEmpty() && p.Canonical.IsEmpty()
}

// Field names a paired field of a localized record.
type Field string

const (
	FieldDescription     Field = "description"
	FieldSymptoms        Field = "symptoms"
	FieldCauses          Field = "causes"
	FieldRiskFactors     Field = "riskFactors"
	FieldDiagnosis       Field = "diagnosis"
	FieldTreatment       Field = "treatment"
	FieldComplications   Field = "complications"
	FieldPrevention      Field = "prevention"
	FieldWhenToSeeDoctor Field = "whenToSeeDoctor"
)

// LocalizedRecord is a source record authored in a secondary language.
// Records are loaded once and never mutated.
type LocalizedRecord struct {
	LocalID   string         `json:"id" yaml:"id"`
	Category  string         `json:"category" yaml:"-"`
	Language  string         `json:"language,omitempty" yaml:"-"`
	EntryType EntryType      `json:"entry_type,omitempty" yaml:"entryType,omitempty"`
	Domain    Category       `json:"domain,omitempty" yaml:"domain,omitempty"`
	Name      Pair           `json:"name" yaml:"name"`
	Summary   Pair           `json:"summary,omitempty" yaml:"summary,omitempty"`
	Fields    map[Field]Pair `json:"fields,omitempty" yaml:"fields,omitempty"`
	Keywords  []string       `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	Synonyms  []string       `json:"synonyms,omitempty" yaml:"synonyms,omitempty"`
	Tags      []string       `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// CompositeID returns localized-{category}-{localId} for the record.
func (r LocalizedRecord) CompositeID() string {
	return CompositeID(r.Category, r.LocalID)
}

// Field returns the paired value stored under f.
func (r LocalizedRecord) Field(f Field) Pair {
	if r.Fields == nil {
		return Pair{}
	}
	return r.Fields[f]
}
