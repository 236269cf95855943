package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestSectionTextFallsBackToLowerTier(t *testing.T) {
	s := Section{
		Title:  "Overview",
		Levels: Levels{Basic: "basic text", Intermediate: "intermediate text"},
	}

	assert.Equal(t, "basic text", s.Text(TierBasic, false))
	assert.Equal(t, "intermediate text", s.Text(TierAdvanced, false))
	assert.Equal(t, "intermediate text", s.Text(TierIntermediate, false))
}

func TestSectionTextFallsBackToAnyTier(t *testing.T) {
	s := Section{Title: "Overview", Levels: Levels{Advanced: "advanced only"}}

	assert.Equal(t, "advanced only", s.Text(TierBasic, false))
	assert.Empty(t, Section{}.Text(TierBasic, false))
}

func TestSectionTextLocalized(t *testing.T) {
	s := Section{
		Title:     "Overview",
		Levels:    Levels{Intermediate: "An infection."},
		Localized: Levels{Intermediate: "Una infección."},
	}

	assert.Equal(t, "Una infección.", s.Text(TierIntermediate, true))
	assert.Equal(t, "An infection.", s.Text(TierIntermediate, false))

	s.Localized = Levels{}
	assert.Equal(t, "An infection.", s.Text(TierIntermediate, true))
}

func TestParseTier(t *testing.T) {
	assert.Equal(t, TierBasic, ParseTier(" Simple "))
	assert.Equal(t, TierAdvanced, ParseTier("clinical"))
	assert.Equal(t, TierIntermediate, ParseTier(""))
	assert.Equal(t, TierIntermediate, ParseTier("expert"))
}

func TestEntryRender(t *testing.T) {
	e := Entry{
		EntryID: "condition-flu",
		Content: []Section{
			{Title: "Overview", TitleLocalized: "Descripción", Levels: Levels{Basic: "A virus."}},
			{Title: "Empty"},
		},
	}

	assert.Equal(t, []RenderedSection{{Title: "Overview", Text: "A virus."}}, e.Render(TierAdvanced, false))
	assert.Equal(t, []RenderedSection{{Title: "Descripción", Text: "A virus."}}, e.Render(TierBasic, true))
}

func TestEntryCloneIsDeep(t *testing.T) {
	e := Entry{
		EntryID:        "condition-flu",
		Aliases:        []string{"flu"},
		Content:        []Section{{Title: "Overview"}},
		SearchMetadata: SearchMetadata{PrimaryKeywords: []string{"influenza"}},
	}

	c := e.Clone()
	c.Aliases[0] = "grippe"
	c.Content[0].Title = "Changed"
	c.SearchMetadata.PrimaryKeywords[0] = "changed"

	assert.Equal(t, "flu", e.Aliases[0])
	assert.Equal(t, "Overview", e.Content[0].Title)
	assert.Equal(t, "influenza", e.SearchMetadata.PrimaryKeywords[0])
}

func TestEntryHasAliasAndSection(t *testing.T) {
	e := Entry{Aliases: []string{"Flu"}, Content: []Section{{Title: "Symptoms"}}}

	assert.True(t, e.HasAlias("flu"))
	assert.False(t, e.HasAlias("grippe"))
	assert.True(t, e.HasSection("SYMPTOMS"))
	assert.False(t, e.HasSection("Causes"))
}

func TestStringsUnmarshalYAML(t *testing.T) {
	var doc struct {
		One  Strings `yaml:"one"`
		Many Strings `yaml:"many"`
		None Strings `yaml:"none"`
	}
	src := "one: fiebre\nmany: [tos, fiebre]\nnone: \"\"\n"

	require.NoError(t, yaml.Unmarshal([]byte(src), &doc))
	assert.Equal(t, Strings{"fiebre"}, doc.One)
	assert.Equal(t, Strings{"tos", "fiebre"}, doc.Many)
	assert.Nil(t, doc.None)
}

func TestStringsUnmarshalYAMLRejectsMaps(t *testing.T) {
	var doc struct {
		Bad Strings `yaml:"bad"`
	}
	err := yaml.Unmarshal([]byte("bad:\n  a: b\n"), &doc)
	assert.Error(t, err)
}

func TestStringsProse(t *testing.T) {
	assert.Equal(t, "Fever. Cough.", Strings{"Fever.", " Cough ", ""}.Prose())
	assert.Empty(t, Strings{" ", ""}.Prose())
	assert.True(t, Strings{" "}.IsEmpty())
	assert.Equal(t, "tos", Strings{"", " tos"}.First())
}

func TestCompositeID(t *testing.T) {
	r := LocalizedRecord{LocalID: "asma", Category: "conditions"}
	assert.Equal(t, "localized-conditions-asma", r.CompositeID())
	assert.True(t, r.Field(FieldSymptoms).IsEmpty())
}
