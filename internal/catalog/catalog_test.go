package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/internal/content"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/internal/registry"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/internal/store"
)

func testdata(name string) string {
	return filepath.Join("testdata", name)
}

func TestLoadEntries(t *testing.T) {
	entries, err := LoadEntries(testdata("entries.yaml"))
	require.NoError(t, err)
	require.Len(t, entries, 3)

	asthma := entries[0]
	assert.Equal(t, "condition-asthma", asthma.EntryID)
	assert.Equal(t, content.TypeCondition, asthma.EntryType)
	assert.Equal(t, "Asma", asthma.NameLocalized)
	assert.Equal(t, content.CategoryRespiratory, asthma.Category)
	assert.Equal(t, "Asthma makes it hard to breathe.", asthma.Content[0].Text(content.TierBasic, false))
	assert.Equal(t, []string{"reactive airway disease"}, asthma.SearchMetadata.Synonyms)
	assert.Equal(t, 2024, asthma.References[0].Year)
}

func TestLoadEntriesReportsEveryInvalidEntry(t *testing.T) {
	_, err := LoadEntries(testdata("entries_invalid.yaml"))
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, `duplicate entry id "condition-asthma"`)
	assert.Contains(t, msg, "name: is required")
	assert.Contains(t, msg, "entry_type: must be one of")
	assert.Contains(t, msg, "reserved localized- prefix")
	assert.Contains(t, msg, "references[0].url: must be a valid URL")
}

func TestLoadEntriesMissingFile(t *testing.T) {
	_, err := LoadEntries(testdata("nope.yaml"))
	assert.Error(t, err)
}

func TestLoadAliases(t *testing.T) {
	table, err := LoadAliases(testdata("aliases.yaml"))
	require.NoError(t, err)

	id, ok := table.Lookup("bronchial asthma")
	assert.True(t, ok)
	assert.Equal(t, "condition-asthma", id)
	id, ok = table.Lookup("GRIPE")
	assert.True(t, ok)
	assert.Equal(t, "condition-flu", id)
	assert.Equal(t, 6, table.Len())
}

func TestLoadCuratedMapDropsBlankKeys(t *testing.T) {
	curated, err := LoadCuratedMap(testdata("curated.yaml"))
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"localized-conditions-asma":     "condition-asthma",
		"localized-conditions-fantasma": "condition-gone",
	}, curated)
}

func TestLoadModules(t *testing.T) {
	modules, err := LoadModules(context.Background(), testdata("modules"))
	require.NoError(t, err)
	require.Len(t, modules, 2)

	assert.Equal(t, "conditions", modules[0].Category())
	assert.Equal(t, "es", modules[0].Language())
	assert.Equal(t, 3, modules[0].Len())
	assert.Equal(t, "mental-health", modules[1].Category())

	rec, ok, err := modules[0].Get("asma")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "conditions", rec.Category)
	assert.Equal(t, "es", rec.Language)
	assert.Equal(t, content.Strings{"Sibilancias", "Falta de aire"}, rec.Field(content.FieldSymptoms).Localized)
}

func TestLoadModulesDuplicateCategory(t *testing.T) {
	_, err := LoadModules(context.Background(), testdata("modules_dup"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate category "conditions"`)
}

func TestLoadModulesCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := LoadModules(ctx, testdata("modules"))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestStaticModuleSearch(t *testing.T) {
	m, err := LoadModule(testdata("modules/conditions.yaml"))
	require.NoError(t, err)

	tests := []struct {
		query string
		want  []string
	}{
		{"asma", []string{"asma"}},
		{"ASTHMA", []string{"asma"}},
		{"Dengue Grave", []string{"dengue-grave"}},
		{"dengue", []string{"dengue-grave"}},
		{"fiebre hemorragica del dengue", []string{"dengue-grave"}},
		{"respiración", []string{"asma"}},
		{"influenza", []string{"gripe"}},
		{"tuberculosis", nil},
		{"   ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			records, err := m.Search(tt.query)
			require.NoError(t, err)
			var got []string
			for _, r := range records {
				got = append(got, r.LocalID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStaticModuleExactMatchesRankFirst(t *testing.T) {
	m, err := NewStaticModule("conditions", "es", []content.LocalizedRecord{
		{LocalID: "dolor-cabeza-cronico", Name: content.Pair{Localized: content.Strings{"Dolor de cabeza crónico"}}},
		{LocalID: "dolor-cabeza", Name: content.Pair{Localized: content.Strings{"Dolor de cabeza"}}},
	})
	require.NoError(t, err)

	records, err := m.Search("dolor de cabeza")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "dolor-cabeza", records[0].LocalID)
	assert.Equal(t, "dolor-cabeza-cronico", records[1].LocalID)
}

func TestNewStaticModuleRejectsBadIDs(t *testing.T) {
	_, err := NewStaticModule("c", "es", []content.LocalizedRecord{{LocalID: " "}})
	assert.Error(t, err)

	_, err = NewStaticModule("c", "es", []content.LocalizedRecord{{LocalID: "a"}, {LocalID: "a"}})
	assert.Error(t, err)
}

func TestStaticModuleRegisters(t *testing.T) {
	m, err := LoadModule(testdata("modules/mental-health.yaml"))
	require.NoError(t, err)

	reg := registry.New()
	require.True(t, reg.Register(m.Descriptor()))

	hit, ok := reg.GetByCompositeID("localized-mental-health-ansiedad")
	require.True(t, ok)
	assert.Equal(t, "Ansiedad", hit.Record.Name.Localized.First())

	hits := reg.SearchAll("anxiety")
	require.Len(t, hits, 1)
	assert.Equal(t, "localized-mental-health-ansiedad", hits[0].EntryID)

	assert.Len(t, reg.GetAll(), 1)
}

func TestIntegrity(t *testing.T) {
	entries, err := LoadEntries(testdata("entries.yaml"))
	require.NoError(t, err)
	st := store.New()
	for _, e := range entries {
		st.Add(e)
	}
	aliases, err := LoadAliases(testdata("aliases.yaml"))
	require.NoError(t, err)
	curated, err := LoadCuratedMap(testdata("curated.yaml"))
	require.NoError(t, err)

	report := Integrity(st, aliases, curated)

	assert.False(t, report.OK())
	assert.Equal(t, 6, report.Aliases)
	assert.Equal(t, 2, report.Curated)
	assert.Equal(t, []Dangling{
		{Kind: "alias", From: "ghost", Target: "condition-missing"},
		{Kind: "curated", From: "localized-conditions-fantasma", Target: "condition-gone"},
	}, report.Dangling)
	assert.Equal(t, `alias "ghost" -> "condition-missing": entry not found`, report.Dangling[0].String())
}

func TestIntegrityClean(t *testing.T) {
	st := store.New()
	st.Add(content.Entry{EntryID: "condition-flu", EntryType: content.TypeCondition, Name: "Influenza"})

	report := Integrity(st, nil, map[string]string{"localized-conditions-gripe": "condition-flu"})

	assert.True(t, report.OK())
	assert.Equal(t, 1, report.Curated)
}

func TestValidateEntry(t *testing.T) {
	v := NewValidator()

	err := v.ValidateEntry(content.Entry{EntryID: "condition-flu", EntryType: content.TypeCondition, Name: "Influenza"})
	assert.NoError(t, err)

	err = v.ValidateEntry(content.Entry{EntryType: content.TypeCondition, Name: "  ", Content: []content.Section{{}}})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, map[string]string{
		"entry_id":         "is required",
		"name":             "is required",
		"content[0].title": "is required",
	}, verr.Fields)
}
