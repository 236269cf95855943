package registry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/internal/content"
)

func record(id, localized, canonical string) content.LocalizedRecord {
	return content.LocalizedRecord{
		LocalID: id,
		Name: content.Pair{
			Localized: content.Strings{localized},
			Canonical: content.Strings{canonical},
		},
	}
}

func staticModule(category string, records ...content.LocalizedRecord) Descriptor {
	return Descriptor{
		Category: category,
		Language: "es",
		Search: func(string) ([]content.LocalizedRecord, error) {
			return records, nil
		},
		GetByID: func(id string) (content.LocalizedRecord, bool, error) {
			for _, r := range records {
				if r.LocalID == id {
					return r, true, nil
				}
			}
			return content.LocalizedRecord{}, false, nil
		},
		GetAll: func() ([]content.LocalizedRecord, error) {
			return records, nil
		},
	}
}

func TestRegisterIsIdempotent(t *testing.T) {
	r := New()

	assert.True(t, r.Register(staticModule("conditions", record("asma", "Asma", "Asthma"))))
	assert.False(t, r.Register(staticModule("conditions")))
	assert.False(t, r.Register(Descriptor{Category: "  "}))

	assert.Equal(t, []string{"conditions"}, r.Categories())
	hits := r.SearchAll("asma")
	require.Len(t, hits, 1, "first registration must stay in effect")
}

func TestSearchAllTagsCompositeIDs(t *testing.T) {
	r := New()
	r.Register(staticModule("conditions", record("asma", "Asma", "Asthma")))
	r.Register(staticModule("anatomy", record("corazon", "Corazón", "Heart")))

	hits := r.SearchAll("x")

	require.Len(t, hits, 2)
	assert.Equal(t, "localized-conditions-asma", hits[0].EntryID)
	assert.Equal(t, "conditions", hits[0].Category)
	assert.Equal(t, "conditions", hits[0].Record.Category)
	assert.Equal(t, "es", hits[0].Record.Language)
	assert.Equal(t, "localized-anatomy-corazon", hits[1].EntryID)
}

func TestSearchAllSkipsFaultyModules(t *testing.T) {
	tests := []struct {
		name   string
		faulty Descriptor
	}{
		{
			name: "error",
			faulty: Descriptor{
				Category: "broken",
				Search: func(string) ([]content.LocalizedRecord, error) {
					return nil, errors.New("dataset unavailable")
				},
			},
		},
		{
			name: "panic",
			faulty: Descriptor{
				Category: "broken",
				Search: func(string) ([]content.LocalizedRecord, error) {
					panic("nil map")
				},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var faults []string
			r := New(WithFaultHook(func(category, op string, err error) {
				assert.Error(t, err)
				faults = append(faults, category+"/"+op)
			}))
			r.Register(staticModule("conditions", record("asma", "Asma", "Asthma")))
			r.Register(tt.faulty)
			r.Register(staticModule("anatomy", record("corazon", "Corazón", "Heart")))

			var hits []Hit
			require.NotPanics(t, func() { hits = r.SearchAll("a") })

			ids := make([]string, 0, len(hits))
			for _, h := range hits {
				ids = append(ids, h.EntryID)
			}
			assert.Equal(t, []string{"localized-conditions-asma", "localized-anatomy-corazon"}, ids)
			assert.Equal(t, []string{"broken/search"}, faults)
		})
	}
}

func TestGetAllSkipsFaultyModules(t *testing.T) {
	r := New()
	r.Register(staticModule("conditions", record("asma", "Asma", "Asthma"), record("gripe", "Gripe", "Influenza")))
	r.Register(Descriptor{
		Category: "broken",
		GetAll: func() ([]content.LocalizedRecord, error) {
			panic("boom")
		},
	})

	hits := r.GetAll()

	require.Len(t, hits, 2)
	assert.Equal(t, "localized-conditions-gripe", hits[1].EntryID)
}

func TestGetByCompositeID(t *testing.T) {
	r := New()
	r.Register(staticModule("conditions", record("asma", "Asma", "Asthma")))
	r.Register(staticModule("mental-health", record("ansiedad-generalizada", "Ansiedad generalizada", "Generalized anxiety")))
	r.Register(staticModule("mental", record("health-x", "X", "X")))

	tests := []struct {
		name   string
		id     string
		wantOK bool
		wantID string
	}{
		{"simple", "localized-conditions-asma", true, "asma"},
		{"hyphenated category wins", "localized-mental-health-ansiedad-generalizada", true, "ansiedad-generalizada"},
		{"missing prefix", "conditions-asma", false, ""},
		{"unknown category", "localized-drugs-ibuprofeno", false, ""},
		{"empty local id", "localized-conditions-", false, ""},
		{"unknown local id", "localized-conditions-diabetes", false, ""},
		{"empty", "", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hit, ok := r.GetByCompositeID(tt.id)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, hit.Record.LocalID)
			if ok {
				assert.Equal(t, tt.id, hit.EntryID)
			}
		})
	}
}

func TestGetByCompositeIDModuleFault(t *testing.T) {
	faults := 0
	r := New(WithFaultHook(func(string, string, error) { faults++ }))
	r.Register(Descriptor{
		Category: "conditions",
		GetByID: func(string) (content.LocalizedRecord, bool, error) {
			return content.LocalizedRecord{}, false, errors.New("io")
		},
	})

	_, ok := r.GetByCompositeID("localized-conditions-asma")

	assert.False(t, ok)
	assert.Equal(t, 1, faults)
}
