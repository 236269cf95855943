package catalog

import (
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/internal/content"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/internal/language"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/internal/registry"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/internal/tokenizer"
)

// StaticModule is a localized content module held in memory. Its records
// are fixed at construction.
type StaticModule struct {
	category string
	language string
	records  []content.LocalizedRecord
	byID     map[string]int
	docs     []moduleDoc
}

type moduleDoc struct {
	names map[string]struct{}
	terms map[string]struct{}
}

// NewStaticModule builds a module for category. Records get their Category
// and Language set from the module; a blank or repeated local ID is an
// error.
func NewStaticModule(category, lang string, records []content.LocalizedRecord) (*StaticModule, error) {
	category = strings.TrimSpace(category)
	code := language.Code(lang)
	if code == "" {
		code = lang
	}
	m := &StaticModule{
		category: category,
		language: code,
		records:  make([]content.LocalizedRecord, 0, len(records)),
		byID:     make(map[string]int, len(records)),
		docs:     make([]moduleDoc, 0, len(records)),
	}
	for i, rec := range records {
		rec.LocalID = strings.TrimSpace(rec.LocalID)
		if rec.LocalID == "" {
			return nil, fmt.Errorf("record %d: id is required", i)
		}
		if _, dup := m.byID[rec.LocalID]; dup {
			return nil, fmt.Errorf("record %d: duplicate id %q", i, rec.LocalID)
		}
		rec.Category = category
		rec.Language = code
		m.byID[rec.LocalID] = len(m.records)
		m.records = append(m.records, rec)
		m.docs = append(m.docs, buildModuleDoc(rec))
	}
	return m, nil
}

func buildModuleDoc(rec content.LocalizedRecord) moduleDoc {
	doc := moduleDoc{
		names: make(map[string]struct{}),
		terms: make(map[string]struct{}),
	}
	addName := func(s string) {
		if f := tokenizer.Fold(s); f != "" {
			doc.names[f] = struct{}{}
		}
		for _, t := range tokenizer.Terms(s) {
			doc.terms[t] = struct{}{}
		}
	}
	for _, n := range rec.Name.Localized {
		addName(n)
	}
	for _, n := range rec.Name.Canonical {
		addName(n)
	}
	for _, s := range rec.Synonyms {
		addName(s)
	}
	for _, k := range rec.Keywords {
		addName(k)
	}
	addName(rec.LocalID)
	return doc
}

// Category returns the module's category.
func (m *StaticModule) Category() string { return m.category }

// Language returns the module's language code.
func (m *StaticModule) Language() string { return m.language }

// Len returns the number of records.
func (m *StaticModule) Len() int { return len(m.records) }

// Search returns the records matching query. Records whose name, synonym
// or keyword equals the folded query come first, followed by records
// containing every query term. Both groups keep record order.
func (m *StaticModule) Search(query string) ([]content.LocalizedRecord, error) {
	folded := tokenizer.Fold(query)
	if folded == "" {
		return nil, nil
	}
	terms := tokenizer.Terms(query)

	var exact, partial []content.LocalizedRecord
	for i, doc := range m.docs {
		if _, ok := doc.names[folded]; ok {
			exact = append(exact, m.records[i])
			continue
		}
		if len(terms) > 0 && doc.hasAll(terms) {
			partial = append(partial, m.records[i])
		}
	}
	return append(exact, partial...), nil
}

func (d moduleDoc) hasAll(terms []string) bool {
	for _, t := range terms {
		if _, ok := d.terms[t]; !ok {
			return false
		}
	}
	return true
}

// Get returns the record with localID.
func (m *StaticModule) Get(localID string) (content.LocalizedRecord, bool, error) {
	i, ok := m.byID[localID]
	if !ok {
		return content.LocalizedRecord{}, false, nil
	}
	return m.records[i], true, nil
}

// All returns every record in file order.
func (m *StaticModule) All() ([]content.LocalizedRecord, error) {
	out := make([]content.LocalizedRecord, len(m.records))
	copy(out, m.records)
	return out, nil
}

// Descriptor returns the registry descriptor backed by this module.
func (m *StaticModule) Descriptor() registry.Descriptor {
	return registry.Descriptor{
		Category: m.category,
		Language: m.language,
		Search:   m.Search,
		GetByID:  m.Get,
		GetAll:   m.All,
	}
}
