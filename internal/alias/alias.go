// Package alias holds the curated term table that maps free-text keywords,
// abbreviations and localized aliases to canonical entry IDs.
//
// The table does not check that the IDs it points at exist. Callers must
// verify a looked-up ID against the entry store before trusting it.
package alias

import (
	"sort"
	"strings"
)

// Table is a read-only term -> entry ID map. Terms are stored lower-cased
// and trimmed.
type Table struct {
	terms map[string]string
}

// New builds a Table from a term -> entry ID map. Blank terms or IDs are
// skipped. When two terms normalise to the same key the later one in sorted
// input order wins, which keeps construction deterministic.
func New(terms map[string]string) *Table {
	keys := make([]string, 0, len(terms))
	for k := range terms {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	t := &Table{terms: make(map[string]string, len(terms))}
	for _, k := range keys {
		id := strings.TrimSpace(terms[k])
		key := normalize(k)
		if key == "" || id == "" {
			continue
		}
		t.terms[key] = id
	}
	return t
}

// FromGroups builds a Table from entry ID -> terms groups, the shape used by
// the alias data files.
func FromGroups(groups map[string][]string) *Table {
	flat := make(map[string]string)
	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		for _, term := range groups[id] {
			flat[term] = id
		}
	}
	return New(flat)
}

// Lookup returns the entry ID recorded for term.
func (t *Table) Lookup(term string) (string, bool) {
	if t == nil {
		return "", false
	}
	id, ok := t.terms[normalize(term)]
	return id, ok
}

// Len returns the number of terms.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.terms)
}

// Pair is one term and the entry ID it maps to.
type Pair struct {
	Term    string `json:"term"`
	EntryID string `json:"entry_id"`
}

// Pairs returns every term sorted alphabetically.
func (t *Table) Pairs() []Pair {
	if t == nil {
		return nil
	}
	out := make([]Pair, 0, len(t.terms))
	for term, id := range t.terms {
		out = append(out, Pair{Term: term, EntryID: id})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Term < out[j].Term })
	return out
}

func normalize(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}
