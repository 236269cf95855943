// Package store is the in-memory entry store: the single source of truth for
// canonical entries. Entries are keyed by EntryID, kept in insertion order,
// and pre-tokenised on write so relevance search is a pure in-memory scan.
package store

import (
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/internal/content"
)

const defaultSearchLimit = 10

// SearchOptions narrows and bounds a Search call.
type SearchOptions struct {
	Limit      int
	Types      []content.EntryType
	Categories []content.Category
}

// ScoredEntry is one search hit. Score is on a 0-100 scale.
type ScoredEntry struct {
	Entry content.Entry `json:"entry"`
	Score int           `json:"score"`
}

type record struct {
	entry content.Entry
	seq   int
	doc   searchDoc
}

// Store holds every canonical entry for the lifetime of the process.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*record
	order   []string
	version uint64
	logger  *slog.Logger
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		entries: make(map[string]*record),
		logger:  slog.Default().With("component", "entry-store"),
	}
}

// Add inserts entry or replaces the entry with the same EntryID. A replaced
// entry keeps its original insertion position.
func (s *Store) Add(entry content.Entry) {
	entry = entry.Clone()
	doc := buildSearchDoc(entry)

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.entries[entry.EntryID]; ok {
		existing.entry = entry
		existing.doc = doc
		s.logger.Debug("entry replaced", "entry_id", entry.EntryID)
	} else {
		s.entries[entry.EntryID] = &record{entry: entry, seq: len(s.order), doc: doc}
		s.order = append(s.order, entry.EntryID)
	}
	s.version++
}

// Get returns a copy of the entry stored under id. Read methods never hand
// out slices shared with the store.
func (s *Store) Get(id string) (content.Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.entries[id]
	if !ok {
		return content.Entry{}, false
	}
	return rec.entry.Clone(), true
}

// Has reports whether id is stored.
func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[id]
	return ok
}

// GetByName returns the first entry, in insertion order, whose Name or
// NameLocalized equals name ignoring case. Names are not guaranteed unique;
// later duplicates are unreachable through this lookup.
func (s *Store) GetByName(name string) (content.Entry, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return content.Entry{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		e := s.entries[id].entry
		if strings.EqualFold(e.Name, name) {
			return e.Clone(), true
		}
		if e.NameLocalized != "" && strings.EqualFold(e.NameLocalized, name) {
			return e.Clone(), true
		}
	}
	return content.Entry{}, false
}

// Search scores every entry that passes the type and category filters
// against query and returns the best Limit hits by descending score. Equal
// scores keep insertion order.
func (s *Store) Search(query string, opts SearchOptions) []ScoredEntry {
	q := newQuery(query)
	if q.empty() {
		return nil
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	s.mu.RLock()
	results := make([]ScoredEntry, 0)
	for _, id := range s.order {
		rec := s.entries[id]
		if !matchesFilters(rec.entry, opts) {
			continue
		}
		if score := rec.doc.score(q); score > 0 {
			results = append(results, ScoredEntry{Entry: rec.entry.Clone(), Score: score})
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	s.logger.Debug("search executed", "query", query, "results", len(results))
	return results
}

// All returns every entry in insertion order.
func (s *Store) All() []content.Entry {
	return s.filter(func(content.Entry) bool { return true })
}

// ByType returns the entries of type t in insertion order.
func (s *Store) ByType(t content.EntryType) []content.Entry {
	return s.filter(func(e content.Entry) bool { return e.EntryType == t })
}

// ByCategory returns the entries in category c in insertion order.
func (s *Store) ByCategory(c content.Category) []content.Entry {
	return s.filter(func(e content.Entry) bool { return e.Category == c })
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Version increases on every write. Caches use it to detect stale results.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *Store) filter(keep func(content.Entry) bool) []content.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]content.Entry, 0)
	for _, id := range s.order {
		if e := s.entries[id].entry; keep(e) {
			out = append(out, e.Clone())
		}
	}
	return out
}

func matchesFilters(e content.Entry, opts SearchOptions) bool {
	if len(opts.Types) > 0 {
		found := false
		for _, t := range opts.Types {
			if e.EntryType == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(opts.Categories) > 0 {
		found := false
		for _, c := range opts.Categories {
			if e.Category == c {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
