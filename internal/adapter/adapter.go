// Package adapter converts localized module records into canonical entries.
// Before creating a new entry it looks for an equivalent canonical entry and,
// when one exists, merges the record into it so that each topic is stored
// once regardless of the language it was first reached in.
package adapter

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/internal/content"
)

// Outcome reports what Adapt did with a record.
type Outcome string

const (
	OutcomeMerged  Outcome = "merged"
	OutcomeCreated Outcome = "created"
)

// MatchedBy names the equivalence rule that selected the merge target.
type MatchedBy string

const (
	MatchedNone          MatchedBy = ""
	MatchedCurated       MatchedBy = "curated"
	MatchedCanonicalName MatchedBy = "canonical_name"
	MatchedLocalizedName MatchedBy = "localized_name"
	MatchedCompositeID   MatchedBy = "composite_id"
)

// Result is the entry produced for a record.
type Result struct {
	Entry     content.Entry `json:"entry"`
	Outcome   Outcome       `json:"outcome"`
	MatchedBy MatchedBy     `json:"matched_by,omitempty"`
}

// EntryStore is the subset of the entry store the adapter reads and writes.
type EntryStore interface {
	Get(id string) (content.Entry, bool)
	GetByName(name string) (content.Entry, bool)
	Add(entry content.Entry)
}

// Adapter merges localized records into an EntryStore.
type Adapter struct {
	store   EntryStore
	curated map[string]string
	mu      sync.Mutex
	logger  *slog.Logger
}

// New creates an Adapter. curated maps composite IDs to canonical entry IDs
// for pairs that name matching cannot detect; it may be nil.
func New(store EntryStore, curated map[string]string) *Adapter {
	c := make(map[string]string, len(curated))
	for k, v := range curated {
		c[k] = v
	}
	return &Adapter{
		store:   store,
		curated: c,
		logger:  slog.Default().With("component", "bilingual-adapter"),
	}
}

// SetCurated replaces the curated composite ID map.
func (a *Adapter) SetCurated(curated map[string]string) {
	c := make(map[string]string, len(curated))
	for k, v := range curated {
		c[k] = v
	}
	a.mu.Lock()
	a.curated = c
	a.mu.Unlock()
}

// Upsert writes e to the store. It shares Adapt's lock, so a direct write
// is never overwritten by a merge computed from the entry it replaced.
func (a *Adapter) Upsert(e content.Entry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.store.Add(e)
}

// Adapt converts rec into a canonical entry and writes it back to the store.
// The lookup, merge and write run under one lock so concurrent adaptations
// of related records cannot lose each other's additions.
func (a *Adapter) Adapt(rec content.LocalizedRecord) Result {
	a.mu.Lock()
	defer a.mu.Unlock()

	if existing, by, ok := a.equivalent(rec); ok {
		merged, changed := Merge(existing, rec)
		if changed {
			a.store.Add(merged)
			a.logger.Info("localized record merged",
				"composite_id", rec.CompositeID(),
				"entry_id", merged.EntryID,
				"matched_by", by,
			)
		}
		return Result{Entry: merged, Outcome: OutcomeMerged, MatchedBy: by}
	}

	created := Build(rec)
	a.store.Add(created)
	a.logger.Info("localized entry created", "entry_id", created.EntryID)
	return Result{Entry: created, Outcome: OutcomeCreated}
}

// equivalent finds the canonical entry rec should merge into. Rules are
// tried in order: curated map, canonical name, localized name, and finally
// an entry previously created for the same composite ID.
func (a *Adapter) equivalent(rec content.LocalizedRecord) (content.Entry, MatchedBy, bool) {
	composite := rec.CompositeID()
	if id, ok := a.curated[composite]; ok {
		if e, ok := a.store.Get(id); ok {
			return e, MatchedCurated, true
		}
		a.logger.Debug("curated mapping points at missing entry", "composite_id", composite, "entry_id", id)
	}
	for _, name := range rec.Name.Canonical {
		if e, ok := a.store.GetByName(name); ok {
			return e, MatchedCanonicalName, true
		}
	}
	for _, name := range rec.Name.Localized {
		if e, ok := a.store.GetByName(name); ok {
			return e, MatchedLocalizedName, true
		}
	}
	if e, ok := a.store.Get(composite); ok {
		return e, MatchedCompositeID, true
	}
	return content.Entry{}, MatchedNone, false
}

// Build creates a new entry for a record with no canonical equivalent. The
// entry is addressed by the record's composite ID.
func Build(rec content.LocalizedRecord) content.Entry {
	name := rec.Name.Canonical.First()
	if name == "" {
		name = rec.Name.Localized.First()
	}
	entryType := rec.EntryType
	if entryType == "" {
		entryType = content.TypeCondition
	}
	category := rec.Domain
	if category == "" {
		category = content.CategoryGeneral
	}
	summary := rec.Summary.Canonical.First()
	if summary == "" {
		summary = rec.Summary.Localized.First()
	}

	e := content.Entry{
		EntryID:   rec.CompositeID(),
		EntryType: entryType,
		Name:      name,
		Category:  category,
		Summary:   summary,
	}
	if localized := rec.Name.Localized.First(); !strings.EqualFold(localized, name) {
		e.NameLocalized = localized
	}
	e.Aliases = addAliases(nil, name, rec)
	e.Content = BuildSections(rec)
	e.SearchMetadata = content.SearchMetadata{
		PrimaryKeywords: union(nil, rec.Keywords),
		Synonyms:        union(nil, rec.Synonyms),
		Tags:            union(nil, rec.Tags),
	}
	return e
}

// Merge returns existing extended with rec's names, sections and search
// metadata. existing is not modified and its EntryID is kept. Nothing is
// ever removed or overwritten: sections whose title already exists are
// skipped. changed reports whether the result differs from existing.
func Merge(existing content.Entry, rec content.LocalizedRecord) (merged content.Entry, changed bool) {
	merged = existing.Clone()

	if merged.NameLocalized == "" {
		if localized := rec.Name.Localized.First(); localized != "" && !strings.EqualFold(localized, merged.Name) {
			merged.NameLocalized = localized
			changed = true
		}
	}
	if merged.Summary == "" {
		if summary := rec.Summary.Canonical.First(); summary != "" {
			merged.Summary = summary
			changed = true
		}
	}

	aliases := addAliases(merged.Aliases, merged.Name, rec)
	changed = changed || len(aliases) != len(merged.Aliases)
	merged.Aliases = aliases

	for _, s := range BuildSections(rec) {
		if merged.HasSection(s.Title) {
			continue
		}
		merged.Content = append(merged.Content, s)
		changed = true
	}

	md := &merged.SearchMetadata
	for _, u := range []struct {
		dst *[]string
		src []string
	}{
		{&md.PrimaryKeywords, rec.Keywords},
		{&md.Synonyms, rec.Synonyms},
		{&md.Tags, rec.Tags},
	} {
		grown := union(*u.dst, u.src)
		changed = changed || len(grown) != len(*u.dst)
		*u.dst = grown
	}
	return merged, changed
}

// addAliases appends every localized and canonical name of rec that differs
// from name and is not already present.
func addAliases(aliases []string, name string, rec content.LocalizedRecord) []string {
	for _, values := range []content.Strings{rec.Name.Localized, rec.Name.Canonical} {
		for _, v := range values {
			v = strings.TrimSpace(v)
			if v == "" || strings.EqualFold(v, name) || containsFold(aliases, v) {
				continue
			}
			aliases = append(aliases, v)
		}
	}
	return aliases
}

// union appends the values of add missing from dst, comparing
// case-insensitively.
func union(dst, add []string) []string {
	for _, v := range add {
		v = strings.TrimSpace(v)
		if v == "" || containsFold(dst, v) {
			continue
		}
		dst = append(dst, v)
	}
	return dst
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
