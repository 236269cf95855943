// Package resolver maps free-text input to a canonical entry ID. It tries a
// fixed sequence of strategies and stops at the first that matches,
// reporting which strategy matched and how confident that strategy is.
package resolver

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/internal/adapter"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/internal/content"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/internal/language"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/internal/registry"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/internal/slug"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/internal/store"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/pkg/tracing"
)

// EntryStore is the part of the entry store the resolver reads.
type EntryStore interface {
	Get(id string) (content.Entry, bool)
	Has(id string) bool
	GetByName(name string) (content.Entry, bool)
	Search(query string, opts store.SearchOptions) []store.ScoredEntry
}

// AliasTable maps curated terms to entry IDs.
type AliasTable interface {
	Lookup(term string) (string, bool)
}

// ModuleSearcher searches the localized content modules.
type ModuleSearcher interface {
	SearchAll(query string) []registry.Hit
}

// RecordAdapter turns a localized record into a stored canonical entry.
type RecordAdapter interface {
	Adapt(rec content.LocalizedRecord) adapter.Result
}

// Observer receives per-strategy and per-call outcomes. *metrics.Metrics
// satisfies it.
type Observer interface {
	ObserveStrategy(strategy string, hit bool)
	ObserveResolution(source string, resolved bool, elapsed time.Duration)
}

// Options tunes the strategy chain.
type Options struct {
	// TypePrefixes are tried in order when deriving slug candidates.
	TypePrefixes []string
	// CanonicalLanguage is the language the entry store is written in.
	// Hints naming any other language promote the cross-language search
	// ahead of slug derivation.
	CanonicalLanguage string
	// FuzzyMax caps the confidence of fuzzy matches.
	FuzzyMax int
}

// DefaultOptions returns the standard prefixes, English as the canonical
// language and the default fuzzy cap.
func DefaultOptions() Options {
	return Options{
		TypePrefixes:      slug.DefaultPrefixes,
		CanonicalLanguage: language.Canonical,
		FuzzyMax:          content.ConfidenceFuzzyMax,
	}
}

// Deps are the collaborators a Resolver queries. Store is required; any
// other nil dependency disables the strategies that use it.
type Deps struct {
	Store    EntryStore
	Aliases  AliasTable
	Modules  ModuleSearcher
	Adapter  RecordAdapter
	Observer Observer
}

type strategy struct {
	source content.Source
	run    func(input string) (content.Resolution, bool)
}

// Resolver runs the strategy chain. It holds no per-call state and is safe
// for concurrent use.
type Resolver struct {
	deps   Deps
	opts   Options
	logger *slog.Logger
}

// New creates a Resolver. Zero option fields take their defaults.
func New(deps Deps, opts Options) *Resolver {
	def := DefaultOptions()
	if opts.TypePrefixes == nil {
		opts.TypePrefixes = def.TypePrefixes
	}
	if opts.CanonicalLanguage == "" {
		opts.CanonicalLanguage = def.CanonicalLanguage
	}
	if opts.FuzzyMax <= 0 || opts.FuzzyMax > content.ConfidenceFuzzyMax {
		opts.FuzzyMax = def.FuzzyMax
	}
	return &Resolver{
		deps:   deps,
		opts:   opts,
		logger: slog.Default().With("component", "resolver"),
	}
}

// Resolve returns the first strategy match for input. languageHint may be
// empty; a hint naming a non-canonical language moves the cross-language
// search ahead of slug derivation. Blank input matches nothing and runs no
// strategy.
func (r *Resolver) Resolve(ctx context.Context, input, languageHint string) (content.Resolution, bool) {
	input = strings.TrimSpace(input)
	if input == "" {
		return content.Resolution{}, false
	}

	start := time.Now()
	for _, st := range r.plan(languageHint) {
		if ctx.Err() != nil {
			r.logger.Debug("resolution cancelled", "input", input, "error", ctx.Err())
			break
		}
		_, span := tracing.StartChildSpan(ctx, "strategy."+string(st.source))
		res, ok := st.run(input)
		span.SetAttr("hit", ok)
		if ok {
			span.SetAttr("entry_id", res.EntryID)
			span.SetAttr("confidence", res.Confidence)
		}
		span.End()
		r.observeStrategy(st.source, ok)

		if ok {
			r.logger.Debug("input resolved",
				"input", input,
				"entry_id", res.EntryID,
				"source", res.Source,
				"confidence", res.Confidence,
			)
			r.observeResolution(res.Source, true, time.Since(start))
			return res, true
		}
	}

	r.logger.Debug("input unresolved", "input", input, "language", languageHint)
	r.observeResolution("", false, time.Since(start))
	return content.Resolution{}, false
}

// ResolveToEntryID is Resolve reduced to the matched entry ID.
func (r *Resolver) ResolveToEntryID(ctx context.Context, input, languageHint string) (string, bool) {
	res, ok := r.Resolve(ctx, input, languageHint)
	if !ok {
		return "", false
	}
	return res.EntryID, true
}

// plan orders the strategies for one call.
func (r *Resolver) plan(languageHint string) []strategy {
	exact := []strategy{
		{content.SourceExactID, r.byID},
		{content.SourceExactName, r.byName},
		{content.SourceAlias, r.byAlias},
	}
	cross := strategy{content.SourceCrossLanguage, r.byModules}
	slugs := strategy{content.SourceSlug, r.bySlug}
	fuzzy := strategy{content.SourceFuzzy, r.byFuzzy}

	if !language.IsCanonical(languageHint, r.opts.CanonicalLanguage) {
		return append(exact, cross, slugs, fuzzy)
	}
	return append(exact, slugs, cross, fuzzy)
}

func (r *Resolver) byID(input string) (content.Resolution, bool) {
	if !r.deps.Store.Has(input) {
		return content.Resolution{}, false
	}
	return resolution(input, content.SourceExactID, content.ConfidenceExactID)
}

func (r *Resolver) byName(input string) (content.Resolution, bool) {
	e, ok := r.deps.Store.GetByName(input)
	if !ok {
		return content.Resolution{}, false
	}
	return resolution(e.EntryID, content.SourceExactName, content.ConfidenceExactName)
}

// byAlias trusts the alias table only when the referenced entry exists.
func (r *Resolver) byAlias(input string) (content.Resolution, bool) {
	if r.deps.Aliases == nil {
		return content.Resolution{}, false
	}
	id, ok := r.deps.Aliases.Lookup(input)
	if !ok {
		return content.Resolution{}, false
	}
	if !r.deps.Store.Has(id) {
		r.logger.Debug("alias points at missing entry", "term", input, "entry_id", id)
		return content.Resolution{}, false
	}
	return resolution(id, content.SourceAlias, content.ConfidenceAlias)
}

func (r *Resolver) bySlug(input string) (content.Resolution, bool) {
	for _, candidate := range slug.Candidates(input, r.opts.TypePrefixes) {
		if r.deps.Store.Has(candidate) {
			return resolution(candidate, content.SourceSlug, content.ConfidenceSlug)
		}
	}
	return content.Resolution{}, false
}

// byModules takes the first module hit and adapts it, so the returned ID is
// the canonical entry when an equivalent exists and the composite ID
// otherwise.
func (r *Resolver) byModules(input string) (content.Resolution, bool) {
	if r.deps.Modules == nil {
		return content.Resolution{}, false
	}
	hits := r.deps.Modules.SearchAll(input)
	if len(hits) == 0 {
		return content.Resolution{}, false
	}
	hit := hits[0]
	id := hit.EntryID
	if r.deps.Adapter != nil {
		id = r.deps.Adapter.Adapt(hit.Record).Entry.EntryID
	}
	return resolution(id, content.SourceCrossLanguage, content.ConfidenceCrossLanguage)
}

func (r *Resolver) byFuzzy(input string) (content.Resolution, bool) {
	results := r.deps.Store.Search(input, store.SearchOptions{Limit: 1})
	if len(results) == 0 {
		return content.Resolution{}, false
	}
	best := results[0]
	return resolution(best.Entry.EntryID, content.SourceFuzzy, min(best.Score, r.opts.FuzzyMax))
}

func (r *Resolver) observeStrategy(source content.Source, hit bool) {
	if r.deps.Observer != nil {
		r.deps.Observer.ObserveStrategy(string(source), hit)
	}
}

func (r *Resolver) observeResolution(source content.Source, resolved bool, elapsed time.Duration) {
	if r.deps.Observer != nil {
		r.deps.Observer.ObserveResolution(string(source), resolved, elapsed)
	}
}

func resolution(id string, source content.Source, confidence int) (content.Resolution, bool) {
	return content.Resolution{EntryID: id, Source: source, Confidence: confidence}, true
}
