// Package app is the composition root of the content resolver. An App owns
// the entry store, alias table, module registry, bilingual adapter and
// resolver, and exposes the operations the HTTP API and CLI call.
//
// An App is built empty by New and populated once by Initialize. There is no
// package-level instance.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/internal/adapter"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/internal/alias"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/internal/content"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/internal/registry"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/internal/resolver"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/internal/store"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/pkg/metrics"
)

// ErrAlreadyInitialized is returned by a second Initialize call.
var ErrAlreadyInitialized = errors.New("app already initialized")

// Options configures an App.
type Options struct {
	Resolver resolver.Options
	// Metrics is optional. When set, strategy outcomes, module faults,
	// adaptations and store sizes are exported through it.
	Metrics *metrics.Metrics
}

// Dataset is everything Initialize loads into an App.
type Dataset struct {
	Entries []content.Entry
	Aliases *alias.Table
	Curated map[string]string
	Modules []registry.Descriptor
}

// App wires the resolution components together.
type App struct {
	opts      Options
	store     *store.Store
	registry  *registry.Registry
	validator *catalog.Validator
	metrics   *metrics.Metrics
	logger    *slog.Logger
	adapter   *adapter.Adapter

	mu          sync.RWMutex
	initialized bool
	aliases     *alias.Table
	curated     map[string]string
	resolver    *resolver.Resolver
}

// New creates an empty App. Lookups succeed only for content added through
// AddEntry or RegisterModule until Initialize runs.
func New(opts Options) *App {
	a := &App{
		opts:      opts,
		store:     store.New(),
		validator: catalog.NewValidator(),
		metrics:   opts.Metrics,
		logger:    slog.Default().With("component", "app"),
	}
	var regOpts []registry.Option
	if a.metrics != nil {
		regOpts = append(regOpts, registry.WithFaultHook(a.metrics.ObserveModuleFault))
	}
	a.registry = registry.New(regOpts...)
	a.adapter = adapter.New(a.store, nil)
	a.resolver = a.buildResolver(nil)
	return a
}

// Initialize loads ds into the App. It may run once.
func (a *App) Initialize(ds Dataset) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.initialized {
		return ErrAlreadyInitialized
	}
	a.initialized = true

	for _, e := range ds.Entries {
		a.adapter.Upsert(e)
	}
	for _, d := range ds.Modules {
		a.registry.Register(d)
	}
	a.aliases = ds.Aliases
	if a.aliases == nil {
		a.aliases = alias.New(nil)
	}
	a.curated = ds.Curated
	if a.curated == nil {
		a.curated = map[string]string{}
	}
	a.adapter.SetCurated(a.curated)
	a.resolver = a.buildResolver(a.aliases)
	a.updateGauges()

	a.logger.Info("app initialized",
		"entries", a.store.Len(),
		"aliases", a.aliases.Len(),
		"curated", len(a.curated),
		"modules", a.registry.Len(),
	)
	return nil
}

func (a *App) buildResolver(aliases *alias.Table) *resolver.Resolver {
	deps := resolver.Deps{
		Store:   a.store,
		Modules: a.registry,
		Adapter: &observedAdapter{inner: a.adapter, app: a},
	}
	if aliases != nil {
		deps.Aliases = aliases
	}
	if a.metrics != nil {
		deps.Observer = a.metrics
	}
	return resolver.New(deps, a.opts.Resolver)
}

// observedAdapter counts adaptations and keeps the entry gauge current.
type observedAdapter struct {
	inner *adapter.Adapter
	app   *App
}

func (o *observedAdapter) Adapt(rec content.LocalizedRecord) adapter.Result {
	res := o.inner.Adapt(rec)
	if o.app.metrics != nil {
		o.app.metrics.AdaptationsTotal.WithLabelValues(string(res.Outcome)).Inc()
	}
	o.app.updateGauges()
	return res
}

func (a *App) updateGauges() {
	if a.metrics == nil {
		return
	}
	a.metrics.EntriesStored.Set(float64(a.store.Len()))
	a.metrics.ModulesRegistered.Set(float64(a.registry.Len()))
}

func (a *App) current() *resolver.Resolver {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.resolver
}

// Resolve maps input to a canonical entry.
func (a *App) Resolve(ctx context.Context, input, languageHint string) (content.Resolution, bool) {
	return a.current().Resolve(ctx, input, languageHint)
}

// ResolveToEntryID maps input to an entry ID.
func (a *App) ResolveToEntryID(ctx context.Context, input, languageHint string) (string, bool) {
	return a.current().ResolveToEntryID(ctx, input, languageHint)
}

// RegisterModule adds a localized module. It returns false when the
// category is already registered.
func (a *App) RegisterModule(d registry.Descriptor) bool {
	ok := a.registry.Register(d)
	if ok {
		a.updateGauges()
	}
	return ok
}

// GetEntry returns the entry stored under id.
func (a *App) GetEntry(id string) (content.Entry, bool) {
	return a.store.Get(id)
}

// GetEntryByName returns the entry whose name or localized name equals
// name, ignoring case.
func (a *App) GetEntryByName(name string) (content.Entry, bool) {
	return a.store.GetByName(name)
}

// Search ranks stored entries against query.
func (a *App) Search(query string, opts store.SearchOptions) []store.ScoredEntry {
	results := a.store.Search(query, opts)
	if a.metrics != nil {
		a.metrics.SearchResultsCount.Observe(float64(len(results)))
	}
	return results
}

// AddEntry validates e and upserts it into the store. The write is
// serialised with lazy adaptation so a concurrent merge cannot revert it.
func (a *App) AddEntry(e content.Entry) error {
	if err := a.validator.ValidateEntry(e); err != nil {
		return fmt.Errorf("adding entry %q: %w", e.EntryID, err)
	}
	a.adapter.Upsert(e)
	a.updateGauges()
	return nil
}

// SearchAllModules queries every registered module.
func (a *App) SearchAllModules(query string) []registry.Hit {
	return a.registry.SearchAll(query)
}

// GetModuleEntryByCompositeID returns the module record addressed by a
// localized-{category}-{localId} identifier.
func (a *App) GetModuleEntryByCompositeID(id string) (registry.Hit, bool) {
	return a.registry.GetByCompositeID(id)
}

// GetAllModuleEntries returns every record of every registered module.
func (a *App) GetAllModuleEntries() []registry.Hit {
	return a.registry.GetAll()
}

// Modules returns the registered module categories.
func (a *App) Modules() []string {
	return a.registry.Categories()
}

// Store exposes the entry store, for components keyed on its version.
func (a *App) Store() *store.Store {
	return a.store
}

// Integrity reports alias and curated references to missing entries.
func (a *App) Integrity() catalog.Report {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return catalog.Integrity(a.store, a.aliases, a.curated)
}

// LoadDataset reads the files named by cfg. Paths left empty are skipped.
func LoadDataset(ctx context.Context, cfg config.ContentConfig) (Dataset, error) {
	var ds Dataset
	var err error
	if cfg.EntriesPath != "" {
		if ds.Entries, err = catalog.LoadEntries(cfg.EntriesPath); err != nil {
			return Dataset{}, err
		}
	}
	if cfg.AliasesPath != "" {
		if ds.Aliases, err = catalog.LoadAliases(cfg.AliasesPath); err != nil {
			return Dataset{}, err
		}
	}
	if cfg.CuratedPath != "" {
		if ds.Curated, err = catalog.LoadCuratedMap(cfg.CuratedPath); err != nil {
			return Dataset{}, err
		}
	}
	if cfg.ModulesDir != "" {
		modules, err := catalog.LoadModules(ctx, cfg.ModulesDir)
		if err != nil {
			return Dataset{}, err
		}
		for _, m := range modules {
			ds.Modules = append(ds.Modules, m.Descriptor())
		}
	}
	return ds, nil
}

// ResolverOptions converts configuration into resolver options.
func ResolverOptions(cfg *config.Config) resolver.Options {
	opts := resolver.DefaultOptions()
	if cfg.Content.TypePrefixes != nil {
		opts.TypePrefixes = cfg.Content.TypePrefixes
	}
	if cfg.Content.CanonicalLanguage != "" {
		opts.CanonicalLanguage = cfg.Content.CanonicalLanguage
	}
	if cfg.Resolver.FuzzyMaxConfidence > 0 {
		opts.FuzzyMax = cfg.Resolver.FuzzyMaxConfidence
	}
	return opts
}
