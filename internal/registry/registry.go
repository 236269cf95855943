// Package registry aggregates independently loaded localized content
// modules. Each module is registered under a unique category and queried
// through its Descriptor functions. A module that fails or panics is
// skipped for that call; it never aborts aggregation across the others.
package registry

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/internal/content"
)

// SearchFunc returns the module's records matching query.
type SearchFunc func(query string) ([]content.LocalizedRecord, error)

// GetFunc returns the module's record with the given local ID.
type GetFunc func(localID string) (content.LocalizedRecord, bool, error)

// ListFunc returns every record of the module.
type ListFunc func() ([]content.LocalizedRecord, error)

// Descriptor registers one localized content module.
type Descriptor struct {
	Category string
	Language string
	Search   SearchFunc
	GetByID  GetFunc
	GetAll   ListFunc
}

// Hit is a module record tagged with its composite ID.
type Hit struct {
	Record   content.LocalizedRecord `json:"record"`
	EntryID  string                  `json:"entry_id"`
	Category string                  `json:"category"`
}

// FaultFunc observes a module failure. op is "search", "get" or "all".
type FaultFunc func(category, op string, err error)

// Option configures a Registry.
type Option func(*Registry)

// WithFaultHook reports every skipped module failure to fn.
func WithFaultHook(fn FaultFunc) Option {
	return func(r *Registry) {
		r.onFault = fn
	}
}

// Registry holds module descriptors in registration order.
type Registry struct {
	mu         sync.RWMutex
	modules    []Descriptor
	byCategory map[string]int
	onFault    FaultFunc
	logger     *slog.Logger
}

// New creates an empty Registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		byCategory: make(map[string]int),
		logger:     slog.Default().With("component", "module-registry"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds d. Registering a category that is already present is a
// no-op and returns false, as does a descriptor without a category.
func (r *Registry) Register(d Descriptor) bool {
	d.Category = strings.TrimSpace(d.Category)
	if d.Category == "" {
		r.logger.Warn("module descriptor without category ignored")
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byCategory[d.Category]; exists {
		r.logger.Debug("module already registered", "category", d.Category)
		return false
	}
	r.byCategory[d.Category] = len(r.modules)
	r.modules = append(r.modules, d)
	r.logger.Info("module registered", "category", d.Category, "language", d.Language)
	return true
}

// Categories returns the registered categories in registration order.
func (r *Registry) Categories() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.modules))
	for _, d := range r.modules {
		out = append(out, d.Category)
	}
	return out
}

// Len returns the number of registered modules.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.modules)
}

// SearchAll queries every module and concatenates the hits in
// registration order.
func (r *Registry) SearchAll(query string) []Hit {
	hits := make([]Hit, 0)
	for _, d := range r.snapshot() {
		if d.Search == nil {
			continue
		}
		records, err := safeList(func() ([]content.LocalizedRecord, error) {
			return d.Search(query)
		})
		if err != nil {
			r.fault(d.Category, "search", err)
			continue
		}
		hits = appendHits(hits, d, records)
	}
	return hits
}

// GetAll returns every record of every module in registration order.
func (r *Registry) GetAll() []Hit {
	hits := make([]Hit, 0)
	for _, d := range r.snapshot() {
		if d.GetAll == nil {
			continue
		}
		records, err := safeList(d.GetAll)
		if err != nil {
			r.fault(d.Category, "all", err)
			continue
		}
		hits = appendHits(hits, d, records)
	}
	return hits
}

// GetByCompositeID dispatches a localized-{category}-{localId} identifier to
// the owning module. Malformed identifiers, unknown categories and module
// failures all report false.
func (r *Registry) GetByCompositeID(id string) (Hit, bool) {
	category, localID, ok := r.ParseCompositeID(id)
	if !ok {
		return Hit{}, false
	}
	r.mu.RLock()
	d := r.modules[r.byCategory[category]]
	r.mu.RUnlock()
	if d.GetByID == nil {
		return Hit{}, false
	}

	var (
		rec   content.LocalizedRecord
		found bool
	)
	err := safeCall(func() error {
		var err error
		rec, found, err = d.GetByID(localID)
		return err
	})
	if err != nil {
		r.fault(category, "get", err)
		return Hit{}, false
	}
	if !found {
		return Hit{}, false
	}
	return toHit(d, rec), true
}

// ParseCompositeID splits id into a registered category and a local ID.
// When several registered categories fit, the longest one wins so that
// hyphenated categories parse correctly.
func (r *Registry) ParseCompositeID(id string) (category, localID string, ok bool) {
	rest, found := strings.CutPrefix(id, content.CompositePrefix)
	if !found {
		return "", "", false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for c := range r.byCategory {
		if len(c) <= len(category) {
			continue
		}
		if tail, ok := strings.CutPrefix(rest, c+"-"); ok && tail != "" {
			category, localID = c, tail
		}
	}
	return category, localID, category != ""
}

func (r *Registry) snapshot() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, len(r.modules))
	copy(out, r.modules)
	return out
}

func (r *Registry) fault(category, op string, err error) {
	r.logger.Warn("module call failed, skipping",
		"category", category,
		"op", op,
		"error", err,
	)
	if r.onFault != nil {
		r.onFault(category, op, err)
	}
}

func appendHits(hits []Hit, d Descriptor, records []content.LocalizedRecord) []Hit {
	for _, rec := range records {
		hits = append(hits, toHit(d, rec))
	}
	return hits
}

func toHit(d Descriptor, rec content.LocalizedRecord) Hit {
	rec.Category = d.Category
	if rec.Language == "" {
		rec.Language = d.Language
	}
	return Hit{
		Record:   rec,
		EntryID:  content.CompositeID(d.Category, rec.LocalID),
		Category: d.Category,
	}
}

func safeList(fn func() ([]content.LocalizedRecord, error)) (records []content.LocalizedRecord, err error) {
	err = safeCall(func() error {
		var callErr error
		records, callErr = fn()
		return callErr
	})
	return records, err
}

// safeCall runs fn and converts a panic into an error.
func safeCall(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("module panicked: %v", p)
		}
	}()
	return fn()
}
