// Package api serves the resolver over HTTP. Handlers translate query
// parameters into App calls and absent results into pkg/errors sentinels.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/internal/content"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/internal/registry"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/internal/resolver/cache"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/internal/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/health-content-resolver/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/pkg/tracing"
)

const maxEntryBodyBytes = 1 << 20

// Service is the App surface the handlers call.
type Service interface {
	Resolve(ctx context.Context, input, languageHint string) (content.Resolution, bool)
	GetEntry(id string) (content.Entry, bool)
	GetEntryByName(name string) (content.Entry, bool)
	AddEntry(e content.Entry) error
	Search(query string, opts store.SearchOptions) []store.ScoredEntry
	Modules() []string
	SearchAllModules(query string) []registry.Hit
	GetAllModuleEntries() []registry.Hit
	GetModuleEntryByCompositeID(id string) (registry.Hit, bool)
}

// ResolutionCache memoises Resolve results.
type ResolutionCache interface {
	GetOrResolve(ctx context.Context, input, languageHint string, resolve cache.ResolveFunc) (content.Resolution, bool, bool)
	Invalidate(ctx context.Context) (int64, error)
	Stats() cache.Stats
}

// Tracker receives analytics events.
type Tracker interface {
	TrackResolution(ev analytics.ResolutionEvent)
	TrackSearch(ev analytics.SearchEvent)
}

// Options bounds search result sizes.
type Options struct {
	DefaultLimit int
	MaxResults   int
}

type Handler struct {
	svc     Service
	cache   ResolutionCache
	tracker Tracker
	opts    Options
	logger  *slog.Logger
}

// New creates a Handler. cache and tracker may be nil.
func New(svc Service, resolutionCache ResolutionCache, tracker Tracker, opts Options) *Handler {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 10
	}
	if opts.MaxResults < opts.DefaultLimit {
		opts.MaxResults = opts.DefaultLimit
	}
	return &Handler{
		svc:     svc,
		cache:   resolutionCache,
		tracker: tracker,
		opts:    opts,
		logger:  slog.Default().With("component", "api-handler"),
	}
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/resolve", h.Resolve)
	mux.HandleFunc("GET /api/v1/entries/{id}", h.GetEntry)
	mux.HandleFunc("GET /api/v1/entries", h.GetEntryByName)
	mux.HandleFunc("POST /api/v1/entries", h.AddEntry)
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/modules", h.Modules)
	mux.HandleFunc("GET /api/v1/modules/search", h.SearchModules)
	mux.HandleFunc("GET /api/v1/modules/entries", h.ModuleEntries)
	mux.HandleFunc("GET /api/v1/modules/entries/{id}", h.ModuleEntry)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

type resolveResponse struct {
	Query      string              `json:"query"`
	Language   string              `json:"language,omitempty"`
	Resolved   bool                `json:"resolved"`
	Resolution *content.Resolution `json:"resolution,omitempty"`
	CacheHit   bool                `json:"cache_hit"`
	LatencyUs  int64               `json:"latency_us"`
	Explain    []tracing.View      `json:"explain,omitempty"`
}

// Resolve serves GET /api/v1/resolve?q=&lang=&explain=. Explained requests
// bypass the cache so every attempted strategy is reported.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "query parameter 'q' is required"))
		return
	}
	lang := r.URL.Query().Get("lang")
	explain, _ := strconv.ParseBool(r.URL.Query().Get("explain"))

	var (
		res      content.Resolution
		ok       bool
		cacheHit bool
		root     *tracing.Span
	)
	switch {
	case explain:
		ctx, root = tracing.StartSpan(ctx, "resolve", logger.RequestID(ctx))
		res, ok = h.svc.Resolve(ctx, query, lang)
		root.End()
	case h.cache != nil:
		res, ok, cacheHit = h.cache.GetOrResolve(ctx, query, lang, func() (content.Resolution, bool) {
			return h.svc.Resolve(ctx, query, lang)
		})
	default:
		res, ok = h.svc.Resolve(ctx, query, lang)
	}
	latency := time.Since(start)

	resp := resolveResponse{
		Query:     query,
		Language:  lang,
		Resolved:  ok,
		CacheHit:  cacheHit,
		LatencyUs: latency.Microseconds(),
	}
	if ok {
		resp.Resolution = &res
	}
	if root != nil {
		resp.Explain = root.View().Children
	}

	log.Info("resolve completed",
		"query", query,
		"language", lang,
		"resolved", ok,
		"entry_id", res.EntryID,
		"source", res.Source,
		"cache_hit", cacheHit,
		"latency_us", resp.LatencyUs,
	)
	if h.tracker != nil {
		h.tracker.TrackResolution(analytics.ResolutionEvent{
			Type:       analytics.EventResolve,
			Input:      query,
			Language:   lang,
			EntryID:    res.EntryID,
			Source:     string(res.Source),
			Confidence: res.Confidence,
			Resolved:   ok,
			CacheHit:   cacheHit,
			LatencyUs:  resp.LatencyUs,
			Timestamp:  time.Now().UTC(),
			RequestID:  logger.RequestID(ctx),
		})
	}

	status := http.StatusOK
	if !ok {
		status = http.StatusNotFound
	}
	h.writeJSON(w, status, resp)
}

type entryResponse struct {
	Entry    content.Entry             `json:"entry"`
	Tier     content.Tier              `json:"tier"`
	Rendered []content.RenderedSection `json:"rendered"`
}

// GetEntry serves GET /api/v1/entries/{id}?tier=&localized=.
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	e, ok := h.svc.GetEntry(id)
	if !ok {
		h.writeError(w, apperrors.Newf(apperrors.ErrEntryNotFound, http.StatusNotFound, "no entry with id %q", id))
		return
	}
	tier := content.ParseTier(r.URL.Query().Get("tier"))
	localized, _ := strconv.ParseBool(r.URL.Query().Get("localized"))
	h.writeJSON(w, http.StatusOK, entryResponse{
		Entry:    e,
		Tier:     tier,
		Rendered: e.Render(tier, localized),
	})
}

// GetEntryByName serves GET /api/v1/entries?name=.
func (h *Handler) GetEntryByName(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "query parameter 'name' is required"))
		return
	}
	e, ok := h.svc.GetEntryByName(name)
	if !ok {
		h.writeError(w, apperrors.Newf(apperrors.ErrEntryNotFound, http.StatusNotFound, "no entry named %q", name))
		return
	}
	h.writeJSON(w, http.StatusOK, e)
}

// AddEntry serves POST /api/v1/entries.
func (h *Handler) AddEntry(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, maxEntryBodyBytes)

	var e content.Entry
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&e); err != nil {
		h.writeError(w, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid request body: %v", err))
		return
	}

	if err := h.svc.AddEntry(e); err != nil {
		var verr *catalog.ValidationError
		if errors.As(err, &verr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"fields": verr.Fields,
			})
			return
		}
		log.Error("adding entry failed", "entry_id", e.EntryID, "error", err)
		h.writeError(w, err)
		return
	}

	log.Info("entry added", "entry_id", e.EntryID)
	h.writeJSON(w, http.StatusCreated, map[string]string{"entry_id": e.EntryID})
}

type searchResponse struct {
	Query   string              `json:"query"`
	Total   int                 `json:"total"`
	Results []store.ScoredEntry `json:"results"`
}

// Search serves GET /api/v1/search?q=&limit=&type=&category=. type and
// category may repeat or hold comma-separated values.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	params := r.URL.Query()

	query := strings.TrimSpace(params.Get("q"))
	if query == "" {
		h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "query parameter 'q' is required"))
		return
	}

	limit := h.opts.DefaultLimit
	if limitStr := params.Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must be a positive integer"))
			return
		}
		limit = min(parsed, h.opts.MaxResults)
	}

	opts := store.SearchOptions{Limit: limit}
	for _, t := range splitParams(params["type"]) {
		opts.Types = append(opts.Types, content.EntryType(t))
	}
	for _, c := range splitParams(params["category"]) {
		opts.Categories = append(opts.Categories, content.Category(c))
	}

	results := h.svc.Search(query, opts)
	if results == nil {
		results = []store.ScoredEntry{}
	}
	latency := time.Since(start)

	logger.FromContext(ctx).Info("search completed",
		"query", query,
		"returned", len(results),
		"latency_us", latency.Microseconds(),
	)
	if h.tracker != nil {
		h.tracker.TrackSearch(analytics.SearchEvent{
			Type:      analytics.EventSearch,
			Query:     query,
			Returned:  len(results),
			LatencyUs: latency.Microseconds(),
			Timestamp: time.Now().UTC(),
			RequestID: logger.RequestID(ctx),
		})
	}
	h.writeJSON(w, http.StatusOK, searchResponse{Query: query, Total: len(results), Results: results})
}

// Modules serves GET /api/v1/modules.
func (h *Handler) Modules(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"modules": h.svc.Modules()})
}

// SearchModules serves GET /api/v1/modules/search?q=.
func (h *Handler) SearchModules(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "query parameter 'q' is required"))
		return
	}
	hits := h.svc.SearchAllModules(query)
	h.writeJSON(w, http.StatusOK, map[string]any{"query": query, "total": len(hits), "hits": hits})
}

// ModuleEntries serves GET /api/v1/modules/entries.
func (h *Handler) ModuleEntries(w http.ResponseWriter, r *http.Request) {
	hits := h.svc.GetAllModuleEntries()
	h.writeJSON(w, http.StatusOK, map[string]any{"total": len(hits), "hits": hits})
}

// ModuleEntry serves GET /api/v1/modules/entries/{id}.
func (h *Handler) ModuleEntry(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !strings.HasPrefix(id, content.CompositePrefix) {
		h.writeError(w, apperrors.Newf(apperrors.ErrMalformedCompositeID, http.StatusBadRequest,
			"%q does not start with %q", id, content.CompositePrefix))
		return
	}
	hit, ok := h.svc.GetModuleEntryByCompositeID(id)
	if !ok {
		h.writeError(w, apperrors.Newf(apperrors.ErrModuleNotFound, http.StatusNotFound, "no module record %q", id))
		return
	}
	h.writeJSON(w, http.StatusOK, hit)
}

// CacheStats serves GET /api/v1/cache/stats.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	stats := h.cache.Stats()
	total := stats.Hits + stats.Misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     stats.Hits,
		"misses":   stats.Misses,
		"errors":   stats.Errors,
		"total":    total,
		"hit_rate": strconv.FormatFloat(hitRate, 'f', 1, 64) + "%",
	})
}

// CacheInvalidate serves POST /api/v1/cache/invalidate.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, apperrors.New(apperrors.ErrCacheUnavailable, http.StatusServiceUnavailable, "caching is disabled"))
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, apperrors.New(apperrors.ErrInternal, http.StatusInternalServerError, "cache invalidation failed"))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func splitParams(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	message := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	h.writeJSON(w, apperrors.HTTPStatusCode(err), map[string]string{"error": message})
}
