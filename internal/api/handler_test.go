package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/internal/app"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/internal/content"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/internal/resolver"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/internal/resolver/cache"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/pkg/middleware"
)

type recordingTracker struct {
	mu          sync.Mutex
	resolutions []analytics.ResolutionEvent
	searches    []analytics.SearchEvent
}

func (r *recordingTracker) TrackResolution(ev analytics.ResolutionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolutions = append(r.resolutions, ev)
}

func (r *recordingTracker) TrackSearch(ev analytics.SearchEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.searches = append(r.searches, ev)
}

type fakeCache struct {
	entries     map[string]content.Resolution
	invalidated int
}

func (f *fakeCache) GetOrResolve(_ context.Context, input, lang string, resolve cache.ResolveFunc) (content.Resolution, bool, bool) {
	key := input + "|" + lang
	if res, ok := f.entries[key]; ok {
		return res, true, true
	}
	res, ok := resolve()
	if ok {
		f.entries[key] = res
	}
	return res, ok, false
}

func (f *fakeCache) Invalidate(context.Context) (int64, error) {
	n := int64(len(f.entries))
	f.entries = map[string]content.Resolution{}
	f.invalidated++
	return n, nil
}

func (f *fakeCache) Stats() cache.Stats {
	return cache.Stats{Hits: 3, Misses: 1}
}

type fixture struct {
	server  http.Handler
	tracker *recordingTracker
	cache   *fakeCache
}

func newFixture(t *testing.T, withCache bool) fixture {
	t.Helper()
	ds, err := app.LoadDataset(context.Background(), config.ContentConfig{
		EntriesPath: "../../content/entries.yaml",
		AliasesPath: "../../content/aliases.yaml",
		CuratedPath: "../../content/curated.yaml",
		ModulesDir:  "../../content/modules",
	})
	require.NoError(t, err)
	a := app.New(app.Options{Resolver: resolver.DefaultOptions()})
	require.NoError(t, a.Initialize(ds))

	f := fixture{tracker: &recordingTracker{}}
	var rc ResolutionCache
	if withCache {
		f.cache = &fakeCache{entries: map[string]content.Resolution{}}
		rc = f.cache
	}
	mux := http.NewServeMux()
	New(a, rc, f.tracker, Options{DefaultLimit: 2, MaxResults: 3}).Register(mux)
	f.server = middleware.RequestID(mux)
	return f
}

func (f fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.Header.Set(middleware.RequestIDHeader, "req-1")
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestResolve(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(t, http.MethodGet, "/api/v1/resolve?q=HBP", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[resolveResponse](t, rec)
	assert.True(t, resp.Resolved)
	require.NotNil(t, resp.Resolution)
	assert.Equal(t, content.Resolution{EntryID: "condition-hypertension", Source: content.SourceAlias, Confidence: 95}, *resp.Resolution)
	assert.Empty(t, resp.Explain)

	require.Len(t, f.tracker.resolutions, 1)
	ev := f.tracker.resolutions[0]
	assert.Equal(t, analytics.EventResolve, ev.Type)
	assert.Equal(t, "HBP", ev.Input)
	assert.Equal(t, "alias", ev.Source)
	assert.True(t, ev.Resolved)
	assert.Equal(t, "req-1", ev.RequestID)
}

func TestResolveUnresolved(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(t, http.MethodGet, "/api/v1/resolve?q=xyzzy+plugh", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decode[resolveResponse](t, rec)
	assert.False(t, resp.Resolved)
	assert.Nil(t, resp.Resolution)
	require.Len(t, f.tracker.resolutions, 1)
	assert.False(t, f.tracker.resolutions[0].Resolved)
}

func TestResolveRequiresQuery(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(t, http.MethodGet, "/api/v1/resolve?q=+", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "query parameter 'q' is required", decode[map[string]string](t, rec)["error"])
	assert.Empty(t, f.tracker.resolutions)
}

func TestResolveExplain(t *testing.T) {
	f := newFixture(t, true)

	rec := f.do(t, http.MethodGet, "/api/v1/resolve?q=blood+glucose&explain=true", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[resolveResponse](t, rec)
	var names []string
	for _, v := range resp.Explain {
		names = append(names, v.Name)
	}
	assert.Equal(t, []string{"strategy.exact_id", "strategy.exact_name", "strategy.alias", "strategy.slug"}, names)
	assert.Equal(t, false, resp.Explain[0].Attrs["hit"])
	assert.Equal(t, true, resp.Explain[3].Attrs["hit"])
	assert.Equal(t, "test-blood-glucose", resp.Explain[3].Attrs["entry_id"])
	assert.False(t, resp.CacheHit)
	assert.Empty(t, f.cache.entries, "explained requests bypass the cache")
}

func TestResolveUsesCache(t *testing.T) {
	f := newFixture(t, true)

	first := decode[resolveResponse](t, f.do(t, http.MethodGet, "/api/v1/resolve?q=asma&lang=es", ""))
	second := decode[resolveResponse](t, f.do(t, http.MethodGet, "/api/v1/resolve?q=asma&lang=es", ""))

	assert.False(t, first.CacheHit)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Resolution, second.Resolution)
	require.Len(t, f.tracker.resolutions, 2)
	assert.True(t, f.tracker.resolutions[1].CacheHit)
}

func TestGetEntry(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(t, http.MethodGet, "/api/v1/entries/condition-asthma?tier=basic&localized=true", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[entryResponse](t, rec)
	assert.Equal(t, "Asthma", resp.Entry.Name)
	assert.Equal(t, content.TierBasic, resp.Tier)
	require.NotEmpty(t, resp.Rendered)
	assert.Equal(t, content.RenderedSection{
		Title: "Descripción",
		Text:  "El asma hace que los conductos que llevan aire a los pulmones se inflamen.",
	}, resp.Rendered[0])
	assert.Equal(t, "Síntomas", resp.Rendered[1].Title)
	assert.Equal(t, "Wheezing, coughing and feeling short of breath.", resp.Rendered[1].Text)
}

func TestGetEntryNotFound(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(t, http.MethodGet, "/api/v1/entries/condition-nothing", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decode[map[string]string](t, rec)["error"], "condition-nothing")
}

func TestGetEntryByName(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(t, http.MethodGet, "/api/v1/entries?name=coraz%C3%B3n", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "anatomy-heart", decode[content.Entry](t, rec).EntryID)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/v1/entries", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/v1/entries?name=nothing", "").Code)
}

func TestAddEntry(t *testing.T) {
	f := newFixture(t, false)

	body := `{"entry_id":"condition-gout","entry_type":"condition","name":"Gout","category":"musculoskeletal"}`
	rec := f.do(t, http.MethodPost, "/api/v1/entries", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/v1/resolve?q=gout", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "condition-gout", decode[resolveResponse](t, rec).Resolution.EntryID)
}

func TestAddEntryValidation(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(t, http.MethodPost, "/api/v1/entries", `{"entry_id":"x","entry_type":"gadget"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "validation failed", resp.Error)
	assert.Contains(t, resp.Fields, "entry_type")
	assert.Contains(t, resp.Fields, "name")

	rec = f.do(t, http.MethodPost, "/api/v1/entries", `{"entry_id":"x","unknown":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearch(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(t, http.MethodGet, "/api/v1/search?q=blood", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[searchResponse](t, rec)
	assert.LessOrEqual(t, len(resp.Results), 2)

	rec = f.do(t, http.MethodGet, "/api/v1/search?q=blood&limit=50", "")
	assert.LessOrEqual(t, len(decode[searchResponse](t, rec).Results), 3)

	rec = f.do(t, http.MethodGet, "/api/v1/search?q=blood&type=test,medication", "")
	resp = decode[searchResponse](t, rec)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "test-blood-glucose", resp.Results[0].Entry.EntryID)

	rec = f.do(t, http.MethodGet, "/api/v1/search?q=zzzz", "")
	resp = decode[searchResponse](t, rec)
	assert.Equal(t, 0, resp.Total)
	assert.NotNil(t, resp.Results)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/v1/search?q=a&limit=0", "").Code)
	assert.Len(t, f.tracker.searches, 4)
}

func TestModuleRoutes(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(t, http.MethodGet, "/api/v1/modules", "")
	assert.Equal(t, []any{"conditions", "mental-health"}, decode[map[string]any](t, rec)["modules"])

	rec = f.do(t, http.MethodGet, "/api/v1/modules/search?q=depresion", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decode[map[string]any](t, rec)["total"])

	rec = f.do(t, http.MethodGet, "/api/v1/modules/entries", "")
	assert.Equal(t, float64(6), decode[map[string]any](t, rec)["total"])

	rec = f.do(t, http.MethodGet, "/api/v1/modules/entries/localized-conditions-asma", "")
	require.Equal(t, http.StatusOK, rec.Code)
	hit := decode[map[string]any](t, rec)
	assert.Equal(t, "localized-conditions-asma", hit["entry_id"])
	assert.Equal(t, "conditions", hit["category"])

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/v1/modules/entries/conditions-asma", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/v1/modules/entries/localized-conditions-nada", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/v1/modules/search", "").Code)
}

func TestCacheRoutes(t *testing.T) {
	disabled := newFixture(t, false)
	assert.Equal(t, map[string]any{"status": "disabled"}, decode[map[string]any](t, disabled.do(t, http.MethodGet, "/api/v1/cache/stats", "")))
	assert.Equal(t, http.StatusServiceUnavailable, disabled.do(t, http.MethodPost, "/api/v1/cache/invalidate", "").Code)

	f := newFixture(t, true)
	stats := decode[map[string]any](t, f.do(t, http.MethodGet, "/api/v1/cache/stats", ""))
	assert.Equal(t, "75.0%", stats["hit_rate"])
	assert.Equal(t, float64(4), stats["total"])

	f.do(t, http.MethodGet, "/api/v1/resolve?q=asma", "")
	rec := f.do(t, http.MethodPost, "/api/v1/cache/invalidate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decode[map[string]any](t, rec)["keys_deleted"])
	assert.Equal(t, 1, f.cache.invalidated)
}
