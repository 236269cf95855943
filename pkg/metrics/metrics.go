// Package metrics defines the Prometheus collectors used by the resolver
// service and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	ResolutionsTotal     *prometheus.CounterVec
	ResolutionLatency    *prometheus.HistogramVec
	StrategyAttempts     *prometheus.CounterVec
	ModuleFaultsTotal    *prometheus.CounterVec
	AdaptationsTotal     *prometheus.CounterVec
	SearchResultsCount   prometheus.Histogram
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	EntriesStored        prometheus.Gauge
	ModulesRegistered    prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New creates all collectors and registers them with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// NewWithRegistry creates all collectors on the given registry. Tests pass a
// fresh prometheus.NewRegistry() to avoid duplicate registration panics.
func NewWithRegistry(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		ResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "resolutions_total",
				Help: "Resolve calls by winning strategy (source) and outcome.",
			},
			[]string{"source", "resolved"},
		),
		ResolutionLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "resolution_latency_seconds",
				Help:    "Resolve call latency in seconds.",
				Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
			},
			[]string{"source"},
		),
		StrategyAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "resolver_strategy_attempts_total",
				Help: "Strategy attempts by strategy and result (hit, miss).",
			},
			[]string{"strategy", "result"},
		),
		ModuleFaultsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "module_faults_total",
				Help: "Localized module calls that failed and were skipped.",
			},
			[]string{"category", "op"},
		),
		AdaptationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adaptations_total",
				Help: "Localized records adapted by outcome (merged, created).",
			},
			[]string{"outcome"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_results_count",
				Help:    "Number of results returned per search query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of resolution cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of resolution cache misses.",
			},
		),
		EntriesStored: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "entries_stored",
				Help: "Number of canonical entries in the entry store.",
			},
		),
		ModulesRegistered: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "modules_registered",
				Help: "Number of registered localized content modules.",
			},
		),
		gatherer: gatherer,
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.ResolutionsTotal,
		m.ResolutionLatency,
		m.StrategyAttempts,
		m.ModuleFaultsTotal,
		m.AdaptationsTotal,
		m.SearchResultsCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.EntriesStored,
		m.ModulesRegistered,
	)

	return m
}

// ObserveStrategy counts one strategy attempt.
func (m *Metrics) ObserveStrategy(strategy string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.StrategyAttempts.WithLabelValues(strategy, result).Inc()
}

// ObserveResolution records the outcome and latency of one Resolve call.
func (m *Metrics) ObserveResolution(source string, resolved bool, elapsed time.Duration) {
	if source == "" {
		source = "none"
	}
	outcome := "false"
	if resolved {
		outcome = "true"
	}
	m.ResolutionsTotal.WithLabelValues(source, outcome).Inc()
	m.ResolutionLatency.WithLabelValues(source).Observe(elapsed.Seconds())
}

// ObserveModuleFault counts a skipped module failure.
func (m *Metrics) ObserveModuleFault(category, op string, _ error) {
	m.ModuleFaultsTotal.WithLabelValues(category, op).Inc()
}

// Handler returns the Prometheus scrape HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
