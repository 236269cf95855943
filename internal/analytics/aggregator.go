package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/pkg/kafka"
)

const maxLatencySamples = 10000

// Stats is a point-in-time summary of resolution traffic.
type Stats struct {
	TotalResolutions     int64            `json:"total_resolutions"`
	Resolved             int64            `json:"resolved"`
	Unresolved           int64            `json:"unresolved"`
	CacheHits            int64            `json:"cache_hits"`
	BySource             map[string]int64 `json:"by_source"`
	AvgConfidence        float64          `json:"avg_confidence"`
	AvgLatencyUs         float64          `json:"avg_latency_us"`
	P50LatencyUs         int64            `json:"p50_latency_us"`
	P95LatencyUs         int64            `json:"p95_latency_us"`
	P99LatencyUs         int64            `json:"p99_latency_us"`
	TopQueries           []QueryCount     `json:"top_queries"`
	TopUnresolved        []QueryCount     `json:"top_unresolved"`
	TotalSearches        int64            `json:"total_searches"`
	ZeroResultSearches   int64            `json:"zero_result_searches"`
	ResolutionsPerMinute float64          `json:"resolutions_per_minute"`
	Since                time.Time        `json:"since"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator keeps running totals over resolution and search events.
type Aggregator struct {
	mu            sync.RWMutex
	topN          int
	total         int64
	resolved      int64
	cacheHits     int64
	confidenceSum int64
	bySource      map[string]int64
	latencies     []int64
	latencyNext   int
	queryCounts   map[string]int64
	unresolved    map[string]int64
	searches      int64
	zeroResults   int64
	startTime     time.Time
	logger        *slog.Logger
}

// NewAggregator creates an Aggregator reporting the topN most frequent
// queries.
func NewAggregator(topN int) *Aggregator {
	if topN <= 0 {
		topN = 10
	}
	return &Aggregator{
		topN:        topN,
		bySource:    make(map[string]int64),
		latencies:   make([]int64, 0, 1024),
		queryCounts: make(map[string]int64),
		unresolved:  make(map[string]int64),
		startTime:   time.Now().UTC(),
		logger:      slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent decodes bus messages into the aggregator. The type header
// selects the event kind; messages without one are dispatched on the
// payload's "type" field. Undecodable messages are logged and skipped.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		kind := EventType(msg.Type)
		if kind == "" {
			env, err := kafka.DecodeJSON[envelope](msg.Value)
			if err != nil {
				agg.logger.Error("failed to decode analytics event", "key", string(msg.Key), "error", err)
				return nil
			}
			kind = env.Type
		}
		switch kind {
		case EventResolve:
			ev, err := kafka.DecodeJSON[ResolutionEvent](msg.Value)
			if err != nil {
				return fmt.Errorf("resolution event: %w", err)
			}
			agg.RecordResolution(ev)
		case EventSearch:
			ev, err := kafka.DecodeJSON[SearchEvent](msg.Value)
			if err != nil {
				return fmt.Errorf("search event: %w", err)
			}
			agg.RecordSearch(ev)
		default:
			agg.logger.Warn("unknown analytics event type", "type", kind, "key", string(msg.Key))
		}
		return nil
	}
}

// RecordResolution adds one resolution event.
func (a *Aggregator) RecordResolution(ev ResolutionEvent) {
	query := normalizeQuery(ev.Input)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.total++
	if ev.CacheHit {
		a.cacheHits++
	}
	a.recordLatency(ev.LatencyUs)
	if query != "" {
		a.queryCounts[query]++
	}
	if !ev.Resolved {
		if query != "" {
			a.unresolved[query]++
		}
		return
	}
	a.resolved++
	a.confidenceSum += int64(ev.Confidence)
	a.bySource[ev.Source]++
}

// RecordSearch adds one search event.
func (a *Aggregator) RecordSearch(ev SearchEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.searches++
	if ev.Returned == 0 {
		a.zeroResults++
	}
}

// recordLatency keeps the most recent maxLatencySamples values.
func (a *Aggregator) recordLatency(us int64) {
	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, us)
		return
	}
	a.latencies[a.latencyNext] = us
	a.latencyNext = (a.latencyNext + 1) % maxLatencySamples
}

// Stats summarises everything recorded so far.
func (a *Aggregator) Stats() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := Stats{
		TotalResolutions:   a.total,
		Resolved:           a.resolved,
		Unresolved:         a.total - a.resolved,
		CacheHits:          a.cacheHits,
		BySource:           make(map[string]int64, len(a.bySource)),
		TotalSearches:      a.searches,
		ZeroResultSearches: a.zeroResults,
		Since:              a.startTime,
	}
	for k, v := range a.bySource {
		stats.BySource[k] = v
	}
	if a.resolved > 0 {
		stats.AvgConfidence = float64(a.confidenceSum) / float64(a.resolved)
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyUs = float64(sum) / float64(len(sorted))
		stats.P50LatencyUs = percentile(sorted, 50)
		stats.P95LatencyUs = percentile(sorted, 95)
		stats.P99LatencyUs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, a.topN)
	stats.TopUnresolved = topN(a.unresolved, a.topN)
	if elapsed := time.Since(a.startTime).Minutes(); elapsed > 0 {
		stats.ResolutionsPerMinute = float64(a.total) / elapsed
	}
	return stats
}

func normalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN returns the n highest counts; equal counts are ordered by query.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
