package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/film-similarity/pkg/kafka"
)

const maxLatencySamples = 10000

type AggregatedStats struct {
	TotalQueries     int64          `json:"total_queries"`
	QueriesByMode    map[Mode]int64 `json:"queries_by_mode"`
	CacheHits        int64          `json:"cache_hits"`
	CacheMisses      int64          `json:"cache_misses"`
	EmptyResultCount int64          `json:"empty_result_count"`
	TableRebuilds    int64          `json:"table_rebuilds"`
	AvgLatencyMs     float64        `json:"avg_latency_ms"`
	P50LatencyMs     int64          `json:"p50_latency_ms"`
	P95LatencyMs     int64          `json:"p95_latency_ms"`
	P99LatencyMs     int64          `json:"p99_latency_ms"`
	TopFilms         []QueryCount   `json:"top_films"`
	TopPrompts       []QueryCount   `json:"top_prompts"`
	TopRecommended   []QueryCount   `json:"top_recommended"`
	QueriesPerMinute float64        `json:"queries_per_minute"`
	LastTableBuild   *TableEvent    `json:"last_table_build,omitempty"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator folds rank and table events into running statistics. Events
// arrive either directly through Track or from Kafka through HandleEvent.
type Aggregator struct {
	mu            sync.RWMutex
	totalQueries  atomic.Int64
	cacheHits     atomic.Int64
	cacheMisses   atomic.Int64
	emptyResults  atomic.Int64
	tableRebuilds atomic.Int64
	byMode        map[Mode]int64
	latencies     []int64
	filmCounts    map[string]int64
	promptCounts  map[string]int64
	topCounts     map[string]int64
	lastTable     *TableEvent
	startTime     time.Time
	logger        *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		byMode:       make(map[Mode]int64),
		latencies:    make([]int64, 0, 1024),
		filmCounts:   make(map[string]int64),
		promptCounts: make(map[string]int64),
		topCounts:    make(map[string]int64),
		startTime:    time.Now(),
		logger:       slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent returns a Kafka handler feeding agg. Undecodable messages are
// logged and acknowledged so they do not block the partition.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	router := kafka.NewTypeRouter()
	kafka.Route(router, string(EventRank), func(ctx context.Context, e RankEvent) error {
		agg.recordRankEvent(e)
		return nil
	})
	kafka.Route(router, string(EventTableRebuild), func(ctx context.Context, e TableEvent) error {
		agg.recordTableEvent(e)
		return nil
	})
	return router.Handler()
}

// Track records event in-process. It satisfies Tracker.
func (a *Aggregator) Track(event any) {
	switch e := event.(type) {
	case RankEvent:
		a.recordRankEvent(e)
	case TableEvent:
		a.recordTableEvent(e)
	default:
		a.logger.Warn("ignoring unknown analytics event", "type", fmt.Sprintf("%T", event))
	}
}

func (a *Aggregator) recordRankEvent(event RankEvent) {
	a.totalQueries.Add(1)
	if event.CacheHit {
		a.cacheHits.Add(1)
	} else {
		a.cacheMisses.Add(1)
	}
	if event.Returned == 0 {
		a.emptyResults.Add(1)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.byMode[event.Mode]++
	if len(a.latencies) == maxLatencySamples {
		copy(a.latencies, a.latencies[1:])
		a.latencies = a.latencies[:maxLatencySamples-1]
	}
	a.latencies = append(a.latencies, event.LatencyMs)
	switch event.Mode {
	case ModePrompt:
		a.promptCounts[strings.ToLower(strings.Join(event.Query, " "))]++
	default:
		for _, id := range event.Query {
			a.filmCounts[id]++
		}
	}
	if event.TopDocID != "" {
		a.topCounts[event.TopDocID]++
	}
}

func (a *Aggregator) recordTableEvent(event TableEvent) {
	a.tableRebuilds.Add(1)
	a.mu.Lock()
	a.lastTable = &event
	a.mu.Unlock()
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalQueries:     a.totalQueries.Load(),
		QueriesByMode:    make(map[Mode]int64, len(a.byMode)),
		CacheHits:        a.cacheHits.Load(),
		CacheMisses:      a.cacheMisses.Load(),
		EmptyResultCount: a.emptyResults.Load(),
		TableRebuilds:    a.tableRebuilds.Load(),
	}
	for mode, n := range a.byMode {
		stats.QueriesByMode[mode] = n
	}
	if a.lastTable != nil {
		last := *a.lastTable
		stats.LastTableBuild = &last
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopFilms = topN(a.filmCounts, 10)
	stats.TopPrompts = topN(a.promptCounts, 10)
	stats.TopRecommended = topN(a.topCounts, 10)
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalQueries) / elapsed
	}

	return stats
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

// topN returns the n most frequent keys, ties broken alphabetically.
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
