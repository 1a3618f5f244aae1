package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/pkg/kafka"
)

const maxLatencySamples = 10000

// AggregatedStats is the service-wide view of match traffic.
type AggregatedStats struct {
	TotalMatches     int64            `json:"total_matches"`
	Outcomes         map[string]int64 `json:"outcomes"`
	Corpora          map[string]int64 `json:"corpora"`
	CacheHits        int64            `json:"cache_hits"`
	CacheMisses      int64            `json:"cache_misses"`
	ZeroScoreCount   int64            `json:"zero_score_count"`
	AvgTieSize       float64          `json:"avg_tie_size"`
	AvgLatencyUs     float64          `json:"avg_latency_us"`
	P50LatencyUs     int64            `json:"p50_latency_us"`
	P95LatencyUs     int64            `json:"p95_latency_us"`
	P99LatencyUs     int64            `json:"p99_latency_us"`
	TopQueries       []QueryCount     `json:"top_queries"`
	ZeroScoreQueries []QueryCount     `json:"zero_score_queries"`
	Reloads          int64            `json:"reloads"`
	FailedReloads    int64            `json:"failed_reloads"`
	MatchesPerMinute float64          `json:"matches_per_minute"`
	CapturedAt       time.Time        `json:"captured_at"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator folds events into AggregatedStats. It is fed either by a Kafka
// consumer through HandleEvent or in-process through Track.
type Aggregator struct {
	mu              sync.Mutex
	totalMatches    int64
	outcomes        map[string]int64
	corpora         map[string]int64
	cacheHits       int64
	cacheMisses     int64
	zeroScores      int64
	tieSum          int64
	tieCount        int64
	latencies       []int64
	latencyNext     int
	queryCounts     map[string]int64
	zeroScoreCounts map[string]int64
	reloads         int64
	failedReloads   int64
	startTime       time.Time

	logger *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		outcomes:        make(map[string]int64),
		corpora:         make(map[string]int64),
		latencies:       make([]int64, 0, 1024),
		queryCounts:     make(map[string]int64),
		zeroScoreCounts: make(map[string]int64),
		startTime:       time.Now(),
		logger:          slog.Default().With("component", "analytics-aggregator"),
	}
}

// Track records an event directly, bypassing Kafka.
func (a *Aggregator) Track(_ string, event any) {
	switch e := event.(type) {
	case MatchEvent:
		a.RecordMatch(e)
	case *MatchEvent:
		a.RecordMatch(*e)
	case ReloadEvent:
		a.RecordReload(e)
	case *ReloadEvent:
		a.RecordReload(*e)
	default:
		a.logger.Warn("ignoring unknown analytics event", "type", fmt.Sprintf("%T", event))
	}
}

// HandleEvent decodes Kafka messages by their "type" field.
func (a *Aggregator) HandleEvent() kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		var head struct {
			Type EventType `json:"type"`
		}
		if err := json.Unmarshal(value, &head); err != nil {
			a.logger.Error("failed to decode analytics event", "error", err)
			return nil
		}
		switch head.Type {
		case EventMatch:
			event, err := kafka.DecodeJSON[MatchEvent](value)
			if err != nil {
				a.logger.Error("failed to decode match event", "error", err)
				return nil
			}
			a.RecordMatch(event)
		case EventReload:
			event, err := kafka.DecodeJSON[ReloadEvent](value)
			if err != nil {
				a.logger.Error("failed to decode reload event", "error", err)
				return nil
			}
			a.RecordReload(event)
		default:
			a.logger.Warn("ignoring analytics event", "type", head.Type, "key", string(key))
		}
		return nil
	}
}

func (a *Aggregator) RecordMatch(event MatchEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalMatches++
	a.outcomes[event.Outcome]++
	if event.Corpus != "" {
		a.corpora[event.Corpus]++
	}
	if event.Outcome == OutcomeEmptyQuery {
		return
	}
	if event.CacheHit {
		a.cacheHits++
	} else {
		a.cacheMisses++
	}
	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, event.LatencyUs)
	} else {
		a.latencies[a.latencyNext] = event.LatencyUs
		a.latencyNext = (a.latencyNext + 1) % maxLatencySamples
	}
	a.queryCounts[event.Query]++
	if event.TieSize > 0 {
		a.tieSum += int64(event.TieSize)
		a.tieCount++
	}
	if event.Outcome == OutcomeOK && event.Score == 0 {
		a.zeroScores++
		a.zeroScoreCounts[event.Query]++
	}
}

func (a *Aggregator) RecordReload(event ReloadEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reloads++
	if event.Status == "failed" {
		a.failedReloads++
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := AggregatedStats{
		TotalMatches:   a.totalMatches,
		Outcomes:       copyCounts(a.outcomes),
		Corpora:        copyCounts(a.corpora),
		CacheHits:      a.cacheHits,
		CacheMisses:    a.cacheMisses,
		ZeroScoreCount: a.zeroScores,
		Reloads:        a.reloads,
		FailedReloads:  a.failedReloads,
		CapturedAt:     time.Now().UTC(),
	}
	if a.tieCount > 0 {
		stats.AvgTieSize = float64(a.tieSum) / float64(a.tieCount)
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
	stats.TopQueries = topN(a.queryCounts, 10)
	stats.ZeroScoreQueries = topN(a.zeroScoreCounts, 10)
	if elapsed := time.Since(a.startTime).Minutes(); elapsed > 0 {
		stats.MatchesPerMinute = float64(a.totalMatches) / elapsed
	}
	return stats
}

func copyCounts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
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

// topN returns the n largest counts, ties broken by query text.
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
