// Package metrics defines the Prometheus metric collectors used by the
// matcher and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the matcher.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	MatchesTotal         *prometheus.CounterVec
	MatchLatency         *prometheus.HistogramVec
	TieGroupSize         *prometheus.HistogramVec
	CorpusDocuments      *prometheus.GaugeVec
	CorpusVocabulary     *prometheus.GaugeVec
	CorpusReloadsTotal   *prometheus.CounterVec
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg. A nil reg uses the
// default Prometheus registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
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
		MatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "matcher_matches_total",
				Help: "Total match requests by corpus and outcome (ok, empty_query, no_successor, error).",
			},
			[]string{"corpus", "outcome"},
		),
		MatchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "matcher_match_latency_seconds",
				Help:    "Time spent scoring a query against a corpus.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"corpus"},
		),
		TieGroupSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "matcher_tie_group_size",
				Help:    "Number of documents sharing the maximal score per query.",
				Buckets: []float64{1, 2, 3, 5, 10, 25, 100, 1000},
			},
			[]string{"corpus"},
		),
		CorpusDocuments: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "matcher_corpus_documents",
				Help: "Number of indexed documents per corpus.",
			},
			[]string{"corpus"},
		),
		CorpusVocabulary: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "matcher_corpus_vocabulary",
				Help: "Number of distinct terms per corpus.",
			},
			[]string{"corpus"},
		),
		CorpusReloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "matcher_corpus_reloads_total",
				Help: "Corpus reloads by corpus and status.",
			},
			[]string{"corpus", "status"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "matcher_cache_hits_total",
				Help: "Total number of candidate cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "matcher_cache_misses_total",
				Help: "Total number of candidate cache misses.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.MatchesTotal,
		m.MatchLatency,
		m.TieGroupSize,
		m.CorpusDocuments,
		m.CorpusVocabulary,
		m.CorpusReloadsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler for g, or for the
// default gatherer when g is nil.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
