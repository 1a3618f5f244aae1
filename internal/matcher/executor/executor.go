// Package executor runs match requests against the registry with the
// service's cross-cutting concerns: candidate caching, deadlines, metrics,
// tracing and analytics events.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/internal/matcher"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/internal/matcher/cache"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/internal/matcher/registry"
	apperrors "github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/pkg/tracing"
)

// Request names a corpus and a query. A nil Alternating uses the corpus
// default; an empty Corpus uses the executor's default corpus.
type Request struct {
	Corpus      string
	Query       string
	Alternating *bool
}

// Response is a finished match plus how it was served.
type Response struct {
	matcher.Result
	CacheHit  bool    `json:"cache_hit"`
	LatencyMs float64 `json:"latency_ms"`
}

type Executor struct {
	registry      *registry.Registry
	cache         *cache.CandidateCache
	tracker       analytics.Tracker
	metrics       *metrics.Metrics
	tracer        *tracing.Tracer
	timeout       time.Duration
	defaultCorpus string
	logger        *slog.Logger
}

type Option func(*Executor)

// WithCache serves candidate groups from c.
func WithCache(c *cache.CandidateCache) Option {
	return func(e *Executor) { e.cache = c }
}

func WithTracker(t analytics.Tracker) Option {
	return func(e *Executor) { e.tracker = t }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

func WithTracer(t *tracing.Tracer) Option {
	return func(e *Executor) { e.tracer = t }
}

// WithTimeout bounds each match. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) { e.timeout = d }
}

func WithDefaultCorpus(name string) Option {
	return func(e *Executor) { e.defaultCorpus = name }
}

func New(reg *registry.Registry, opts ...Option) *Executor {
	e := &Executor{
		registry: reg,
		tracker:  analytics.Discard{},
		logger:   slog.Default().With("component", "match-executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.tracer == nil {
		e.tracer = tracing.NewTracer(false, 0)
	}
	return e
}

// Execute answers req. Errors carry the pkg/errors sentinels; a deadline
// overrun is reported as ErrTimeout.
func (e *Executor) Execute(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	corpus := e.corpusName(req.Corpus)

	ctx, span := e.tracer.Start(ctx, "match")
	span.SetAttr("corpus", corpus)
	defer e.tracer.Finish(span)

	var (
		resp Response
		err  error
	)
	engine, src, err := e.registry.Get(corpus)
	if err == nil {
		alternating := src.Alternating
		if req.Alternating != nil {
			alternating = *req.Alternating
		}
		err = resilience.WithTimeout(ctx, e.timeout, "match", func(ctx context.Context) error {
			var runErr error
			resp, runErr = e.run(ctx, engine, req.Query, alternating)
			return runErr
		})
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", apperrors.ErrTimeout, err)
		}
	}

	latency := time.Since(start)
	resp.LatencyMs = float64(latency.Microseconds()) / 1000
	outcome := Outcome(err)
	span.SetAttr("outcome", outcome)
	e.observe(ctx, corpus, req.Query, resp, outcome, latency)
	return resp, err
}

func (e *Executor) run(ctx context.Context, engine *matcher.Engine, query string, alternating bool) (Response, error) {
	var resp Response

	cctx, cspan := e.tracer.Start(ctx, "candidates")
	cand, hit, err := e.candidates(cctx, engine, query)
	cspan.SetAttr("cache_hit", hit)
	cspan.End()
	if err != nil {
		return resp, err
	}
	resp.CacheHit = hit

	_, sspan := e.tracer.Start(ctx, "select")
	result, err := engine.Select(cand, alternating)
	sspan.SetAttr("tie_size", len(cand.Group))
	sspan.End()
	resp.Result = result
	return resp, err
}

func (e *Executor) candidates(ctx context.Context, engine *matcher.Engine, query string) (matcher.Candidates, bool, error) {
	if e.cache == nil {
		c, err := engine.Candidates(ctx, query)
		return c, false, err
	}
	// rejected requests never reach the cache
	if strings.TrimSpace(query) == "" {
		return matcher.Candidates{}, false, apperrors.ErrEmptyQuery
	}
	if engine.Len() == 0 {
		return matcher.Candidates{}, false, fmt.Errorf("%w: %s", apperrors.ErrEmptyCorpus, engine.Name())
	}
	return e.cache.GetOrCompute(ctx, engine, query)
}

// Explain reports how query scores against document id of a corpus.
func (e *Executor) Explain(corpus, query string, id int) (matcher.Explanation, error) {
	engine, _, err := e.registry.Get(e.corpusName(corpus))
	if err != nil {
		return matcher.Explanation{}, err
	}
	return engine.Explain(query, id)
}

// DefaultCorpus returns the corpus used when a request names none.
func (e *Executor) DefaultCorpus() string {
	return e.corpusName("")
}

func (e *Executor) corpusName(name string) string {
	if name != "" {
		return name
	}
	if e.defaultCorpus != "" {
		return e.defaultCorpus
	}
	if names := e.registry.Names(); len(names) == 1 {
		return names[0]
	}
	return ""
}

func (e *Executor) observe(ctx context.Context, corpus, query string, resp Response, outcome string, latency time.Duration) {
	if e.metrics != nil {
		e.metrics.MatchesTotal.WithLabelValues(corpus, outcome).Inc()
		if outcome == analytics.OutcomeOK || outcome == analytics.OutcomeNoSuccessor {
			e.metrics.MatchLatency.WithLabelValues(corpus).Observe(latency.Seconds())
			e.metrics.TieGroupSize.WithLabelValues(corpus).Observe(float64(resp.TieSize))
		}
	}
	e.tracker.Track(corpus, analytics.MatchEvent{
		Type:        analytics.EventMatch,
		Corpus:      corpus,
		Query:       query,
		Terms:       resp.Terms,
		Outcome:     outcome,
		MatchedID:   resp.MatchedID,
		SelectedID:  resp.SelectedID,
		Score:       resp.Score,
		TieSize:     resp.TieSize,
		Alternating: resp.Alternating,
		CacheHit:    resp.CacheHit,
		LatencyUs:   latency.Microseconds(),
		Timestamp:   time.Now().UTC(),
		RequestID:   logger.RequestID(ctx),
	})
	logger.FromContext(ctx).Debug("match executed",
		"corpus", corpus,
		"outcome", outcome,
		"matched_id", resp.MatchedID,
		"selected_id", resp.SelectedID,
		"tie_size", resp.TieSize,
		"cache_hit", resp.CacheHit,
		"latency", latency,
	)
}

// Outcome classifies a match error for metrics and analytics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return analytics.OutcomeOK
	case apperrors.Is(err, apperrors.ErrEmptyQuery):
		return analytics.OutcomeEmptyQuery
	case apperrors.Is(err, apperrors.ErrNoSuccessor):
		return analytics.OutcomeNoSuccessor
	case apperrors.Is(err, apperrors.ErrEmptyCorpus):
		return analytics.OutcomeEmptyCorpus
	case apperrors.Is(err, apperrors.ErrCorpusNotFound):
		return analytics.OutcomeNotFound
	case apperrors.Is(err, apperrors.ErrTimeout):
		return analytics.OutcomeTimeout
	default:
		return analytics.OutcomeError
	}
}
