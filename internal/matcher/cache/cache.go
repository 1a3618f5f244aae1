// Package cache stores the best-scoring candidate group of a query in Redis.
// The random tie-break is never cached: a hit still draws from the group.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/internal/matcher"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/pkg/resilience"
)

const keyPrefix = "match:"

// Store is the subset of the Redis client the cache uses.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type CandidateCache struct {
	store   Store
	ttl     time.Duration
	breaker *resilience.CircuitBreaker
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a cache over store. A missing key is not a store failure and
// never trips the breaker.
func New(store Store, cfg config.CacheConfig, m *metrics.Metrics) *CandidateCache {
	c := &CandidateCache{
		store:   store,
		ttl:     cfg.TTL,
		metrics: m,
		logger:  slog.Default().With("component", "candidate-cache"),
	}
	c.breaker = resilience.NewCircuitBreaker("redis-cache", resilience.CircuitBreakerConfig{
		FailureThreshold: cfg.FailureThreshold,
		ResetTimeout:     cfg.ResetTimeout,
		IsFailure: func(err error) bool {
			return !pkgredis.IsNilError(err)
		},
		OnStateChange: func(name string, _, to resilience.State) {
			if m != nil {
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})
	if m != nil {
		m.CircuitBreakerState.WithLabelValues(c.breaker.Name()).Set(float64(resilience.StateClosed))
	}
	return c
}

// Key identifies the candidates of a term multiset in one build of a corpus.
func Key(corpus string, generation uint64, terms []string) string {
	sorted := make([]string, len(terms))
	copy(sorted, terms)
	sort.Strings(sorted)
	raw := fmt.Sprintf("gen=%d|%s", generation, strings.Join(sorted, "\x00"))
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%s:%x", keyPrefix, corpus, hash[:16])
}

// Get returns cached candidates for key.
func (c *CandidateCache) Get(ctx context.Context, key string) (matcher.Candidates, bool) {
	var data string
	err := c.breaker.Execute(func() error {
		var err error
		data, err = c.store.Get(ctx, key)
		return err
	})
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Warn("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return matcher.Candidates{}, false
	}
	var cand matcher.Candidates
	if err := json.Unmarshal([]byte(data), &cand); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return matcher.Candidates{}, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	return cand, true
}

// Set stores candidates under key. Failures are logged, not returned.
func (c *CandidateCache) Set(ctx context.Context, key string, cand matcher.Candidates) {
	data, err := json.Marshal(cand)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.store.Set(ctx, key, data, c.ttl)
	})
	if err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the candidates of query in engine, from the cache or
// by scoring. Concurrent misses for the same key score once. The bool reports
// a cache hit.
func (c *CandidateCache) GetOrCompute(ctx context.Context, engine *matcher.Engine, query string) (matcher.Candidates, bool, error) {
	terms := engine.Normalizer().Normalize(query)
	key := Key(engine.Name(), engine.Generation(), terms)
	if cand, ok := c.Get(ctx, key); ok {
		return cand, true, nil
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		cand, err := engine.Candidates(ctx, query)
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, cand)
		return cand, nil
	})
	if err != nil {
		return matcher.Candidates{}, false, err
	}
	return v.(matcher.Candidates), false, nil
}

// Invalidate deletes cached candidates of corpus, or of every corpus when
// corpus is empty.
func (c *CandidateCache) Invalidate(ctx context.Context, corpus string) (int64, error) {
	pattern := keyPrefix + "*"
	if corpus != "" {
		pattern = keyPrefix + corpus + ":*"
	}
	var deleted int64
	err := c.breaker.Execute(func() error {
		var err error
		deleted, err = c.store.FlushByPattern(ctx, pattern)
		return err
	})
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "pattern", pattern, "keys_deleted", deleted)
	return deleted, nil
}

// Stats reports hit and miss counts and the breaker state.
type Stats struct {
	Hits    int64  `json:"hits"`
	Misses  int64  `json:"misses"`
	Breaker string `json:"breaker"`
}

func (c *CandidateCache) Stats() Stats {
	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Breaker: c.breaker.State().String(),
	}
}

func (c *CandidateCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}
