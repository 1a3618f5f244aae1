package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/internal/matcher"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/internal/matcher/cache"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/internal/matcher/executor"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/internal/matcher/handler"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/internal/matcher/registry"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/pkg/middleware"
)

type stack struct {
	server     *httptest.Server
	aggregator *analytics.Aggregator
	registry   *registry.Registry
}

// newStack wires the matcher service the way cmd/matcher does, minus the
// network dependencies, and serves it from an httptest server.
func newStack(t *testing.T, candidateCache *cache.CandidateCache) stack {
	t.Helper()
	dir := t.TempDir()
	stop := writeFile(t, dir, "stopwords.txt", "the\nto\nat\ni\nyou\nme\n")
	movies := writeFile(t, dir, "movies.txt", movieLines)

	m := metrics.New(prometheus.NewRegistry())
	aggregator := analytics.NewAggregator()
	reg, err := registry.FromConfig(config.MatcherConfig{
		Stopwords: stop,
		Seed:      7,
		Corpora: []config.CorpusConfig{
			{Name: "movies", Path: movies, Alternating: true},
		},
	},
		registry.WithMetrics(m),
		registry.WithReloadHook(func(name, status string, stats matcher.Stats, err error) {
			aggregator.Track(name, analytics.ReloadEvent{
				Type:      analytics.EventReload,
				Corpus:    name,
				Status:    status,
				Documents: stats.Documents,
				Timestamp: time.Now(),
			})
		}),
	)
	require.NoError(t, err)

	opts := []executor.Option{
		executor.WithTracker(aggregator),
		executor.WithMetrics(m),
		executor.WithTimeout(2 * time.Second),
	}
	if candidateCache != nil {
		opts = append(opts, executor.WithCache(candidateCache))
	}
	exec := executor.New(reg, opts...)

	checker := health.NewChecker(time.Second)
	checker.Register("corpora", func(ctx context.Context) health.ComponentHealth {
		if reg.Len() == 0 {
			return health.Down("no corpora loaded")
		}
		return health.Up("")
	})

	mux := http.NewServeMux()
	handler.New(exec, reg, candidateCache).Register(mux)
	mux.HandleFunc("GET /api/v1/analytics", analytics.NewHandler(aggregator).Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(5 * time.Second)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	srv := httptest.NewServer(chain)
	t.Cleanup(srv.Close)
	return stack{server: srv, aggregator: aggregator, registry: reg}
}

func (s stack) get(t *testing.T, path string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(s.server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func matchPath(query string, extra url.Values) string {
	v := url.Values{"q": {query}}
	for k, vals := range extra {
		v[k] = vals
	}
	return "/api/v1/match?" + v.Encode()
}

func TestMatchAlternatingByDefault(t *testing.T) {
	s := newStack(t, nil)

	status, body := s.get(t, matchPath("where are you going", nil))
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "Where are you going?", body["matched_text"])
	assert.Equal(t, "To the station. The train leaves at noon.", body["selected_text"])
	assert.Equal(t, true, body["alternating"])
}

func TestMatchDirect(t *testing.T) {
	s := newStack(t, nil)

	status, body := s.get(t, matchPath("the train station", url.Values{"alternating": {"false"}}))
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "To the station. The train leaves at noon.", body["selected_text"])
	assert.Greater(t, body["score"].(float64), 0.0)
}

func TestMatchErrors(t *testing.T) {
	s := newStack(t, nil)

	status, body := s.get(t, matchPath("   ", nil))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"], "empty query")

	status, body = s.get(t, matchPath("I promise", nil))
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "I promise.", body["matched_text"])

	status, _ = s.get(t, matchPath("hello", url.Values{"corpus": {"nope"}}))
	assert.Equal(t, http.StatusNotFound, status)
}

func TestCorporaAndReload(t *testing.T) {
	s := newStack(t, nil)

	resp, err := http.Get(s.server.URL + "/api/v1/corpora")
	require.NoError(t, err)
	var infos []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&infos))
	resp.Body.Close()
	require.Len(t, infos, 1)
	assert.Equal(t, "movies", infos[0]["name"])

	resp, err = http.Post(s.server.URL+"/api/v1/corpora/movies/reload", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAnalyticsSeesTraffic(t *testing.T) {
	s := newStack(t, nil)
	s.get(t, matchPath("can I come with you", nil))
	s.get(t, matchPath("can I come with you", nil))
	s.get(t, matchPath(" ", nil))

	status, body := s.get(t, "/api/v1/analytics")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(3), body["total_matches"])
	outcomes := body["outcomes"].(map[string]any)
	assert.Equal(t, float64(2), outcomes[analytics.OutcomeOK])
	assert.Equal(t, float64(1), outcomes[analytics.OutcomeEmptyQuery])
	assert.Equal(t, float64(1), body["reloads"])
}

func TestHealth(t *testing.T) {
	s := newStack(t, nil)
	status, body := s.get(t, "/health/ready")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "up", body["status"])
}

func TestCandidateCacheWithRedis(t *testing.T) {
	client := skipIfNoRedis(t)
	candidateCache := cache.New(client, config.CacheConfig{
		Enabled:          true,
		TTL:              time.Minute,
		FailureThreshold: 3,
		ResetTimeout:     time.Second,
	}, metrics.New(prometheus.NewRegistry()))
	s := newStack(t, candidateCache)

	_, err := candidateCache.Invalidate(context.Background(), "movies")
	require.NoError(t, err)

	_, first := s.get(t, matchPath("where are you going", nil))
	_, second := s.get(t, matchPath("going where are you", nil))
	assert.Equal(t, false, first["cache_hit"])
	assert.Equal(t, true, second["cache_hit"])
	assert.Equal(t, first["matched_id"], second["matched_id"])

	stats := candidateCache.Stats()
	assert.Equal(t, int64(1), stats.Hits)
}
