package cache

import (
	"context"
	"errors"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/internal/matcher"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/internal/matcher/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/pkg/errors"
)

type memStore struct {
	mu   sync.Mutex
	data map[string]string
	fail error
	gets int
	sets int
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string]string)}
}

func (s *memStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if s.fail != nil {
		return "", s.fail
	}
	v, ok := s.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (s *memStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets++
	if s.fail != nil {
		return s.fail
	}
	s.data[key] = string(value.([]byte))
	return nil
}

func (s *memStore) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k := range s.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(s.data, k)
			n++
		}
	}
	return n, nil
}

func testEngine(t *testing.T, name string) *matcher.Engine {
	t.Helper()
	e, err := matcher.Build(name, []string{"dog barks loudly", "cat meows quietly"}, tokenizer.New([]string{"the"}), matcher.WithSeed(1))
	require.NoError(t, err)
	return e
}

func cacheConfig() config.CacheConfig {
	return config.CacheConfig{Enabled: true, TTL: time.Minute, FailureThreshold: 2, ResetTimeout: time.Hour}
}

func TestKeyIgnoresTermOrderButNotMultiplicity(t *testing.T) {
	a := Key("c", 1, []string{"dog", "barks"})
	b := Key("c", 1, []string{"barks", "dog"})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, Key("c", 1, []string{"barks", "dog", "dog"}))
	assert.NotEqual(t, a, Key("c", 2, []string{"barks", "dog"}))
	assert.NotEqual(t, a, Key("other", 1, []string{"barks", "dog"}))
	assert.Contains(t, a, "match:c:")
}

func TestGetOrCompute(t *testing.T) {
	store := newMemStore()
	c := New(store, cacheConfig(), nil)
	e := testEngine(t, "pets")

	cand, hit, err := c.GetOrCompute(context.Background(), e, "dog barks")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []int{0}, cand.Group)

	// same terms, different surface form
	cand2, hit, err := c.GetOrCompute(context.Background(), e, "barks, the dog!")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, cand.Group, cand2.Group)
	assert.InDelta(t, cand.Score, cand2.Score, 1e-12)

	s := c.Stats()
	assert.Equal(t, int64(1), s.Hits)
	assert.Equal(t, int64(1), s.Misses)
	assert.Equal(t, "closed", s.Breaker)
}

func TestErrorsAreNotCached(t *testing.T) {
	store := newMemStore()
	c := New(store, cacheConfig(), nil)
	empty, err := matcher.Build("empty", nil, tokenizer.New(nil))
	require.NoError(t, err)

	_, _, err = c.GetOrCompute(context.Background(), empty, "hello")
	assert.ErrorIs(t, err, apperrors.ErrEmptyCorpus)
	assert.Empty(t, store.data)
}

func TestBreakerOpensOnStoreFailure(t *testing.T) {
	store := newMemStore()
	store.fail = errors.New("connection refused")
	c := New(store, cacheConfig(), nil)
	e := testEngine(t, "pets")

	for i := 0; i < 3; i++ {
		cand, hit, err := c.GetOrCompute(context.Background(), e, "cat")
		require.NoError(t, err, "scoring must not depend on the cache")
		assert.False(t, hit)
		assert.Equal(t, []int{1}, cand.Group)
	}
	assert.Equal(t, "open", c.Stats().Breaker)

	store.mu.Lock()
	calls := store.gets + store.sets
	store.mu.Unlock()
	_, _, err := c.GetOrCompute(context.Background(), e, "cat")
	require.NoError(t, err)
	store.mu.Lock()
	assert.Equal(t, calls, store.gets+store.sets, "open breaker skips the store")
	store.mu.Unlock()
}

func TestMissesDoNotTripBreaker(t *testing.T) {
	store := newMemStore()
	c := New(store, cacheConfig(), nil)
	for i := 0; i < 5; i++ {
		_, ok := c.Get(context.Background(), "match:none:x")
		assert.False(t, ok)
	}
	assert.Equal(t, "closed", c.Stats().Breaker)
}

func TestInvalidate(t *testing.T) {
	store := newMemStore()
	c := New(store, cacheConfig(), nil)
	pets := testEngine(t, "pets")
	zoo := testEngine(t, "zoo")
	ctx := context.Background()

	_, _, err := c.GetOrCompute(ctx, pets, "dog")
	require.NoError(t, err)
	_, _, err = c.GetOrCompute(ctx, zoo, "dog")
	require.NoError(t, err)

	n, err := c.Invalidate(ctx, "pets")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = c.Invalidate(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Empty(t, store.data)
}
