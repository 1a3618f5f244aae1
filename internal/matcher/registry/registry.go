// Package registry keeps one matcher.Engine per named corpus and rebuilds
// engines when their source files change.
package registry

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/internal/matcher"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/internal/matcher/loader"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/internal/matcher/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/pkg/metrics"
)

// Source names a corpus file and the stopword file it is indexed with.
type Source struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Stopwords   string `json:"stopwords,omitempty"`
	Alternating bool   `json:"alternating"`
}

// Load status labels.
const (
	StatusOK      = "ok"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// ReloadHook is told about every (re)load of a corpus.
type ReloadHook func(name string, status string, stats matcher.Stats, err error)

type entry struct {
	source Source
	engine *matcher.Engine
}

// Registry maps corpus names to engines. Lookups never block on a load: a
// reload builds a new engine and swaps it in.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry

	loads      singleflight.Group
	generation atomic.Uint64
	seed       int64
	metrics    *metrics.Metrics
	hook       ReloadHook
	debounce   time.Duration
	logger     *slog.Logger
}

type Option func(*Registry)

// WithSeed gives every engine a tie-break source seeded with seed. Zero keeps
// time-seeded sources.
func WithSeed(seed int64) Option {
	return func(r *Registry) { r.seed = seed }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

func WithReloadHook(h ReloadHook) Option {
	return func(r *Registry) { r.hook = h }
}

// WithDebounce sets how long Watch waits for a file to settle before
// reloading.
func WithDebounce(d time.Duration) Option {
	return func(r *Registry) { r.debounce = d }
}

func New(opts ...Option) *Registry {
	r := &Registry{
		entries:  make(map[string]*entry),
		debounce: 250 * time.Millisecond,
		logger:   slog.Default().With("component", "registry"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FromConfig builds a registry holding every configured corpus.
func FromConfig(cfg config.MatcherConfig, opts ...Option) (*Registry, error) {
	if cfg.Seed != 0 {
		opts = append([]Option{WithSeed(cfg.Seed)}, opts...)
	}
	r := New(opts...)
	for _, c := range cfg.Corpora {
		src := Source{
			Name:        c.Name,
			Path:        c.Path,
			Stopwords:   cfg.StopwordsFor(c),
			Alternating: c.Alternating,
		}
		if _, err := r.Add(src); err != nil {
			return nil, err
		}
	}
	r.logger.Info("registry ready", "corpora", len(cfg.Corpora))
	return r, nil
}

// Add loads src and registers it, replacing any corpus of the same name.
// Unreadable files are logged and leave an empty or truncated corpus.
func (r *Registry) Add(src Source) (*matcher.Engine, error) {
	if src.Name == "" {
		return nil, fmt.Errorf("%w: corpus name is required", apperrors.ErrInvalidInput)
	}
	engine, err := r.load(src)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.entries[src.Name] = &entry{source: src, engine: engine}
	r.mu.Unlock()
	return engine, nil
}

// Get returns the engine and source registered under name.
func (r *Registry) Get(name string) (*matcher.Engine, Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, Source{}, fmt.Errorf("%w: %q", apperrors.ErrCorpusNotFound, name)
	}
	return e.engine, e.source, nil
}

// Open returns the engine for src.Name, loading it on first use. Concurrent
// callers for the same name share one load.
func (r *Registry) Open(src Source) (*matcher.Engine, error) {
	if engine, _, err := r.Get(src.Name); err == nil {
		return engine, nil
	}
	v, err, _ := r.loads.Do(src.Name, func() (any, error) {
		if engine, _, err := r.Get(src.Name); err == nil {
			return engine, nil
		}
		return r.Add(src)
	})
	if err != nil {
		return nil, err
	}
	return v.(*matcher.Engine), nil
}

// Reload rebuilds the named corpus from its files.
func (r *Registry) Reload(name string) (matcher.Stats, error) {
	_, src, err := r.Get(name)
	if err != nil {
		return matcher.Stats{}, err
	}
	v, err, _ := r.loads.Do(name, func() (any, error) {
		return r.Add(src)
	})
	if err != nil {
		return matcher.Stats{}, err
	}
	return v.(*matcher.Engine).Stats(), nil
}

// Names returns the registered corpus names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Info pairs a source with its engine's stats.
type Info struct {
	Source
	Stats matcher.Stats `json:"stats"`
}

// List describes every registered corpus, sorted by name.
func (r *Registry) List() []Info {
	r.mu.RLock()
	out := make([]Info, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, Info{Source: e.source, Stats: e.engine.Stats()})
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of registered corpora.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *Registry) load(src Source) (*matcher.Engine, error) {
	logger := r.logger.With("corpus", src.Name)
	status := StatusOK

	stopwords, swErr := loader.ReadStopwords(src.Stopwords)
	if swErr != nil {
		status = StatusPartial
		logger.Warn("stopwords unreadable, continuing without them", "path", src.Stopwords, "error", swErr)
	}
	lines, corpusErr := loader.ReadCorpus(src.Path)
	if corpusErr != nil {
		status = StatusPartial
		if len(lines) == 0 {
			status = StatusFailed
		}
		logger.Warn("corpus unreadable, continuing with what was read", "path", src.Path, "documents", len(lines), "error", corpusErr)
	}

	gen := r.generation.Add(1)
	opts := []matcher.Option{
		matcher.WithGeneration(gen),
		matcher.WithLogger(logger.With("component", "matcher")),
	}
	if r.seed != 0 {
		opts = append(opts, matcher.WithSeed(r.seed))
	}
	if r.metrics != nil {
		opts = append(opts, matcher.WithMetrics(r.metrics))
	}
	engine, err := matcher.Build(src.Name, lines, tokenizer.New(stopwords), opts...)
	if err != nil {
		r.record(src.Name, StatusFailed, matcher.Stats{}, err)
		return nil, fmt.Errorf("building corpus %s: %w", src.Name, err)
	}

	loadErr := corpusErr
	if loadErr == nil {
		loadErr = swErr
	}
	r.record(src.Name, status, engine.Stats(), loadErr)
	return engine, nil
}

func (r *Registry) record(name, status string, stats matcher.Stats, err error) {
	if r.metrics != nil {
		r.metrics.CorpusReloadsTotal.WithLabelValues(name, status).Inc()
	}
	if r.hook != nil {
		r.hook(name, status, stats, err)
	}
}
