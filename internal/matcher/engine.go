// Package matcher answers a line of dialog with the most similar line of a
// corpus, or with the line that follows it.
package matcher

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/internal/matcher/index"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/internal/matcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/internal/matcher/selector"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/internal/matcher/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/pkg/metrics"
)

// Engine holds one indexed corpus. The corpus is fixed once Build returns;
// every query works on its own transient record, so Match may be called
// concurrently. Only the tie-break random source is shared.
type Engine struct {
	name       string
	index      *index.FrequencyIndex
	idf        map[string]float64
	vectors    []ranker.Vector
	generation uint64
	builtAt    time.Time
	logger     *slog.Logger
	metrics    *metrics.Metrics

	rngMu sync.Mutex
	rng   *rand.Rand
}

// Option configures an Engine.
type Option func(*Engine)

// WithRand sets the tie-break random source.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) { e.rng = r }
}

// WithSeed seeds a private tie-break random source.
func WithSeed(seed int64) Option {
	return func(e *Engine) { e.rng = rand.New(rand.NewSource(seed)) }
}

// WithLogger replaces the engine's component logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics publishes corpus gauges on build.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithGeneration tags the engine with a build counter. Cached candidates are
// keyed by it so a reload never serves stale groups.
func WithGeneration(g uint64) Option {
	return func(e *Engine) { e.generation = g }
}

// Build indexes lines as corpus documents in order and computes their
// weight vectors. Blank lines are skipped and never assigned an ID. An empty
// corpus is valid; Match on it returns ErrEmptyCorpus.
func Build(name string, lines []string, n *tokenizer.Normalizer, opts ...Option) (*Engine, error) {
	start := time.Now()
	e := &Engine{
		name:  name,
		index: index.NewFrequencyIndex(n),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default().With("component", "matcher", "corpus", name)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		e.index.Add(line)
	}

	// Corpus DF is fixed after load and every query sees N = len(docs)+1;
	// documents are weighted over the same N.
	docs := e.index.Documents()
	e.idf = ranker.ComputeIDF(e.index.DocFreqs(), len(docs)+1)
	e.vectors = make([]ranker.Vector, len(docs))
	for i, doc := range docs {
		v, err := ranker.Vectorize(doc.TermFreq, e.idf)
		if err != nil {
			return nil, fmt.Errorf("vectorizing document %d of %s: %w", doc.ID, name, err)
		}
		e.vectors[i] = v
	}
	e.builtAt = time.Now()

	stats := e.index.Stats()
	if e.metrics != nil {
		e.metrics.CorpusDocuments.WithLabelValues(name).Set(float64(stats.Documents))
		e.metrics.CorpusVocabulary.WithLabelValues(name).Set(float64(stats.Vocabulary))
	}
	e.logger.Info("corpus indexed",
		"documents", stats.Documents,
		"empty_documents", stats.EmptyDocuments,
		"vocabulary", stats.Vocabulary,
		"generation", e.generation,
		"duration", time.Since(start).Round(time.Microsecond),
	)
	return e, nil
}

// Candidates is the deterministic part of a match: every document sharing
// the best score for a query.
type Candidates struct {
	Group []int    `json:"group"`
	Score float64  `json:"score"`
	Terms []string `json:"terms"`
}

// Result is a finished match. MatchedID is the most similar line; SelectedID
// is the line returned, which differs only in alternating mode.
type Result struct {
	Corpus       string   `json:"corpus"`
	SelectedID   int      `json:"selected_id"`
	SelectedText string   `json:"selected_text"`
	MatchedID    int      `json:"matched_id"`
	MatchedText  string   `json:"matched_text"`
	Score        float64  `json:"score"`
	TieSize      int      `json:"tie_size"`
	Alternating  bool     `json:"alternating"`
	Terms        []string `json:"terms"`
}

// Name returns the corpus name.
func (e *Engine) Name() string { return e.name }

// Generation returns the build counter set by WithGeneration.
func (e *Engine) Generation() uint64 { return e.generation }

// BuiltAt returns when the corpus vectors were computed.
func (e *Engine) BuiltAt() time.Time { return e.builtAt }

// Len returns the number of corpus documents.
func (e *Engine) Len() int { return len(e.vectors) }

// Normalizer returns the normalizer the corpus was indexed with.
func (e *Engine) Normalizer() *tokenizer.Normalizer { return e.index.Normalizer() }

// Line returns the text of document id.
func (e *Engine) Line(id int) (string, error) {
	doc, err := e.index.Document(id)
	if err != nil {
		return "", err
	}
	return doc.Text, nil
}

// Candidates scores query against every document and returns the best
// group. A blank query returns ErrEmptyQuery without touching the index.
func (e *Engine) Candidates(ctx context.Context, query string) (Candidates, error) {
	if strings.TrimSpace(query) == "" {
		return Candidates{}, apperrors.ErrEmptyQuery
	}
	if len(e.vectors) == 0 {
		return Candidates{}, fmt.Errorf("%w: %s", apperrors.ErrEmptyCorpus, e.name)
	}

	qv, rec, err := e.queryVector(query)
	if err != nil {
		return Candidates{}, err
	}
	scores, err := ranker.ScoreAll(ctx, qv, e.vectors)
	if err != nil {
		return Candidates{}, err
	}
	group, best := selector.MaxGroup(scores)
	return Candidates{Group: group, Score: best, Terms: rec.Terms}, nil
}

// Select breaks the tie in c and applies alternating mode. When the matched
// line has no successor the returned Result still names the match alongside
// ErrNoSuccessor.
func (e *Engine) Select(c Candidates, alternating bool) (Result, error) {
	if len(c.Group) == 0 {
		return Result{}, fmt.Errorf("%w: %s", apperrors.ErrEmptyCorpus, e.name)
	}
	e.rngMu.Lock()
	matched := selector.Pick(e.rng, c.Group)
	e.rngMu.Unlock()

	matchedText, err := e.Line(matched)
	if err != nil {
		return Result{}, fmt.Errorf("%w: candidate %d: %v", apperrors.ErrInconsistentIndex, matched, err)
	}
	res := Result{
		Corpus:       e.name,
		SelectedID:   matched,
		SelectedText: matchedText,
		MatchedID:    matched,
		MatchedText:  matchedText,
		Score:        c.Score,
		TieSize:      len(c.Group),
		Alternating:  alternating,
		Terms:        c.Terms,
	}
	if !alternating {
		return res, nil
	}

	next, err := selector.Successor(matched, e.Len())
	if err != nil {
		res.SelectedID = -1
		res.SelectedText = ""
		return res, err
	}
	res.SelectedID = next
	res.SelectedText, err = e.Line(next)
	if err != nil {
		return res, fmt.Errorf("%w: successor %d: %v", apperrors.ErrInconsistentIndex, next, err)
	}
	return res, nil
}

// Match returns the corpus line most similar to query, or the line after it
// when alternating is set.
func (e *Engine) Match(ctx context.Context, query string, alternating bool) (Result, error) {
	c, err := e.Candidates(ctx, query)
	if err != nil {
		return Result{}, err
	}
	return e.Select(c, alternating)
}

// Explanation shows how a query scored against one document.
type Explanation struct {
	DocumentID    int                   `json:"document_id"`
	Text          string                `json:"text"`
	Score         float64               `json:"score"`
	QueryNorm     float64               `json:"query_norm"`
	DocumentNorm  float64               `json:"document_norm"`
	QueryWeights  map[string]float64    `json:"query_weights"`
	Contributions []ranker.Contribution `json:"contributions"`
}

// Explain scores query against document id and reports each shared term's
// share of the score.
func (e *Engine) Explain(query string, id int) (Explanation, error) {
	if strings.TrimSpace(query) == "" {
		return Explanation{}, apperrors.ErrEmptyQuery
	}
	doc, err := e.index.Document(id)
	if err != nil {
		return Explanation{}, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	qv, _, err := e.queryVector(query)
	if err != nil {
		return Explanation{}, err
	}
	dv := e.vectors[id]
	return Explanation{
		DocumentID:    id,
		Text:          doc.Text,
		Score:         ranker.Cosine(qv, dv),
		QueryNorm:     qv.Norm,
		DocumentNorm:  dv.Norm,
		QueryWeights:  qv.Weights,
		Contributions: ranker.Explain(qv, dv),
	}, nil
}

// Stats describes the indexed corpus.
type Stats struct {
	Name       string    `json:"name"`
	Generation uint64    `json:"generation"`
	BuiltAt    time.Time `json:"built_at"`
	Stopwords  int       `json:"stopwords"`
	index.Stats
}

// Stats reports corpus size, vocabulary and build metadata.
func (e *Engine) Stats() Stats {
	return Stats{
		Name:       e.name,
		Generation: e.generation,
		BuiltAt:    e.builtAt,
		Stopwords:  e.index.Normalizer().StopwordCount(),
		Stats:      e.index.Stats(),
	}
}

// Snapshot exposes the corpus term table.
func (e *Engine) Snapshot() []index.TermEntry {
	return e.index.Snapshot()
}

// IDF returns the IDF of term over the corpus plus one query slot, and
// whether the corpus knows it.
func (e *Engine) IDF(term string) (float64, bool) {
	w, ok := e.idf[term]
	return w, ok
}

// Vector returns the weight vector of document id.
func (e *Engine) Vector(id int) (ranker.Vector, bool) {
	if id < 0 || id >= len(e.vectors) {
		return ranker.Vector{}, false
	}
	return e.vectors[id], true
}

// queryVector weights the query with IDF over the corpus plus the query
// itself.
func (e *Engine) queryVector(query string) (ranker.Vector, index.Record, error) {
	rec := e.index.IndexQuery(query)
	idf := ranker.ComputeIDF(rec.DocFreq, len(e.vectors)+1)
	qv, err := ranker.Vectorize(rec.TermFreq, idf)
	if err != nil {
		return ranker.Vector{}, rec, fmt.Errorf("vectorizing query: %w", err)
	}
	return qv, rec, nil
}
