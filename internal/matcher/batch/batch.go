// Package batch replays (corpus file, query, expected answer) cases against
// the matcher and reports which ones pass.
package batch

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/internal/matcher/registry"
	apperrors "github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/pkg/errors"
)

// Case is one test case. File names the corpus; relative paths are resolved
// against the directory of the case file.
type Case struct {
	File   string `json:"file"`
	Query  string `json:"query"`
	Answer string `json:"answer"`
}

// DecodeCases reads a JSON array of cases.
func DecodeCases(r io.Reader) ([]Case, error) {
	var cases []Case
	if err := json.NewDecoder(r).Decode(&cases); err != nil {
		return nil, fmt.Errorf("%w: decoding cases: %v", apperrors.ErrInvalidInput, err)
	}
	for i, c := range cases {
		if c.File == "" {
			return nil, fmt.Errorf("%w: case %d has no file", apperrors.ErrInvalidInput, i)
		}
	}
	return cases, nil
}

// ReadCases reads a case file and resolves relative corpus paths against
// its directory.
func ReadCases(path string) ([]Case, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening cases %s: %v", apperrors.ErrSourceUnreadable, path, err)
	}
	defer f.Close()
	cases, err := DecodeCases(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	dir := filepath.Dir(path)
	for i := range cases {
		if !filepath.IsAbs(cases[i].File) {
			cases[i].File = filepath.Join(dir, cases[i].File)
		}
	}
	return cases, nil
}

// Outcome is the result of one case.
type Outcome struct {
	Index     int     `json:"index"`
	Case      Case    `json:"case"`
	Got       string  `json:"got"`
	MatchedID int     `json:"matched_id"`
	Score     float64 `json:"score"`
	Passed    bool    `json:"passed"`
	Error     string  `json:"error,omitempty"`
}

// Report summarises a run. Outcomes are in case order.
type Report struct {
	RunID     string        `json:"run_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Total     int           `json:"total"`
	Passed    int           `json:"passed"`
	Failed    int           `json:"failed"`
	Errors    int           `json:"errors"`
	Outcomes  []Outcome     `json:"outcomes"`
}

// Runner executes cases on a bounded worker pool. Each distinct corpus file
// is indexed once and shared by all cases naming it.
type Runner struct {
	registry    *registry.Registry
	pool        *ants.Pool
	stopwords   string
	alternating bool
	logger      *slog.Logger
}

type Option func(*Runner)

// WithStopwords indexes every corpus with the stopword file at path.
func WithStopwords(path string) Option {
	return func(r *Runner) { r.stopwords = path }
}

// WithAlternating answers each case with the line after the match.
func WithAlternating(alt bool) Option {
	return func(r *Runner) { r.alternating = alt }
}

// NewRunner creates a Runner with workers goroutines; workers < 1 means 1.
func NewRunner(reg *registry.Registry, workers int, opts ...Option) (*Runner, error) {
	if workers < 1 {
		workers = 1
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("creating worker pool: %w", err)
	}
	r := &Runner{
		registry: reg,
		pool:     pool,
		logger:   slog.Default().With("component", "batch-runner"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Release frees the worker pool.
func (r *Runner) Release() {
	r.pool.Release()
}

// Run executes every case and waits for all of them. Cases not started
// before ctx is done are reported as errors.
func (r *Runner) Run(ctx context.Context, cases []Case) (Report, error) {
	report := Report{
		RunID:     newRunID(),
		StartedAt: time.Now().UTC(),
		Total:     len(cases),
		Outcomes:  make([]Outcome, len(cases)),
	}
	start := time.Now()

	var wg sync.WaitGroup
	for i, c := range cases {
		i, c := i, c
		wg.Add(1)
		err := r.pool.Submit(func() {
			defer wg.Done()
			report.Outcomes[i] = r.runCase(ctx, i, c)
		})
		if err != nil {
			wg.Done()
			report.Outcomes[i] = Outcome{Index: i, Case: c, MatchedID: -1, Error: fmt.Sprintf("submitting case: %v", err)}
		}
	}
	wg.Wait()

	for _, o := range report.Outcomes {
		switch {
		case o.Error != "":
			report.Errors++
		case o.Passed:
			report.Passed++
		default:
			report.Failed++
		}
	}
	report.Duration = time.Since(start)
	r.logger.Info("batch run finished",
		"run_id", report.RunID,
		"total", report.Total,
		"passed", report.Passed,
		"failed", report.Failed,
		"errors", report.Errors,
		"duration", report.Duration.Round(time.Millisecond),
	)
	return report, ctx.Err()
}

func (r *Runner) runCase(ctx context.Context, i int, c Case) Outcome {
	out := Outcome{Index: i, Case: c, MatchedID: -1}
	if err := ctx.Err(); err != nil {
		out.Error = err.Error()
		return out
	}
	engine, err := r.registry.Open(registry.Source{
		Name:      c.File,
		Path:      c.File,
		Stopwords: r.stopwords,
	})
	if err != nil {
		out.Error = err.Error()
		return out
	}
	res, err := engine.Match(ctx, c.Query, r.alternating)
	if res.Corpus != "" {
		out.MatchedID = res.MatchedID
		out.Score = res.Score
	}
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.Got = res.SelectedText
	out.Passed = strings.TrimSpace(out.Got) == strings.TrimSpace(c.Answer)
	r.logger.Debug("case finished", "index", i, "query", c.Query, "passed", out.Passed)
	return out
}

func newRunID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return time.Now().UTC().Format("20060102T150405.000000000")
	}
	return hex.EncodeToString(b[:])
}
