// Package ranker weights term counts by inverse document frequency and scores
// documents against a query by cosine similarity.
package ranker

import (
	"context"
	"fmt"
	"math"
	"sort"

	apperrors "github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/pkg/errors"
)

// Vector is a TF-IDF weight vector. Terms is sorted so every sum over a
// vector runs in the same order.
type Vector struct {
	Terms   []string
	Weights map[string]float64
	Norm    float64
}

// Weight returns the weight of term, or 0.
func (v Vector) Weight(term string) float64 {
	return v.Weights[term]
}

// ComputeIDF returns log10(total/df) for every term in df. A term present in
// every document gets 0.
func ComputeIDF(df map[string]int, total int) map[string]float64 {
	idf := make(map[string]float64, len(df))
	for term, n := range df {
		idf[term] = computeIDF(total, n)
	}
	return idf
}

func computeIDF(total, docFreq int) float64 {
	if docFreq <= 0 || total <= 0 {
		return 0
	}
	return math.Log10(float64(total) / float64(docFreq))
}

// Vectorize multiplies each term count by its IDF. Every term in tf must have
// an IDF entry; a missing one means the DF map and the document disagree.
func Vectorize(tf map[string]int, idf map[string]float64) (Vector, error) {
	v := Vector{
		Terms:   make([]string, 0, len(tf)),
		Weights: make(map[string]float64, len(tf)),
	}
	for term := range tf {
		v.Terms = append(v.Terms, term)
	}
	sort.Strings(v.Terms)

	var sumSquares float64
	for _, term := range v.Terms {
		w, ok := idf[term]
		if !ok {
			return Vector{}, fmt.Errorf("%w: term %q has no idf entry", apperrors.ErrInconsistentIndex, term)
		}
		weight := w * float64(tf[term])
		v.Weights[term] = weight
		sumSquares += weight * weight
	}
	v.Norm = math.Sqrt(sumSquares)
	return v, nil
}

// Cosine returns the cosine similarity of query and doc. Either norm being
// zero gives 0.
func Cosine(query, doc Vector) float64 {
	if query.Norm == 0 || doc.Norm == 0 {
		return 0
	}
	var score float64
	for _, term := range doc.Terms {
		qw, ok := query.Weights[term]
		if !ok {
			continue
		}
		score += (doc.Weights[term] / doc.Norm) * (qw / query.Norm)
	}
	return score
}

// ScoreAll scores every document against query, indexed like docs. ctx is
// checked before each document.
func ScoreAll(ctx context.Context, query Vector, docs []Vector) ([]float64, error) {
	scores := make([]float64, len(docs))
	if query.Norm == 0 {
		return scores, ctx.Err()
	}
	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("scoring document %d: %w", i, err)
		}
		scores[i] = Cosine(query, doc)
	}
	return scores, nil
}

// Contribution is one shared term's share of a cosine score.
type Contribution struct {
	Term        string  `json:"term"`
	QueryWeight float64 `json:"query_weight"`
	DocWeight   float64 `json:"doc_weight"`
	Score       float64 `json:"score"`
}

// Explain breaks Cosine(query, doc) down by shared term, largest first.
func Explain(query, doc Vector) []Contribution {
	if query.Norm == 0 || doc.Norm == 0 {
		return nil
	}
	var out []Contribution
	for _, term := range doc.Terms {
		qw, ok := query.Weights[term]
		if !ok {
			continue
		}
		dw := doc.Weights[term]
		out = append(out, Contribution{
			Term:        term,
			QueryWeight: qw,
			DocWeight:   dw,
			Score:       (dw / doc.Norm) * (qw / query.Norm),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}
