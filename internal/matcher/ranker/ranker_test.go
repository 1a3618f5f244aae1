package ranker

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/pkg/errors"
)

func TestComputeIDF(t *testing.T) {
	idf := ComputeIDF(map[string]int{"cat": 2, "sat": 1, "dog": 3}, 3)
	assert.InDelta(t, math.Log10(1.5), idf["cat"], 1e-12)
	assert.InDelta(t, math.Log10(3), idf["sat"], 1e-12)
	assert.Equal(t, 0.0, idf["dog"], "df == N yields zero, not an error")
	assert.Len(t, idf, 3)
}

func TestComputeIDFUsesFloatDivision(t *testing.T) {
	idf := ComputeIDF(map[string]int{"x": 2}, 3)
	assert.InDelta(t, 0.176, idf["x"], 0.001)
}

func TestVectorize(t *testing.T) {
	idf := map[string]float64{"a": 0.5, "b": 2}
	v, err := Vectorize(map[string]int{"b": 1, "a": 4}, idf)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, v.Terms)
	assert.Equal(t, 2.0, v.Weight("a"))
	assert.Equal(t, 2.0, v.Weight("b"))
	assert.InDelta(t, math.Sqrt(8), v.Norm, 1e-12)
}

func TestVectorizeEmptyHasZeroNorm(t *testing.T) {
	v, err := Vectorize(map[string]int{}, map[string]float64{})
	require.NoError(t, err)
	assert.Zero(t, v.Norm)
	assert.Empty(t, v.Terms)
}

func TestVectorizeMissingIDF(t *testing.T) {
	_, err := Vectorize(map[string]int{"ghost": 1}, map[string]float64{})
	assert.ErrorIs(t, err, apperrors.ErrInconsistentIndex)
}

func mustVector(t *testing.T, tf map[string]int, idf map[string]float64) Vector {
	t.Helper()
	v, err := Vectorize(tf, idf)
	require.NoError(t, err)
	return v
}

func TestScoreAll(t *testing.T) {
	idf := map[string]float64{"dog": 1, "barks": 1, "cat": 1, "meows": 1}
	docs := []Vector{
		mustVector(t, map[string]int{"dog": 1, "barks": 1}, idf),
		mustVector(t, map[string]int{"cat": 1, "meows": 1}, idf),
		mustVector(t, map[string]int{}, idf),
		mustVector(t, map[string]int{"dog": 1}, idf),
	}
	query := mustVector(t, map[string]int{"dog": 1, "barks": 1}, idf)

	scores, err := ScoreAll(context.Background(), query, docs)
	require.NoError(t, err)
	require.Len(t, scores, 4)
	assert.InDelta(t, 1.0, scores[0], 1e-12)
	assert.Zero(t, scores[1])
	assert.Zero(t, scores[2], "zero-norm document scores zero")
	assert.InDelta(t, 1/math.Sqrt(2), scores[3], 1e-12)
	for _, s := range scores {
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0+1e-12)
	}
}

func TestScoreAllZeroQuery(t *testing.T) {
	idf := map[string]float64{"a": 1}
	docs := []Vector{mustVector(t, map[string]int{"a": 1}, idf)}
	scores, err := ScoreAll(context.Background(), Vector{}, docs)
	require.NoError(t, err)
	assert.Equal(t, []float64{0}, scores)
}

func TestScoreAllCancelled(t *testing.T) {
	idf := map[string]float64{"a": 1}
	docs := []Vector{mustVector(t, map[string]int{"a": 1}, idf)}
	query := mustVector(t, map[string]int{"a": 1}, idf)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ScoreAll(ctx, query, docs)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExplain(t *testing.T) {
	idf := map[string]float64{"a": 1, "b": 3, "c": 1}
	doc := mustVector(t, map[string]int{"a": 1, "b": 1, "c": 1}, idf)
	query := mustVector(t, map[string]int{"a": 1, "b": 1}, idf)

	parts := Explain(query, doc)
	require.Len(t, parts, 2)
	assert.Equal(t, "b", parts[0].Term)
	var sum float64
	for _, p := range parts {
		sum += p.Score
	}
	assert.InDelta(t, Cosine(query, doc), sum, 1e-12)
	assert.Nil(t, Explain(Vector{}, doc))
}

func BenchmarkScoreAll(b *testing.B) {
	idf := map[string]float64{}
	docs := make([]Vector, 1000)
	for i := range docs {
		tf := map[string]int{}
		for j := 0; j < 8; j++ {
			term := string(rune('a'+(i+j)%26)) + string(rune('a'+j))
			tf[term]++
			idf[term] = 1.5
		}
		v, _ := Vectorize(tf, idf)
		docs[i] = v
	}
	query := docs[10]
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = ScoreAll(ctx, query, docs)
	}
}
