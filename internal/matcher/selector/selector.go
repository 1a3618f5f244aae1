// Package selector picks the answer line from a set of similarity scores.
package selector

import (
	"fmt"
	"math/rand"

	apperrors "github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/pkg/errors"
)

// MaxGroup returns the IDs sharing the highest score, in ascending order,
// and that score. Scores are compared exactly. An empty input returns nil.
func MaxGroup(scores []float64) ([]int, float64) {
	if len(scores) == 0 {
		return nil, 0
	}
	best := scores[0]
	for _, s := range scores[1:] {
		if s > best {
			best = s
		}
	}
	group := make([]int, 0, 1)
	for id, s := range scores {
		if s == best {
			group = append(group, id)
		}
	}
	return group, best
}

// Pick chooses one ID from group uniformly at random. A single-member group
// does not consume randomness.
func Pick(r *rand.Rand, group []int) int {
	switch len(group) {
	case 0:
		return -1
	case 1:
		return group[0]
	default:
		return group[r.Intn(len(group))]
	}
}

// Successor returns id+1 if it names a document in a corpus of n lines.
func Successor(id, n int) (int, error) {
	next := id + 1
	if id < 0 || next >= n {
		return 0, fmt.Errorf("%w: line %d is the last of %d", apperrors.ErrNoSuccessor, id, n)
	}
	return next, nil
}
