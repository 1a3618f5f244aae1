package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/internal/matcher/tokenizer"
)

func newIndex(stopwords ...string) *FrequencyIndex {
	return NewFrequencyIndex(tokenizer.New(stopwords))
}

func TestAddAssignsSequentialIDs(t *testing.T) {
	idx := newIndex()
	for i, line := range []string{"one", "two", "three"} {
		doc := idx.Add(line)
		assert.Equal(t, i, doc.ID)
		assert.Equal(t, line, doc.Text)
	}
	assert.Equal(t, 3, idx.Len())
}

func TestTermFrequencyAndDocFrequency(t *testing.T) {
	idx := newIndex("the")
	idx.Add("the cat saw the cat")
	idx.Add("a cat ran")
	idx.Add("dog")

	d0, err := idx.Document(0)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"cat": 2, "saw": 1}, d0.TermFreq)
	assert.Equal(t, []string{"cat", "saw", "cat"}, d0.Terms)

	// repeated occurrences within one document count once
	assert.Equal(t, 2, idx.DocFreq("cat"))
	assert.Equal(t, 1, idx.DocFreq("saw"))
	assert.Equal(t, 1, idx.DocFreq("dog"))
	assert.Equal(t, 0, idx.DocFreq("the"))

	for _, doc := range idx.Documents() {
		for term, tf := range doc.TermFreq {
			assert.GreaterOrEqual(t, tf, 1, "tf(%d,%s)", doc.ID, term)
		}
	}
	for term, df := range idx.DocFreqs() {
		assert.GreaterOrEqual(t, df, 1, "df(%s)", term)
	}
}

func TestEmptyDocumentStillGetsID(t *testing.T) {
	idx := newIndex("the")
	idx.Add("hello")
	doc := idx.Add("the ?!")
	assert.Equal(t, 1, doc.ID)
	assert.True(t, doc.Empty())
	assert.Equal(t, 1, idx.Stats().EmptyDocuments)
}

func TestIndexQueryDoesNotTouchCorpus(t *testing.T) {
	idx := newIndex()
	idx.Add("cat sat")
	idx.Add("cat ran")

	before := idx.DocFreqs()
	q := idx.IndexQuery("cat cat unicorn")

	assert.Equal(t, QueryID, q.ID)
	assert.Equal(t, map[string]int{"cat": 2, "unicorn": 1}, q.TermFreq)
	assert.Equal(t, map[string]int{"cat": 2, "unicorn": 1}, q.DocFreq)
	assert.Equal(t, before, idx.DocFreqs())
	assert.Equal(t, 2, idx.Len())
	assert.Equal(t, 0, idx.DocFreq("unicorn"))
}

func TestDocumentOutOfRange(t *testing.T) {
	idx := newIndex()
	idx.Add("x")
	_, err := idx.Document(1)
	assert.Error(t, err)
	_, err = idx.Document(-1)
	assert.Error(t, err)
}

func TestSnapshotSorted(t *testing.T) {
	idx := newIndex()
	idx.Add("b a b")
	idx.Add("c a")

	snap := idx.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "a", snap[0].Term)
	assert.Equal(t, 2, snap[0].DocFreq)
	assert.Equal(t, PostingList{{DocID: 0, Frequency: 1}, {DocID: 1, Frequency: 1}}, snap[0].Postings)
	assert.Equal(t, "b", snap[1].Term)
	assert.Equal(t, PostingList{{DocID: 0, Frequency: 2}}, snap[1].Postings)
	assert.Equal(t, []string{"a", "b", "c"}, idx.Terms())

	stats := idx.Stats()
	assert.Equal(t, Stats{Documents: 2, Vocabulary: 3, Tokens: 5}, stats)
}
