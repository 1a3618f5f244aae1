// Package index counts term occurrences per document (TF) and the number of
// documents containing each term (DF) for a corpus of lines.
package index

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/internal/matcher/tokenizer"
)

// FrequencyIndex owns the corpus documents and the corpus DF map. IDs are
// assigned by Add in insertion order, so a document can never be counted
// twice.
type FrequencyIndex struct {
	normalizer *tokenizer.Normalizer

	mu       sync.RWMutex
	docs     []Document
	docFreq  map[string]int
	postings map[string]PostingList
	tokens   int
}

func NewFrequencyIndex(n *tokenizer.Normalizer) *FrequencyIndex {
	return &FrequencyIndex{
		normalizer: n,
		docFreq:    make(map[string]int),
		postings:   make(map[string]PostingList),
	}
}

// Normalizer returns the normalizer documents and queries are split with.
func (f *FrequencyIndex) Normalizer() *tokenizer.Normalizer {
	return f.normalizer
}

// Add indexes text as the next document. A line that normalizes to nothing
// is still assigned an ID with an empty term map.
func (f *FrequencyIndex) Add(text string) Document {
	terms := f.normalizer.Normalize(text)
	tf := countTerms(terms)

	f.mu.Lock()
	defer f.mu.Unlock()

	doc := Document{
		ID:       len(f.docs),
		Text:     text,
		Terms:    terms,
		TermFreq: tf,
	}
	for term, freq := range tf {
		f.docFreq[term]++
		f.postings[term] = append(f.postings[term], Posting{DocID: doc.ID, Frequency: freq})
	}
	f.tokens += len(terms)
	f.docs = append(f.docs, doc)
	return doc
}

// IndexQuery builds the transient query record for text. The corpus is not
// modified.
func (f *FrequencyIndex) IndexQuery(text string) Record {
	terms := f.normalizer.Normalize(text)
	tf := countTerms(terms)

	f.mu.RLock()
	defer f.mu.RUnlock()

	df := make(map[string]int, len(tf))
	for term := range tf {
		if n, ok := f.docFreq[term]; ok {
			df[term] = n
			continue
		}
		df[term] = 1
	}
	return Record{
		Document: Document{
			ID:       QueryID,
			Text:     text,
			Terms:    terms,
			TermFreq: tf,
		},
		DocFreq: df,
	}
}

// Len returns the number of corpus documents.
func (f *FrequencyIndex) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.docs)
}

// Document returns the document with the given ID.
func (f *FrequencyIndex) Document(id int) (Document, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if id < 0 || id >= len(f.docs) {
		return Document{}, fmt.Errorf("document %d out of range [0, %d)", id, len(f.docs))
	}
	return f.docs[id], nil
}

// Documents returns the corpus documents in ID order. The slice is a copy;
// the term maps are shared and must not be modified.
func (f *FrequencyIndex) Documents() []Document {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]Document, len(f.docs))
	copy(out, f.docs)
	return out
}

// DocFreq returns the number of corpus documents containing term.
func (f *FrequencyIndex) DocFreq(term string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.docFreq[term]
}

// DocFreqs returns a copy of the corpus DF map.
func (f *FrequencyIndex) DocFreqs() map[string]int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string]int, len(f.docFreq))
	for term, n := range f.docFreq {
		out[term] = n
	}
	return out
}

// Terms returns the corpus vocabulary in sorted order.
func (f *FrequencyIndex) Terms() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	terms := make([]string, 0, len(f.docFreq))
	for term := range f.docFreq {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}

// Snapshot returns every term with its DF and postings, sorted by term.
func (f *FrequencyIndex) Snapshot() []TermEntry {
	f.mu.RLock()
	defer f.mu.RUnlock()
	entries := make([]TermEntry, 0, len(f.postings))
	for term, postings := range f.postings {
		pl := make(PostingList, len(postings))
		copy(pl, postings)
		entries = append(entries, TermEntry{
			Term:     term,
			DocFreq:  f.docFreq[term],
			Postings: pl,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Term < entries[j].Term
	})
	return entries
}

func (f *FrequencyIndex) Stats() Stats {
	f.mu.RLock()
	defer f.mu.RUnlock()
	s := Stats{
		Documents:  len(f.docs),
		Vocabulary: len(f.docFreq),
		Tokens:     f.tokens,
	}
	for _, d := range f.docs {
		if d.Empty() {
			s.EmptyDocuments++
		}
	}
	return s
}

func countTerms(terms []string) map[string]int {
	tf := make(map[string]int, len(terms))
	for _, t := range terms {
		tf[t]++
	}
	return tf
}
