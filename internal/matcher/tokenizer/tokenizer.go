// Package tokenizer turns a line of dialog into the terms the matcher indexes.
// Contractions are cut back to the word they attach to, sentence punctuation
// is dropped, and stopwords are removed. Case is preserved.
package tokenizer

import (
	"regexp"
	"strings"
)

// rule is one rewrite applied to the whole line.
type rule struct {
	pattern     *regexp.Regexp
	replacement string
}

// rules run once each, in order. The contracted word is discarded rather than
// expanded: "don't" becomes "do", "we're" becomes "we".
var rules = []rule{
	{regexp.MustCompile(`(\w)'re`), "${1}"},
	{regexp.MustCompile(`(\w)'m`), "${1}"},
	{regexp.MustCompile(`(\w)n't`), "${1}"},
	{regexp.MustCompile(`(\w)'ll`), "${1}"},
	{regexp.MustCompile(`(\w)'s`), "${1}"},
	{regexp.MustCompile(`(\w)'d`), "${1}"},
	{regexp.MustCompile(`(\w)'ve`), "${1}"},
	{regexp.MustCompile(`['".;:?!]`), ""},
	{regexp.MustCompile(`, `), " "},
	{regexp.MustCompile(`,([^ ])`), ", ${1}"},
	{regexp.MustCompile(` {2,}`), " "},
}

// Normalizer holds a stopword set. It is immutable after New and safe for
// concurrent use.
type Normalizer struct {
	stopwords map[string]struct{}
}

// New creates a Normalizer. Stopwords are compared lower-cased.
func New(stopwords []string) *Normalizer {
	set := make(map[string]struct{}, len(stopwords))
	for _, w := range stopwords {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		set[w] = struct{}{}
	}
	return &Normalizer{stopwords: set}
}

// IsStopword reports whether the lower-cased form of term is a stopword.
func (n *Normalizer) IsStopword(term string) bool {
	_, ok := n.stopwords[strings.ToLower(term)]
	return ok
}

// StopwordCount returns the size of the stopword set.
func (n *Normalizer) StopwordCount() int {
	return len(n.stopwords)
}

// Clean applies the rewrite rules without splitting or stopword removal.
func Clean(text string) string {
	for _, r := range rules {
		text = r.pattern.ReplaceAllString(text, r.replacement)
	}
	return text
}

// Normalize returns the ordered terms of text. Blank input yields an empty,
// non-nil slice.
func (n *Normalizer) Normalize(text string) []string {
	if strings.TrimSpace(text) == "" {
		return []string{}
	}
	fields := strings.Fields(Clean(text))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if n.IsStopword(f) {
			continue
		}
		terms = append(terms, f)
	}
	return terms
}
