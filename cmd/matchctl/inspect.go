package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/internal/matcher"
)

type termSummary struct {
	Term    string  `json:"term"`
	DocFreq int     `json:"doc_freq"`
	IDF     float64 `json:"idf"`
}

type inspection struct {
	matcher.Stats
	TopTerms []termSummary `json:"top_terms"`
}

func inspectCommand(c *cli.Context) error {
	engine, err := openCorpus(c)
	if err != nil {
		return err
	}
	report := inspect(engine, c.Int("top"))
	if c.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return printInspection(os.Stdout, report)
}

// inspect summarises engine with its top terms by document frequency;
// equal frequencies are ordered by term.
func inspect(engine *matcher.Engine, top int) inspection {
	entries := engine.Snapshot()
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].DocFreq > entries[j].DocFreq
	})
	if top < 0 {
		top = 0
	}
	if top > len(entries) {
		top = len(entries)
	}
	terms := make([]termSummary, 0, top)
	for _, e := range entries[:top] {
		idf, _ := engine.IDF(e.Term)
		terms = append(terms, termSummary{Term: e.Term, DocFreq: e.DocFreq, IDF: idf})
	}
	return inspection{Stats: engine.Stats(), TopTerms: terms}
}

func printInspection(out io.Writer, report inspection) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "corpus\t%s\n", report.Name)
	fmt.Fprintf(tw, "documents\t%d\n", report.Documents)
	fmt.Fprintf(tw, "empty documents\t%d\n", report.EmptyDocuments)
	fmt.Fprintf(tw, "vocabulary\t%d\n", report.Vocabulary)
	fmt.Fprintf(tw, "tokens\t%d\n", report.Tokens)
	fmt.Fprintf(tw, "stopwords\t%d\n", report.Stopwords)
	if len(report.TopTerms) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "TERM\tDF\tIDF")
		for _, t := range report.TopTerms {
			fmt.Fprintf(tw, "%s\t%d\t%.4f\n", t.Term, t.DocFreq, t.IDF)
		}
	}
	return tw.Flush()
}
