// Command loadtest drives concurrent match traffic at a running matcher
// service and prints throughput, latency and status-code breakdowns.
//
// Usage:
//
//	go run ./cmd/loadtest -url http://localhost:8080 -queries queries.txt -concurrency 20
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/internal/matcher/loader"
)

var defaultQueries = []string{
	"hello there",
	"how are you doing",
	"where are you going",
	"I don't know what you mean",
	"what's your name",
	"can you help me",
	"I love you",
	"get out of here",
	"what time is it",
	"are you ready",
	"I'm not sure about that",
	"tell me about yourself",
}

type options struct {
	baseURL     string
	corpus      string
	alternating bool
	concurrency int
	duration    time.Duration
	queries     []string
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the matcher service")
	corpus := flag.String("corpus", "", "corpus to query; empty uses the service default")
	alternating := flag.Bool("alternating", false, "request alternating mode")
	queriesPath := flag.String("queries", "", "file of queries, one per line; empty uses a built-in set")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	flag.Parse()

	queries := defaultQueries
	if *queriesPath != "" {
		lines, err := loader.ReadCorpus(*queriesPath)
		if err != nil || len(lines) == 0 {
			fmt.Fprintf(os.Stderr, "failed to read queries from %s: %v\n", *queriesPath, err)
			os.Exit(1)
		}
		queries = lines
	}

	opts := options{
		baseURL:     *baseURL,
		corpus:      *corpus,
		alternating: *alternating,
		concurrency: *concurrency,
		duration:    *duration,
		queries:     queries,
	}

	fmt.Println("=== Dialog Matcher Load Test ===")
	fmt.Printf("Target:      %s\n", opts.baseURL)
	fmt.Printf("Corpus:      %s\n", orDefault(opts.corpus, "(service default)"))
	fmt.Printf("Concurrency: %d\n", opts.concurrency)
	fmt.Printf("Duration:    %s\n", opts.duration)
	fmt.Printf("Queries:     %d unique\n", len(opts.queries))
	fmt.Println()

	rec := run(opts)
	summary := rec.Summary()
	printSummary(os.Stdout, summary, opts.duration)
	if summary.Total == 0 {
		fmt.Println("WARNING: no requests completed. Is the service running?")
		os.Exit(1)
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// matchURL builds the match request for query.
func matchURL(opts options, query string) string {
	v := url.Values{}
	v.Set("q", query)
	if opts.corpus != "" {
		v.Set("corpus", opts.corpus)
	}
	if opts.alternating {
		v.Set("alternating", "true")
	}
	return opts.baseURL + "/api/v1/match?" + v.Encode()
}

func run(opts options) *Recorder {
	rec := NewRecorder()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        opts.concurrency * 2,
			MaxIdleConnsPerHost: opts.concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.duration)
	defer cancel()

	var wg sync.WaitGroup
	for w := 0; w < opts.concurrency; w++ {
		wg.Add(1)
		go func(next int) {
			defer wg.Done()
			for ctx.Err() == nil {
				query := opts.queries[next%len(opts.queries)]
				next++
				latency, status, hit := doMatch(ctx, client, matchURL(opts, query))
				if ctx.Err() != nil && status == 0 {
					return
				}
				rec.Record(latency, status, hit)
			}
		}(w)
	}
	wg.Wait()
	return rec
}

// doMatch returns the request latency, the HTTP status (0 on transport
// failure) and whether the service answered from its candidate cache.
func doMatch(ctx context.Context, client *http.Client, rawURL string) (time.Duration, int, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, 0, false
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return time.Since(start), 0, false
	}
	defer resp.Body.Close()

	var body struct {
		CacheHit bool `json:"cache_hit"`
	}
	if resp.StatusCode == http.StatusOK {
		_ = json.NewDecoder(resp.Body).Decode(&body)
	}
	io.Copy(io.Discard, resp.Body)
	return time.Since(start), resp.StatusCode, body.CacheHit
}

func printSummary(out io.Writer, s Summary, duration time.Duration) {
	fmt.Fprintln(out, "=== Results ===")
	fmt.Fprintf(out, "Total Requests: %d\n", s.Total)
	fmt.Fprintf(out, "Answered:       %d\n", s.Answered)
	fmt.Fprintf(out, "Rejected (4xx): %d\n", s.Rejected)
	fmt.Fprintf(out, "Failed:         %d\n", s.Failed)
	if s.Total > 0 {
		fmt.Fprintf(out, "Requests/sec:   %.2f\n", float64(s.Total)/duration.Seconds())
		fmt.Fprintf(out, "Cache Hits:     %.1f%%\n", float64(s.CacheHits)/float64(s.Total)*100)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "=== Latency ===")
	fmt.Fprintf(out, "Min:    %s\n", s.Min)
	fmt.Fprintf(out, "Mean:   %s\n", s.Mean)
	fmt.Fprintf(out, "P50:    %s\n", s.P50)
	fmt.Fprintf(out, "P90:    %s\n", s.P90)
	fmt.Fprintf(out, "P99:    %s\n", s.P99)
	fmt.Fprintf(out, "Max:    %s\n", s.Max)
	fmt.Fprintf(out, "StdDev: %s\n", s.StdDev)

	fmt.Fprintln(out)
	fmt.Fprintln(out, "=== Status Codes ===")
	codes := make([]int, 0, len(s.Statuses))
	for code := range s.Statuses {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Fprintf(out, "  %d: %d\n", code, s.Statuses[code])
	}
}
