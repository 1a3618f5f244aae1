package main

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Recorder accumulates per-request results from concurrent workers.
type Recorder struct {
	total     atomic.Int64
	answered  atomic.Int64
	rejected  atomic.Int64
	failed    atomic.Int64
	cacheHits atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
	statuses  map[int]int64
}

func NewRecorder() *Recorder {
	return &Recorder{
		latencies: make([]time.Duration, 0, 100000),
		statuses:  make(map[int]int64),
	}
}

// Record files one request. Status 0 means the request never got a
// response. 4xx answers (empty query, no successor, unknown corpus) are
// counted as rejected rather than failed.
func (r *Recorder) Record(latency time.Duration, status int, cacheHit bool) {
	r.total.Add(1)
	switch {
	case status >= 200 && status < 300:
		r.answered.Add(1)
	case status >= 400 && status < 500:
		r.rejected.Add(1)
	default:
		r.failed.Add(1)
	}
	if cacheHit {
		r.cacheHits.Add(1)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses[status]++
	if status != 0 {
		r.latencies = append(r.latencies, latency)
	}
}

// Summary is a point-in-time view of a Recorder.
type Summary struct {
	Total     int64
	Answered  int64
	Rejected  int64
	Failed    int64
	CacheHits int64
	Min       time.Duration
	Mean      time.Duration
	P50       time.Duration
	P90       time.Duration
	P99       time.Duration
	Max       time.Duration
	StdDev    time.Duration
	Statuses  map[int]int64
}

func (r *Recorder) Summary() Summary {
	r.mu.Lock()
	latencies := make([]time.Duration, len(r.latencies))
	copy(latencies, r.latencies)
	statuses := make(map[int]int64, len(r.statuses))
	for code, n := range r.statuses {
		statuses[code] = n
	}
	r.mu.Unlock()

	s := Summary{
		Total:     r.total.Load(),
		Answered:  r.answered.Load(),
		Rejected:  r.rejected.Load(),
		Failed:    r.failed.Load(),
		CacheHits: r.cacheHits.Load(),
		Statuses:  statuses,
	}
	if len(latencies) == 0 {
		return s
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	s.Mean = sum / time.Duration(len(latencies))
	var sq float64
	for _, l := range latencies {
		d := float64(l - s.Mean)
		sq += d * d
	}
	s.StdDev = time.Duration(math.Sqrt(sq / float64(len(latencies))))
	s.Min = latencies[0]
	s.Max = latencies[len(latencies)-1]
	s.P50 = percentile(latencies, 50)
	s.P90 = percentile(latencies, 90)
	s.P99 = percentile(latencies, 99)
	return s
}

// percentile uses the nearest-rank method on sorted.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
