package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentile(t *testing.T) {
	sorted := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	tests := []struct {
		p    float64
		want time.Duration
	}{
		{0, 1},
		{50, 5},
		{90, 9},
		{99, 10},
		{100, 10},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, percentile(sorted, tt.p), "p%v", tt.p)
	}
	assert.Zero(t, percentile(nil, 50))
}

func TestRecorderSummary(t *testing.T) {
	rec := NewRecorder()
	rec.Record(10*time.Millisecond, http.StatusOK, true)
	rec.Record(30*time.Millisecond, http.StatusOK, false)
	rec.Record(20*time.Millisecond, http.StatusNotFound, false)
	rec.Record(time.Second, 0, false)

	s := rec.Summary()
	assert.Equal(t, int64(4), s.Total)
	assert.Equal(t, int64(2), s.Answered)
	assert.Equal(t, int64(1), s.Rejected)
	assert.Equal(t, int64(1), s.Failed)
	assert.Equal(t, int64(1), s.CacheHits)
	assert.Equal(t, 10*time.Millisecond, s.Min)
	assert.Equal(t, 30*time.Millisecond, s.Max)
	assert.Equal(t, 20*time.Millisecond, s.Mean)
	assert.Equal(t, int64(2), s.Statuses[http.StatusOK])
	assert.Equal(t, int64(1), s.Statuses[0])

	var out bytes.Buffer
	printSummary(&out, s, time.Second)
	assert.Contains(t, out.String(), "Total Requests: 4")
	assert.Contains(t, out.String(), "404: 1")
}

func TestMatchURL(t *testing.T) {
	raw := matchURL(options{baseURL: "http://svc", corpus: "movies", alternating: true}, "what's up?")
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/match", u.Path)
	assert.Equal(t, "what's up?", u.Query().Get("q"))
	assert.Equal(t, "movies", u.Query().Get("corpus"))
	assert.Equal(t, "true", u.Query().Get("alternating"))

	u, err = url.Parse(matchURL(options{baseURL: "http://svc"}, "hi"))
	require.NoError(t, err)
	assert.False(t, u.Query().Has("corpus"))
	assert.False(t, u.Query().Has("alternating"))
}

func TestDoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"selected_text":"hi","cache_hit":true}`))
	}))
	defer srv.Close()

	_, status, hit := doMatch(context.Background(), srv.Client(), matchURL(options{baseURL: srv.URL}, "hello"))
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, hit)

	_, status, hit = doMatch(context.Background(), srv.Client(), srv.URL+"/api/v1/match")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, hit)
}

func TestRunStopsAtDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	rec := run(options{
		baseURL:     srv.URL,
		concurrency: 2,
		duration:    100 * time.Millisecond,
		queries:     []string{"a", "b"},
	})
	s := rec.Summary()
	assert.Positive(t, s.Answered)
	assert.Zero(t, s.Failed)
}
