//go:build e2e

// Package e2e runs against a live matcher service started with
// configs/development.yaml (corpus "movies" from data/movie_lines.txt).
//
// Run with:
//
//	go test -v -tags=e2e -timeout=120s ./test/e2e/...
package e2e

import (
	"encoding/json"
	"net/http"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseURL() string {
	if v := os.Getenv("E2E_MATCHER_URL"); v != "" {
		return v
	}
	return "http://localhost:8080"
}

var client = &http.Client{Timeout: 5 * time.Second}

func getJSON(t *testing.T, path string, out any) int {
	t.Helper()
	resp, err := client.Get(baseURL() + path)
	if err != nil {
		t.Skipf("matcher unavailable: %v", err)
	}
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	for _, path := range []string{"/health/live", "/health/ready"} {
		t.Run(path, func(t *testing.T) {
			var body map[string]any
			assert.Equal(t, http.StatusOK, getJSON(t, path, &body))
		})
	}
}

func TestCorporaLoaded(t *testing.T) {
	var infos []struct {
		Name  string `json:"name"`
		Stats struct {
			Documents int `json:"documents"`
		} `json:"stats"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, "/api/v1/corpora", &infos))
	require.NotEmpty(t, infos)
	for _, info := range infos {
		assert.Positive(t, info.Stats.Documents, info.Name)
	}
}

func TestMatchRoundTrip(t *testing.T) {
	var infos []struct {
		Name string `json:"name"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, "/api/v1/corpora", &infos))
	require.NotEmpty(t, infos)

	q := url.Values{"q": {"hello"}, "corpus": {infos[0].Name}, "alternating": {"false"}, "explain": {"true"}}
	var body struct {
		MatchedID    int     `json:"matched_id"`
		SelectedText string  `json:"selected_text"`
		Score        float64 `json:"score"`
		LatencyMs    float64 `json:"latency_ms"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, "/api/v1/match?"+q.Encode(), &body))
	assert.NotEmpty(t, body.SelectedText)
	assert.GreaterOrEqual(t, body.MatchedID, 0)

	var analytics map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, "/api/v1/analytics", &analytics))
	assert.Positive(t, analytics["total_matches"])
}

func TestEmptyQueryRejected(t *testing.T) {
	var body map[string]any
	assert.Equal(t, http.StatusBadRequest, getJSON(t, "/api/v1/match?q=+", &body))
	assert.NotEmpty(t, body["error"])
}
