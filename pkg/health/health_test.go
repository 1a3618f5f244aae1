package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunReportsWorstStatus(t *testing.T) {
	c := NewChecker(time.Second)
	c.Register("a", func(context.Context) ComponentHealth { return Up("") })
	assert.Equal(t, StatusUp, c.Run(context.Background()).Status)

	c.Register("b", func(context.Context) ComponentHealth { return Degraded("slow") })
	report := c.Run(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, "slow", report.Components["b"].Message)
	assert.NotEmpty(t, report.Components["a"].Latency)

	c.Register("c", func(context.Context) ComponentHealth { return Down("gone") })
	assert.Equal(t, StatusDown, c.Run(context.Background()).Status)
}

func TestReadyHandler(t *testing.T) {
	c := NewChecker(time.Second)
	c.Register("corpora", func(context.Context) ComponentHealth { return Degraded("empty") })

	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var report Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, StatusDegraded, report.Status)

	c.Register("corpora", func(context.Context) ComponentHealth { return Down("none") })
	rec = httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestLiveHandler(t *testing.T) {
	c := NewChecker(0)
	c.Register("never", func(context.Context) ComponentHealth {
		t.Fatal("liveness must not run checks")
		return Down("")
	})
	rec := httptest.NewRecorder()
	c.LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alive")
}
