package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/tfidf-dialog-matcher/pkg/kafka"
)

func TestAggregatorRecordMatch(t *testing.T) {
	a := NewAggregator()
	a.Track("c", MatchEvent{Type: EventMatch, Corpus: "c", Query: "hi", Outcome: OutcomeOK, Score: 0.5, TieSize: 1, LatencyUs: 100})
	a.Track("c", &MatchEvent{Type: EventMatch, Corpus: "c", Query: "hi", Outcome: OutcomeOK, Score: 0.5, TieSize: 3, LatencyUs: 300, CacheHit: true})
	a.Track("c", MatchEvent{Type: EventMatch, Corpus: "c", Query: "zzz", Outcome: OutcomeOK, Score: 0, TieSize: 2, LatencyUs: 200})
	a.Track("c", MatchEvent{Type: EventMatch, Corpus: "c", Query: "", Outcome: OutcomeEmptyQuery})
	a.Track("d", MatchEvent{Type: EventMatch, Corpus: "d", Query: "last", Outcome: OutcomeNoSuccessor, TieSize: 1, LatencyUs: 50})
	a.Track("c", ReloadEvent{Type: EventReload, Corpus: "c", Status: "ok"})
	a.Track("c", ReloadEvent{Type: EventReload, Corpus: "c", Status: "failed"})
	a.Track("c", "not an event")

	s := a.Stats()
	assert.Equal(t, int64(5), s.TotalMatches)
	assert.Equal(t, map[string]int64{OutcomeOK: 3, OutcomeEmptyQuery: 1, OutcomeNoSuccessor: 1}, s.Outcomes)
	assert.Equal(t, map[string]int64{"c": 4, "d": 1}, s.Corpora)
	assert.Equal(t, int64(1), s.CacheHits)
	assert.Equal(t, int64(3), s.CacheMisses)
	assert.Equal(t, int64(1), s.ZeroScoreCount)
	assert.InDelta(t, 7.0/4.0, s.AvgTieSize, 1e-9)
	assert.InDelta(t, 162.5, s.AvgLatencyUs, 1e-9)
	assert.Equal(t, int64(200), s.P50LatencyUs)
	assert.Equal(t, int64(300), s.P99LatencyUs)
	require.NotEmpty(t, s.TopQueries)
	assert.Equal(t, QueryCount{Query: "hi", Count: 2}, s.TopQueries[0])
	assert.Equal(t, []QueryCount{{Query: "zzz", Count: 1}}, s.ZeroScoreQueries)
	assert.Equal(t, int64(2), s.Reloads)
	assert.Equal(t, int64(1), s.FailedReloads)
}

func TestAggregatorLatencyWindow(t *testing.T) {
	a := NewAggregator()
	for i := 0; i < maxLatencySamples+10; i++ {
		a.RecordMatch(MatchEvent{Outcome: OutcomeOK, Score: 1, LatencyUs: int64(i)})
	}
	a.mu.Lock()
	assert.Len(t, a.latencies, maxLatencySamples)
	a.mu.Unlock()
}

func TestHandleEvent(t *testing.T) {
	a := NewAggregator()
	handle := a.HandleEvent()
	ctx := context.Background()

	match, _ := json.Marshal(MatchEvent{Type: EventMatch, Corpus: "c", Query: "q", Outcome: OutcomeOK, Score: 1})
	reload, _ := json.Marshal(ReloadEvent{Type: EventReload, Corpus: "c", Status: "ok"})
	require.NoError(t, handle(ctx, []byte("c"), match))
	require.NoError(t, handle(ctx, []byte("c"), reload))
	require.NoError(t, handle(ctx, nil, []byte(`{"type":"other"}`)))
	require.NoError(t, handle(ctx, nil, []byte(`not json`)))

	s := a.Stats()
	assert.Equal(t, int64(1), s.TotalMatches)
	assert.Equal(t, int64(1), s.Reloads)
}

func TestHandler(t *testing.T) {
	a := NewAggregator()
	a.RecordMatch(MatchEvent{Corpus: "c", Query: "q", Outcome: OutcomeOK, Score: 1})
	rec := httptest.NewRecorder()
	NewHandler(a).Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var got AggregatedStats
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, int64(1), got.TotalMatches)
}

type fakePublisher struct {
	mu      sync.Mutex
	batches [][]kafka.Event
	fail    bool
}

func (p *fakePublisher) PublishBatch(_ context.Context, events []kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker down")
	}
	p.batches = append(p.batches, append([]kafka.Event(nil), events...))
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, b := range p.batches {
		n += len(b)
	}
	return n
}

func TestCollectorBatchesBySize(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, 100, 2, time.Hour)
	c.Start(context.Background())

	for i := 0; i < 4; i++ {
		c.Track("c", MatchEvent{Query: "q"})
	}
	assert.Eventually(t, func() bool { return pub.count() == 4 }, 2*time.Second, 10*time.Millisecond)
	c.Close()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	for _, b := range pub.batches {
		assert.LessOrEqual(t, len(b), 2)
	}
}

func TestCollectorFlushesOnClose(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, 100, 50, time.Hour)
	c.Start(context.Background())
	c.Track("c", MatchEvent{Query: "a"})
	c.Track("c", ReloadEvent{Corpus: "c"})
	c.Close()
	assert.Equal(t, 2, pub.count())
}

func TestCollectorFlushesOnInterval(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, 100, 50, 20*time.Millisecond)
	c.Start(context.Background())
	defer c.Close()
	c.Track("c", MatchEvent{Query: "a"})
	assert.Eventually(t, func() bool { return pub.count() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestCollectorDropsWhenFull(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, 1, 10, time.Hour)
	// not started: the buffer fills and further events are dropped
	c.Track("c", MatchEvent{})
	c.Track("c", MatchEvent{})
	assert.Len(t, c.eventCh, 1)
}

func TestCollectorTrackAfterClose(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, 10, 5, time.Hour)
	c.Start(context.Background())
	c.Track("c", MatchEvent{Query: "before"})
	c.Close()

	assert.NotPanics(t, func() {
		c.Track("c", MatchEvent{Query: "after"})
		c.Close()
	})
	assert.Equal(t, 1, pub.count())
}

func TestCollectorConcurrentTrackAndClose(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, 1000, 10, time.Hour)
	c.Start(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				c.Track("c", MatchEvent{})
			}
		}()
	}
	c.Close()
	wg.Wait()
	assert.LessOrEqual(t, pub.count(), 8*200)
}

func TestCollectorPublishFailureIsLogged(t *testing.T) {
	pub := &fakePublisher{fail: true}
	c := NewCollector(pub, 10, 1, time.Hour)
	c.Start(context.Background())
	c.Track("c", MatchEvent{})
	c.Close()
	assert.Zero(t, pub.count())
}
