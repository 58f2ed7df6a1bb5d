package acquisition

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/gridiron-edge/internal/config"
	"github.com/yourusername/gridiron-edge/internal/models"
)

var kickoff = time.Date(2024, 11, 10, 18, 0, 0, 0, time.UTC)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type fakeOdds struct {
	name  string
	calls int32
	err   error
	delay time.Duration
	lines []*models.MarketLine
	gate  chan struct{}
}

func (f *fakeOdds) Name() string { return f.name }

func (f *fakeOdds) FetchLines(ctx context.Context, gameID string) ([]*models.MarketLine, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.gate != nil {
		<-f.gate
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.lines, nil
}

type fakeEvents struct {
	name   string
	events map[string][]*models.EFactorEvent
}

func (f *fakeEvents) Name() string { return f.name }

func (f *fakeEvents) FetchEvents(_ context.Context, teamID string, _ time.Time) ([]*models.EFactorEvent, error) {
	return f.events[teamID], nil
}

type fakeWeather struct{ err error }

func (f *fakeWeather) Name() string { return "wx" }

func (f *fakeWeather) FetchForecast(_ context.Context, venue string, _ time.Time) (*models.WeatherForecast, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.WeatherForecast{Venue: venue, WindMPH: 18}, nil
}

type fetchRecord struct {
	source  string
	covered bool
}

type recordingObserver struct {
	mu      sync.Mutex
	records []fetchRecord
}

func (o *recordingObserver) RecordFetch(sourceID string, _ models.SourceType, covered bool, _ time.Duration, _ time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.records = append(o.records, fetchRecord{sourceID, covered})
}

func testGame() *models.GameRecord {
	return &models.GameRecord{
		GameID:     "g1",
		League:     "nfl",
		HomeTeamID: "KC",
		AwayTeamID: "BUF",
		Kickoff:    kickoff,
		Venue:      "arrowhead",
	}
}

func line(book string, value float64) *models.MarketLine {
	return &models.MarketLine{GameID: "g1", BookID: book, MarketType: models.MarketTypeSpread, Value: value, Price: -110, ObservedAt: kickoff.Add(-time.Hour)}
}

func TestGatherAllSourcesOK(t *testing.T) {
	obs := &recordingObserver{}
	a := NewAcquirer(NewCache(nil), quietLogger(), WithObserver(obs))
	a.AddOddsFeed(&fakeOdds{name: "books", lines: []*models.MarketLine{line("pinnacle", -3)}}, time.Second, 0)
	a.AddEventFeed(&fakeEvents{name: "wire", events: map[string][]*models.EFactorEvent{
		"KC":  {{EventID: uuid.New(), TeamID: "KC", Type: models.EventTrade, SourceID: "wire"}},
		"BUF": {},
	}}, time.Second, 0)
	a.AddWeatherFeed(&fakeWeather{}, time.Second, 0)

	b, err := a.Gather(context.Background(), testGame(), kickoff)
	require.NoError(t, err)

	assert.Equal(t, StatusOK, b.Lines.Status)
	assert.Len(t, b.Lines.Value, 1)
	assert.Equal(t, "books", b.Lines.Source)
	assert.Len(t, b.HomeEvents.Value, 1)
	assert.Len(t, b.Events(), 1)
	assert.Equal(t, "arrowhead", b.Weather.Value.Venue)
	assert.Empty(t, b.Degraded())
	assert.Len(t, obs.records, 4)
}

func TestGatherToleratesFailuresAndTimeouts(t *testing.T) {
	a := NewAcquirer(NewCache(nil), quietLogger())
	a.AddOddsFeed(&fakeOdds{name: "slow", delay: time.Second}, 20*time.Millisecond, 0)
	a.AddWeatherFeed(&fakeWeather{err: errors.New("boom")}, time.Second, 0)

	start := time.Now()
	b, err := a.Gather(context.Background(), testGame(), kickoff)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	assert.Equal(t, StatusUnavailable, b.Lines.Status)
	assert.Contains(t, b.Lines.Reason, "slow")
	assert.Equal(t, StatusUnavailable, b.Weather.Status)
	assert.Equal(t, StatusUnavailable, b.HomeEvents.Status)
	assert.Contains(t, b.HomeEvents.Reason, "no events feeds")
	assert.ElementsMatch(t, []string{"odds:unavailable", "home_events:unavailable", "away_events:unavailable", "weather:unavailable"}, b.Degraded())
}

func TestFallbackToAlternateSource(t *testing.T) {
	obs := &recordingObserver{}
	a := NewAcquirer(NewCache(nil), quietLogger(), WithObserver(obs))
	a.AddOddsFeed(&fakeOdds{name: "primary", err: models.ErrRateLimitExceeded}, time.Second, 0)
	a.AddOddsFeed(&fakeOdds{name: "backup", lines: []*models.MarketLine{line("dk", -2.5)}}, time.Second, 0)

	b, err := a.Gather(context.Background(), testGame(), kickoff)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, b.Lines.Status)
	assert.Equal(t, "backup", b.Lines.Source)
	assert.Contains(t, obs.records, fetchRecord{"primary", false})
	assert.Contains(t, obs.records, fetchRecord{"backup", true})
}

func TestStaleFallbackIsDegraded(t *testing.T) {
	now := kickoff
	cache := NewCache(map[models.SourceType]time.Duration{models.SourceTypeOdds: time.Minute})
	cache.now = func() time.Time { return now }

	feed := &fakeOdds{name: "books", lines: []*models.MarketLine{line("pinnacle", -3)}}
	a := NewAcquirer(cache, quietLogger())
	a.AddOddsFeed(feed, time.Second, 0)

	b, err := a.Gather(context.Background(), testGame(), kickoff)
	require.NoError(t, err)
	require.Equal(t, StatusOK, b.Lines.Status)

	// fresh hit does not refetch
	_, err = a.Gather(context.Background(), testGame(), kickoff)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&feed.calls))

	now = now.Add(2 * time.Minute)
	feed.err = errors.New("upstream down")

	b, err = a.Gather(context.Background(), testGame(), kickoff)
	require.NoError(t, err)
	assert.Equal(t, StatusDegraded, b.Lines.Status)
	assert.Len(t, b.Lines.Value, 1)
	assert.Equal(t, kickoff, b.Lines.FetchedAt)
	assert.Contains(t, b.Lines.Reason, "stale data")
	assert.Equal(t, int32(2), atomic.LoadInt32(&feed.calls))
}

func TestFreshAlternatePreferredOverStalePrimary(t *testing.T) {
	now := kickoff
	cache := NewCache(nil)
	cache.now = func() time.Time { return now }

	primary := &fakeOdds{name: "primary", lines: []*models.MarketLine{line("pinnacle", -3)}}
	backup := &fakeOdds{name: "backup", lines: []*models.MarketLine{line("dk", -3.5)}}
	a := NewAcquirer(cache, quietLogger())
	a.AddOddsFeed(primary, time.Second, time.Minute)
	a.AddOddsFeed(backup, time.Second, time.Minute)

	_, err := a.Gather(context.Background(), testGame(), kickoff)
	require.NoError(t, err)

	now = now.Add(5 * time.Minute)
	primary.err = errors.New("down")

	b, err := a.Gather(context.Background(), testGame(), kickoff)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, b.Lines.Status)
	assert.Equal(t, "backup", b.Lines.Source)
}

func TestConcurrentLoadsShareOneFetch(t *testing.T) {
	gate := make(chan struct{})
	feed := &fakeOdds{name: "books", gate: gate, lines: []*models.MarketLine{line("pinnacle", -3)}}
	a := NewAcquirer(NewCache(nil), quietLogger())
	a.AddOddsFeed(feed, 5*time.Second, 0)

	var wg sync.WaitGroup
	results := make([]Status, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b, _ := a.Gather(context.Background(), testGame(), kickoff)
			results[i] = b.Lines.Status
		}(i)
	}

	require.Eventually(t, func() bool { return atomic.LoadInt32(&feed.calls) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&feed.calls))
	for _, s := range results {
		assert.Equal(t, StatusOK, s)
	}
}

func TestSharedFetchSurvivesLeaderCancel(t *testing.T) {
	feed := &fakeOdds{name: "books", delay: 200 * time.Millisecond, lines: []*models.MarketLine{line("pinnacle", -3)}}
	a := NewAcquirer(NewCache(nil), quietLogger())
	a.AddOddsFeed(feed, 5*time.Second, 0)

	leaderCtx, cancel := context.WithCancel(context.Background())
	leader := make(chan Status, 1)
	go func() {
		b, _ := a.Gather(leaderCtx, testGame(), kickoff)
		leader <- b.Lines.Status
	}()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&feed.calls) == 1 }, time.Second, time.Millisecond)

	waiter := make(chan Status, 1)
	go func() {
		b, _ := a.Gather(context.Background(), testGame(), kickoff)
		waiter <- b.Lines.Status
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	assert.NotEqual(t, StatusOK, <-leader)
	assert.Equal(t, StatusOK, <-waiter)
	assert.Equal(t, int32(1), atomic.LoadInt32(&feed.calls))
}

func TestGatherRequiresGame(t *testing.T) {
	a := NewAcquirer(nil, quietLogger())
	_, err := a.Gather(context.Background(), nil, kickoff)
	assert.Error(t, err)
}

func newFeedServer(t *testing.T, handler http.HandlerFunc) (*HTTPFeed, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	feed := NewHTTPFeed(config.SourceConfig{
		Name:           "feed",
		Type:           "odds",
		URL:            srv.URL,
		APIKey:         "secret",
		TimeoutSeconds: 2,
		TTLSeconds:     30,
	}, 0, quietLogger())
	return feed, srv
}

func TestHTTPFeedLines(t *testing.T) {
	feed, _ := newFeedServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/games/g1/lines", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]map[string]interface{}{
			{"game_id": "g1", "book_id": "pinnacle", "market_type": "spread", "value": -3, "price": -105, "observed_at": kickoff, "book_class": "sharp"},
			{"game_id": "g1", "book_id": "", "market_type": "spread", "value": -3, "observed_at": kickoff},
			{"game_id": "g1", "book_id": "dk", "market_type": "teaser", "value": -3, "observed_at": kickoff},
		})
	})

	lines, err := feed.FetchLines(context.Background(), "g1")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "pinnacle", lines[0].BookID)
	assert.True(t, lines[0].IsSharp())
}

func TestHTTPFeedEventsDropsUnknownTypes(t *testing.T) {
	feed, _ := newFeedServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/teams/KC/events", r.URL.Path)
		assert.NotEmpty(t, r.URL.Query().Get("since"))
		_ = json.NewEncoder(w).Encode([]map[string]interface{}{
			{"event_id": uuid.NewString(), "team_id": "KC", "event_type": "trade", "magnitude": -1.5, "occurred_at": kickoff, "reporter_confidence": 0.8},
			{"event_id": uuid.NewString(), "team_id": "KC", "event_type": "horoscope", "magnitude": 3, "occurred_at": kickoff, "source_id": "x"},
		})
	})

	events, err := feed.FetchEvents(context.Background(), "KC", kickoff.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "feed", events[0].SourceID)
}

func TestHTTPFeedStatusMapping(t *testing.T) {
	status := http.StatusTooManyRequests
	feed, _ := newFeedServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	})

	_, err := feed.FetchLines(context.Background(), "g1")
	assert.ErrorIs(t, err, models.ErrRateLimitExceeded)

	status = http.StatusNotFound
	_, err = feed.FetchGame(context.Background(), "g1")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCircuitBreakerOpens(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := DefaultHTTPClientConfig()
	cfg.MaxRetries = 0
	cfg.CircuitBreakerMax = 2
	cfg.CircuitCooldown = time.Hour
	client := NewRateLimitedHTTPClient(cfg, quietLogger())

	var out []interface{}
	assert.Error(t, client.GetJSON(context.Background(), srv.URL, "", &out))
	assert.Error(t, client.GetJSON(context.Background(), srv.URL, "", &out))
	assert.True(t, client.IsOpen())

	err := client.GetJSON(context.Background(), srv.URL, "", &out)
	assert.ErrorIs(t, err, models.ErrDataUnavailable)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

type chanSource struct{ ch chan *models.MarketLine }

func (c chanSource) Lines(string) (<-chan *models.MarketLine, func()) { return c.ch, func() {} }

func TestMonitorReturnsPartialOnCancel(t *testing.T) {
	src := chanSource{ch: make(chan *models.MarketLine)}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan *Movement)
	go func() { done <- MonitorLineMovement(ctx, src, "g1", time.Hour) }()

	src.ch <- line("pinnacle", -3)
	src.ch <- line("pinnacle", -3.5)
	cancel()

	m := <-done
	assert.False(t, m.Complete)
	assert.Len(t, m.Observations, 2)

	moves := m.Moves()
	require.Len(t, moves, 1)
	assert.Equal(t, -3.0, moves[0].Open)
	assert.Equal(t, -3.5, moves[0].Latest)
	assert.Equal(t, -0.5, moves[0].Delta)
	assert.Equal(t, 2, moves[0].Updates)
}

func TestMonitorCompletesWindow(t *testing.T) {
	src := chanSource{ch: make(chan *models.MarketLine)}
	m := MonitorLineMovement(context.Background(), src, "g1", 20*time.Millisecond)
	assert.True(t, m.Complete)
	assert.Empty(t, m.Observations)
}

func TestStreamDeliversSubscribedLines(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var sub StreamMessage
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		if sub.Op != OpSubscribe || len(sub.GameIDs) != 1 || sub.GameIDs[0] != "g1" {
			return
		}

		other := line("dk", -7)
		other.GameID = "g2"
		for _, msg := range []StreamMessage{
			{Op: OpHeartbeat},
			{Op: OpLine, Line: line("pinnacle", -3)},
			{Op: OpLine, Line: other},
			{Op: OpLine, Line: line("pinnacle", -2.5)},
		} {
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	client := NewStreamClient("ws"+strings.TrimPrefix(srv.URL, "http"), "", quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = client.Run(ctx) }()

	m := MonitorLineMovement(ctx, client, "g1", 500*time.Millisecond)
	assert.True(t, m.Complete)
	require.Len(t, m.Observations, 2)
	for _, l := range m.Observations {
		assert.Equal(t, "g1", l.GameID)
	}
	assert.Equal(t, 0.5, m.Moves()[0].Delta)
}
