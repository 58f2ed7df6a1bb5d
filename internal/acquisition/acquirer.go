package acquisition

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/yourusername/gridiron-edge/internal/config"
	"github.com/yourusername/gridiron-edge/internal/metrics"
	"github.com/yourusername/gridiron-edge/internal/models"
)

// DefaultEventLookback bounds how far back events are requested. It covers the
// longest max age in the default decay table.
const DefaultEventLookback = 180 * 24 * time.Hour

// FetchObserver receives the outcome of every upstream fetch
type FetchObserver interface {
	RecordFetch(sourceID string, sourceType models.SourceType, covered bool, latency time.Duration, at time.Time)
}

type source[F any] struct {
	feed    F
	name    string
	timeout time.Duration
	ttl     time.Duration
}

// Bundle is the fan-in of one Gather pass
type Bundle struct {
	Lines      Result[[]*models.MarketLine]
	HomeEvents Result[[]*models.EFactorEvent]
	AwayEvents Result[[]*models.EFactorEvent]
	Weather    Result[*models.WeatherForecast]
}

// Degraded lists the inputs that were stale or unavailable
func (b *Bundle) Degraded() []string {
	var out []string
	add := func(name string, s Status) {
		if s != StatusOK {
			out = append(out, name+":"+string(s))
		}
	}
	add(string(models.SourceTypeOdds), b.Lines.Status)
	add("home_events", b.HomeEvents.Status)
	add("away_events", b.AwayEvents.Status)
	add(string(models.SourceTypeWeather), b.Weather.Status)
	return out
}

// Events merges both teams' events
func (b *Bundle) Events() []*models.EFactorEvent {
	out := make([]*models.EFactorEvent, 0, len(b.HomeEvents.Value)+len(b.AwayEvents.Value))
	out = append(out, b.HomeEvents.Value...)
	return append(out, b.AwayEvents.Value...)
}

// Acquirer fans out to the configured feeds. Within a source type feeds are
// tried in priority order.
type Acquirer struct {
	games    []source[GameFeed]
	odds     []source[OddsFeed]
	events   []source[EventFeed]
	weather  []source[WeatherFeed]
	cache    *Cache
	observer FetchObserver
	lookback time.Duration
	logger   *logrus.Logger
	now      func() time.Time
}

// Option configures an Acquirer
type Option func(*Acquirer)

// WithObserver reports each upstream fetch, typically to the source quality tracker
func WithObserver(o FetchObserver) Option {
	return func(a *Acquirer) { a.observer = o }
}

// WithEventLookback sets how far back events are requested
func WithEventLookback(d time.Duration) Option {
	return func(a *Acquirer) {
		if d > 0 {
			a.lookback = d
		}
	}
}

// WithClock replaces time.Now for latency and cache bookkeeping
func WithClock(now func() time.Time) Option {
	return func(a *Acquirer) { a.now = now }
}

// NewAcquirer creates an acquirer with no feeds
func NewAcquirer(cache *Cache, logger *logrus.Logger, opts ...Option) *Acquirer {
	if cache == nil {
		cache = NewCache(nil)
	}
	a := &Acquirer{
		cache:    cache,
		lookback: DefaultEventLookback,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewFromConfig builds HTTP feeds for every enabled source, ordered by priority
func NewFromConfig(cfg *config.Config, logger *logrus.Logger, opts ...Option) *Acquirer {
	a := NewAcquirer(NewCache(nil), logger, opts...)
	for _, st := range []models.SourceType{models.SourceTypeGames, models.SourceTypeOdds, models.SourceTypeEvents, models.SourceTypeWeather} {
		for _, src := range cfg.SourcesOfType(string(st)) {
			feed := NewHTTPFeed(src, cfg.Acquisition.MaxRetries, logger)
			switch st {
			case models.SourceTypeGames:
				a.AddGameFeed(feed, src.Timeout(), src.TTL())
			case models.SourceTypeOdds:
				a.AddOddsFeed(feed, src.Timeout(), src.TTL())
			case models.SourceTypeEvents:
				a.AddEventFeed(feed, src.Timeout(), src.TTL())
			case models.SourceTypeWeather:
				a.AddWeatherFeed(feed, src.Timeout(), src.TTL())
			}
		}
	}
	return a
}

// AddGameFeed appends a game feed at the lowest priority
func (a *Acquirer) AddGameFeed(f GameFeed, timeout, ttl time.Duration) {
	a.games = append(a.games, source[GameFeed]{feed: f, name: f.Name(), timeout: timeout, ttl: ttl})
}

// AddOddsFeed appends an odds feed at the lowest priority
func (a *Acquirer) AddOddsFeed(f OddsFeed, timeout, ttl time.Duration) {
	a.odds = append(a.odds, source[OddsFeed]{feed: f, name: f.Name(), timeout: timeout, ttl: ttl})
}

// AddEventFeed appends an event feed at the lowest priority
func (a *Acquirer) AddEventFeed(f EventFeed, timeout, ttl time.Duration) {
	a.events = append(a.events, source[EventFeed]{feed: f, name: f.Name(), timeout: timeout, ttl: ttl})
}

// AddWeatherFeed appends a weather feed at the lowest priority
func (a *Acquirer) AddWeatherFeed(f WeatherFeed, timeout, ttl time.Duration) {
	a.weather = append(a.weather, source[WeatherFeed]{feed: f, name: f.Name(), timeout: timeout, ttl: ttl})
}

// Gather fetches everything needed to evaluate a game. Each source type runs
// in its own goroutine with its own timeout; a failing source never cancels
// the others and Gather itself only fails when ctx does.
func (a *Acquirer) Gather(ctx context.Context, game *models.GameRecord, asOf time.Time) (*Bundle, error) {
	if game == nil {
		return nil, fmt.Errorf("game is required")
	}

	var b Bundle
	since := asOf.Add(-a.lookback)

	var g errgroup.Group
	g.Go(func() error {
		b.Lines = fetchFirst(ctx, a, models.SourceTypeOdds, a.odds, game.GameID,
			func(ctx context.Context, f OddsFeed) ([]*models.MarketLine, error) {
				return f.FetchLines(ctx, game.GameID)
			})
		return nil
	})
	g.Go(func() error {
		b.HomeEvents = fetchFirst(ctx, a, models.SourceTypeEvents, a.events, game.HomeTeamID,
			func(ctx context.Context, f EventFeed) ([]*models.EFactorEvent, error) {
				return f.FetchEvents(ctx, game.HomeTeamID, since)
			})
		return nil
	})
	g.Go(func() error {
		b.AwayEvents = fetchFirst(ctx, a, models.SourceTypeEvents, a.events, game.AwayTeamID,
			func(ctx context.Context, f EventFeed) ([]*models.EFactorEvent, error) {
				return f.FetchEvents(ctx, game.AwayTeamID, since)
			})
		return nil
	})
	g.Go(func() error {
		if game.Venue == "" {
			b.Weather = unavailable[*models.WeatherForecast]("no venue")
			return nil
		}
		b.Weather = fetchFirst(ctx, a, models.SourceTypeWeather, a.weather, game.Venue,
			func(ctx context.Context, f WeatherFeed) (*models.WeatherForecast, error) {
				return f.FetchForecast(ctx, game.Venue, game.Kickoff)
			})
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return &b, err
	}
	return &b, nil
}

// FetchGame returns a game record from the highest-priority feed that has it
func (a *Acquirer) FetchGame(ctx context.Context, gameID string) Result[*models.GameRecord] {
	return fetchFirst(ctx, a, models.SourceTypeGames, a.games, gameID,
		func(ctx context.Context, f GameFeed) (*models.GameRecord, error) {
			return f.FetchGame(ctx, gameID)
		})
}

// FetchCompleted returns games completed since the given time. Results are not
// cached so finals are never served stale.
func (a *Acquirer) FetchCompleted(ctx context.Context, league string, since time.Time) ([]*models.GameRecord, error) {
	var errs []error
	for _, src := range a.games {
		fctx, cancel := withTimeout(ctx, src.timeout)
		start := a.now()
		games, err := src.feed.FetchCompleted(fctx, league, since)
		cancel()
		a.observe(src.name, models.SourceTypeGames, err == nil, start)
		if err == nil {
			return games, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", src.name, err))
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("no game feeds configured: %w", models.ErrDataUnavailable)
	}
	return nil, fmt.Errorf("%w: %w", models.ErrDataUnavailable, errors.Join(errs...))
}

func (a *Acquirer) observe(name string, st models.SourceType, covered bool, start time.Time) {
	if a.observer == nil {
		return
	}
	now := a.now()
	a.observer.RecordFetch(name, st, covered, now.Sub(start), now)
}

// fetchFirst walks the feeds of one type in priority order. The first fresh
// value wins. A stale cached value is kept as a fallback while lower-priority
// feeds are tried, and returned as degraded if none of them succeed.
func fetchFirst[F any, T any](ctx context.Context, a *Acquirer, st models.SourceType, feeds []source[F], entity string, fetch func(context.Context, F) (T, error)) Result[T] {
	start := a.now()
	res := fetchFirstInner(ctx, a, st, feeds, entity, fetch)
	metrics.RecordFetch(string(st), string(res.Status), a.now().Sub(start).Seconds())

	if res.Status != StatusOK {
		a.logger.WithFields(logrus.Fields{
			"source_type": st,
			"entity":      entity,
			"status":      res.Status,
			"reason":      res.Reason,
		}).Warn("Feed degraded")
	}
	return res
}

func fetchFirstInner[F any, T any](ctx context.Context, a *Acquirer, st models.SourceType, feeds []source[F], entity string, fetch func(context.Context, F) (T, error)) Result[T] {
	if len(feeds) == 0 {
		return unavailable[T]("no " + string(st) + " feeds configured")
	}

	var fallback *Result[T]
	var reasons []string

	for _, src := range feeds {
		src := src
		fctx, cancel := withTimeout(ctx, src.timeout)
		v, stale, at, err := cachedFetch(fctx, a.cache, st, src.ttl, Key(src.name, entity),
			func(ctx context.Context) (T, error) {
				begin := a.now()
				v, err := fetch(ctx, src.feed)
				a.observe(src.name, st, err == nil, begin)
				return v, err
			})
		cancel()

		if err == nil {
			return Result[T]{Source: src.name, Status: StatusOK, Value: v, FetchedAt: at}
		}
		reasons = append(reasons, fmt.Sprintf("%s: %v", src.name, err))
		if stale && fallback == nil {
			fallback = &Result[T]{Source: src.name, Status: StatusDegraded, Value: v, FetchedAt: at}
		}
		if ctx.Err() != nil {
			break
		}
	}

	reason := strings.Join(reasons, "; ")
	if fallback != nil {
		fallback.Reason = reason
		return *fallback
	}
	return unavailable[T](reason)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
