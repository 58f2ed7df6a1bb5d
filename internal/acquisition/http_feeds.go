package acquisition

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/gridiron-edge/internal/config"
	"github.com/yourusername/gridiron-edge/internal/models"
)

// HTTPFeed is a JSON feed served by a collaborator over HTTP. It implements
// every feed interface; the configured type decides which one it is wired as.
//
// Routes relative to the base URL:
//
//	GET /games/{id}
//	GET /games?league=&since=
//	GET /games/{id}/lines
//	GET /teams/{id}/events?since=
//	GET /venues/{venue}/forecast?at=
type HTTPFeed struct {
	name     string
	baseURL  string
	apiKey   string
	client   *RateLimitedHTTPClient
	validate *validator.Validate
	logger   *logrus.Logger
}

// NewHTTPFeed creates a feed from its source configuration
func NewHTTPFeed(src config.SourceConfig, maxRetries int, logger *logrus.Logger) *HTTPFeed {
	cfg := DefaultHTTPClientConfig()
	cfg.Timeout = src.Timeout()
	cfg.MaxRetries = maxRetries
	cfg.RateLimit = src.RateLimit

	return &HTTPFeed{
		name:     src.Name,
		baseURL:  strings.TrimRight(src.URL, "/"),
		apiKey:   src.APIKey,
		client:   NewRateLimitedHTTPClient(cfg, logger),
		validate: validator.New(),
		logger:   logger,
	}
}

// Name returns the source identifier
func (f *HTTPFeed) Name() string {
	return f.name
}

// Close releases idle connections
func (f *HTTPFeed) Close() error {
	return f.client.Close()
}

func (f *HTTPFeed) endpoint(path string, query url.Values) string {
	u := f.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// FetchGame implements GameFeed
func (f *HTTPFeed) FetchGame(ctx context.Context, gameID string) (*models.GameRecord, error) {
	var game models.GameRecord
	if err := f.client.GetJSON(ctx, f.endpoint("/games/"+url.PathEscape(gameID), nil), f.apiKey, &game); err != nil {
		return nil, err
	}
	if err := f.validate.Struct(&game); err != nil {
		return nil, fmt.Errorf("invalid game record from %s: %w", f.name, err)
	}
	return &game, nil
}

// FetchCompleted implements GameFeed
func (f *HTTPFeed) FetchCompleted(ctx context.Context, league string, since time.Time) ([]*models.GameRecord, error) {
	q := url.Values{}
	q.Set("league", league)
	q.Set("since", since.UTC().Format(time.RFC3339))

	var games []*models.GameRecord
	if err := f.client.GetJSON(ctx, f.endpoint("/games", q), f.apiKey, &games); err != nil {
		return nil, err
	}

	out := games[:0]
	for _, g := range games {
		if err := f.validate.Struct(g); err != nil {
			f.reject("game", err)
			continue
		}
		if g.IsCompleted() {
			out = append(out, g)
		}
	}
	return out, nil
}

// FetchLines implements OddsFeed
func (f *HTTPFeed) FetchLines(ctx context.Context, gameID string) ([]*models.MarketLine, error) {
	var lines []*models.MarketLine
	if err := f.client.GetJSON(ctx, f.endpoint("/games/"+url.PathEscape(gameID)+"/lines", nil), f.apiKey, &lines); err != nil {
		return nil, err
	}

	out := lines[:0]
	for _, l := range lines {
		if err := f.validate.Struct(l); err != nil {
			f.reject("market_line", err)
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

// FetchEvents implements EventFeed
func (f *HTTPFeed) FetchEvents(ctx context.Context, teamID string, since time.Time) ([]*models.EFactorEvent, error) {
	q := url.Values{}
	q.Set("since", since.UTC().Format(time.RFC3339))

	var events []*models.EFactorEvent
	if err := f.client.GetJSON(ctx, f.endpoint("/teams/"+url.PathEscape(teamID)+"/events", q), f.apiKey, &events); err != nil {
		return nil, err
	}

	out := events[:0]
	for _, e := range events {
		if e.SourceID == "" {
			e.SourceID = f.name
		}
		if err := f.validate.Struct(e); err != nil {
			f.reject("efactor_event", err)
			continue
		}
		if !e.Type.IsValid() {
			f.reject("efactor_event", fmt.Errorf("unknown event type %q", e.Type))
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// FetchForecast implements WeatherFeed
func (f *HTTPFeed) FetchForecast(ctx context.Context, venue string, at time.Time) (*models.WeatherForecast, error) {
	q := url.Values{}
	q.Set("at", at.UTC().Format(time.RFC3339))

	var forecast models.WeatherForecast
	if err := f.client.GetJSON(ctx, f.endpoint("/venues/"+url.PathEscape(venue)+"/forecast", q), f.apiKey, &forecast); err != nil {
		return nil, err
	}
	if forecast.SourceID == "" {
		forecast.SourceID = f.name
	}
	return &forecast, nil
}

func (f *HTTPFeed) reject(kind string, err error) {
	f.logger.WithFields(logrus.Fields{
		"source": f.name,
		"kind":   kind,
	}).WithError(err).Warn("Dropping invalid record")
}
