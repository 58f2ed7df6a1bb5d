// Package acquisition gathers already-parsed records from collaborator feeds
// concurrently, with per-source timeouts, caching and graceful degradation.
package acquisition

import (
	"context"
	"time"

	"github.com/yourusername/gridiron-edge/internal/models"
)

// GameFeed supplies schedules and final scores
type GameFeed interface {
	Name() string
	FetchGame(ctx context.Context, gameID string) (*models.GameRecord, error)
	FetchCompleted(ctx context.Context, league string, since time.Time) ([]*models.GameRecord, error)
}

// OddsFeed supplies market line observations
type OddsFeed interface {
	Name() string
	FetchLines(ctx context.Context, gameID string) ([]*models.MarketLine, error)
}

// EventFeed supplies E-Factor events with source attribution
type EventFeed interface {
	Name() string
	FetchEvents(ctx context.Context, teamID string, since time.Time) ([]*models.EFactorEvent, error)
}

// WeatherFeed supplies per-venue forecasts
type WeatherFeed interface {
	Name() string
	FetchForecast(ctx context.Context, venue string, at time.Time) (*models.WeatherForecast, error)
}

// Status classifies a fetch result
type Status string

const (
	StatusOK          Status = "ok"
	StatusDegraded    Status = "degraded"
	StatusUnavailable Status = "unavailable"
)

// Result is the outcome of fetching one source type. Failures are carried as
// a status and reason, never as an error.
type Result[T any] struct {
	Source    string
	Status    Status
	Value     T
	Reason    string
	FetchedAt time.Time
}

// Usable reports whether the result carries a value
func (r Result[T]) Usable() bool {
	return r.Status != StatusUnavailable
}

func unavailable[T any](reason string) Result[T] {
	return Result[T]{Status: StatusUnavailable, Reason: reason}
}
