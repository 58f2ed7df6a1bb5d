package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/yourusername/gridiron-edge/internal/database"
	"github.com/yourusername/gridiron-edge/internal/models"
)

// Repositories holds all repository implementations
type Repositories struct {
	Ratings       RatingRepository
	Games         GameRepository
	Lines         MarketLineRepository
	Events        EventRepository
	SourceQuality SourceQualityRepository
	Predictions   PredictionRepository
}

// NewRepositories creates and returns all PostgreSQL repository implementations
func NewRepositories(db *database.DB) (*Repositories, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	return &Repositories{
		Ratings:       NewPostgresRatingRepository(db),
		Games:         NewPostgresGameRepository(db),
		Lines:         NewPostgresMarketLineRepository(db),
		Events:        NewPostgresEventRepository(db),
		SourceQuality: NewPostgresSourceQualityRepository(db),
		Predictions:   NewPostgresPredictionRepository(db),
	}, nil
}

// NewMemoryRepositories creates in-process repositories for tests and
// database-less runs
func NewMemoryRepositories() *Repositories {
	return &Repositories{
		Ratings:       NewMemoryRatingRepository(),
		Games:         NewMemoryGameRepository(),
		Lines:         NewMemoryMarketLineRepository(),
		Events:        NewMemoryEventRepository(),
		SourceQuality: NewMemorySourceQualityRepository(),
		Predictions:   NewMemoryPredictionRepository(),
	}
}

const uniqueViolation = "23505"

// mapPgError converts unique violations into models.ErrDuplicateKey
func mapPgError(err error, action string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w", action, models.ErrDuplicateKey)
	}
	return fmt.Errorf("%s: %w", action, err)
}
