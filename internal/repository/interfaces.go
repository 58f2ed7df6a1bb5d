package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/gridiron-edge/internal/models"
)

// RatingRepository persists team ratings and their append-only history.
// Only the rating engine writes through it.
type RatingRepository interface {
	Get(ctx context.Context, teamID string) (*models.TeamRating, error)
	// Create stores an initial rating; ErrDuplicateKey if the team exists
	Create(ctx context.Context, rating *models.TeamRating) error
	// Append records a new rating value for a game. The stored version must equal
	// expectedVersion; ErrDuplicateKey if the game was already applied to the team.
	Append(ctx context.Context, teamID string, expectedVersion int, point models.RatingPoint) (*models.TeamRating, error)
	History(ctx context.Context, teamID string) ([]models.RatingPoint, error)
	ListByLeague(ctx context.Context, league string) ([]*models.TeamRating, error)
}

// GameRepository persists games supplied by the game feed
type GameRepository interface {
	// Upsert stores a game; a completed game's scores are never overwritten
	Upsert(ctx context.Context, game *models.GameRecord) error
	GetByID(ctx context.Context, gameID string) (*models.GameRecord, error)
	GetCompleted(ctx context.Context, league string, start, end time.Time) ([]*models.GameRecord, error)
}

// MarketLineRepository persists append-only line observations
type MarketLineRepository interface {
	Insert(ctx context.Context, line *models.MarketLine) error
	InsertBatch(ctx context.Context, lines []*models.MarketLine) error
	GetByGame(ctx context.Context, gameID string) ([]*models.MarketLine, error)
}

// EventRepository persists append-only E-Factor events
type EventRepository interface {
	// Insert stores an event; ErrDuplicateKey if the event id exists
	Insert(ctx context.Context, event *models.EFactorEvent) error
	GetByTeam(ctx context.Context, teamID string, since time.Time) ([]*models.EFactorEvent, error)
}

// SourceQualityRepository persists source reliability snapshots
type SourceQualityRepository interface {
	Upsert(ctx context.Context, record *models.SourceQualityRecord) error
	GetAll(ctx context.Context) ([]*models.SourceQualityRecord, error)
}

// PredictionRepository persists predictions and their outcomes
type PredictionRepository interface {
	// Create stores a prediction; ErrDuplicateKey if an active prediction exists
	// for the same game and market type
	Create(ctx context.Context, prediction *models.PredictionRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.PredictionRecord, error)
	// GetActive returns the unresolved prediction for a game and market, or ErrNotFound
	GetActive(ctx context.Context, gameID string, marketType models.MarketType) (*models.PredictionRecord, error)
	// AttachOutcome stores the outcome and moves the prediction to outcome_recorded
	// in one step. A missing or already resolved prediction yields a
	// *models.CalibrationIntegrityError and nothing is written.
	AttachOutcome(ctx context.Context, outcome *models.OutcomeRecord) error
	// MarkAnalyzed moves a prediction from outcome_recorded to analyzed
	MarkAnalyzed(ctx context.Context, id uuid.UUID) error
	GetOutcome(ctx context.Context, predictionID uuid.UUID) (*models.OutcomeRecord, error)
	// GetResolved returns predictions with outcomes recorded in [start, end]; an
	// empty league matches all leagues
	GetResolved(ctx context.Context, league string, start, end time.Time) ([]models.ResolvedPrediction, error)
}
