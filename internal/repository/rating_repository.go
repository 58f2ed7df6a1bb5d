package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/yourusername/gridiron-edge/internal/database"
	"github.com/yourusername/gridiron-edge/internal/models"
)

// ErrVersionConflict is returned when a rating changed between read and append
var ErrVersionConflict = errors.New("rating version conflict")

// PostgresRatingRepository implements RatingRepository for PostgreSQL
type PostgresRatingRepository struct {
	db *database.DB
}

// NewPostgresRatingRepository creates a new rating repository
func NewPostgresRatingRepository(db *database.DB) RatingRepository {
	return &PostgresRatingRepository{db: db}
}

// Get retrieves a team rating with its history
func (r *PostgresRatingRepository) Get(ctx context.Context, teamID string) (*models.TeamRating, error) {
	query := `
		SELECT team_id, league, rating, last_updated, version
		FROM team_ratings WHERE team_id = $1
	`

	rating := &models.TeamRating{}
	err := r.db.Querier(ctx).QueryRow(ctx, query, teamID).Scan(
		&rating.TeamID, &rating.League, &rating.Rating, &rating.LastUpdated, &rating.Version,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rating: %w", err)
	}

	rating.History, err = r.History(ctx, teamID)
	if err != nil {
		return nil, err
	}
	return rating, nil
}

// Create stores an initial rating and its first history point
func (r *PostgresRatingRepository) Create(ctx context.Context, rating *models.TeamRating) error {
	return r.db.WithTransaction(ctx, func(txCtx context.Context) error {
		q := r.db.Querier(txCtx)
		_, err := q.Exec(txCtx, `
			INSERT INTO team_ratings (team_id, league, rating, last_updated, version)
			VALUES ($1, $2, $3, $4, $5)
		`, rating.TeamID, rating.League, rating.Rating, rating.LastUpdated, rating.Version)
		if err != nil {
			return mapPgError(err, "failed to create rating")
		}

		for _, point := range rating.History {
			if err := insertHistory(txCtx, q, rating.TeamID, point); err != nil {
				return err
			}
		}
		return nil
	})
}

// Append records a rating value under optimistic version control
func (r *PostgresRatingRepository) Append(ctx context.Context, teamID string, expectedVersion int, point models.RatingPoint) (*models.TeamRating, error) {
	err := r.db.WithTransaction(ctx, func(txCtx context.Context) error {
		q := r.db.Querier(txCtx)
		if err := insertHistory(txCtx, q, teamID, point); err != nil {
			return err
		}

		tag, err := q.Exec(txCtx, `
			UPDATE team_ratings
			SET rating = $2, last_updated = $3, version = version + 1
			WHERE team_id = $1 AND version = $4
		`, teamID, point.Value, point.RecordedAt, expectedVersion)
		if err != nil {
			return fmt.Errorf("failed to update rating: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("team %s at version %d: %w", teamID, expectedVersion, ErrVersionConflict)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, teamID)
}

// History returns the rating history of a team oldest first
func (r *PostgresRatingRepository) History(ctx context.Context, teamID string) ([]models.RatingPoint, error) {
	rows, err := r.db.Querier(ctx).Query(ctx, `
		SELECT value, game_id, recorded_at
		FROM rating_history
		WHERE team_id = $1
		ORDER BY seq
	`, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rating history: %w", err)
	}
	defer rows.Close()

	var history []models.RatingPoint
	for rows.Next() {
		var p models.RatingPoint
		if err := rows.Scan(&p.Value, &p.GameID, &p.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rating history: %w", err)
		}
		history = append(history, p)
	}
	return history, rows.Err()
}

// ListByLeague returns the current ratings of a league without history
func (r *PostgresRatingRepository) ListByLeague(ctx context.Context, league string) ([]*models.TeamRating, error) {
	rows, err := r.db.Querier(ctx).Query(ctx, `
		SELECT team_id, league, rating, last_updated, version
		FROM team_ratings
		WHERE league = $1
		ORDER BY rating DESC
	`, league)
	if err != nil {
		return nil, fmt.Errorf("failed to query ratings: %w", err)
	}
	defer rows.Close()

	var ratings []*models.TeamRating
	for rows.Next() {
		rating := &models.TeamRating{}
		if err := rows.Scan(&rating.TeamID, &rating.League, &rating.Rating, &rating.LastUpdated, &rating.Version); err != nil {
			return nil, fmt.Errorf("failed to scan rating: %w", err)
		}
		ratings = append(ratings, rating)
	}
	return ratings, rows.Err()
}

func insertHistory(ctx context.Context, q database.Querier, teamID string, point models.RatingPoint) error {
	_, err := q.Exec(ctx, `
		INSERT INTO rating_history (team_id, game_id, value, recorded_at)
		VALUES ($1, $2, $3, $4)
	`, teamID, point.GameID, point.Value, point.RecordedAt)
	if err != nil {
		return mapPgError(err, "failed to append rating history")
	}
	return nil
}
