package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/yourusername/gridiron-edge/internal/database"
	"github.com/yourusername/gridiron-edge/internal/models"
)

const gameColumns = `game_id, league, home_team_id, away_team_id, kickoff, venue, neutral_site,
		season, week, home_score, away_score, completed_at, injury_differential`

// PostgresGameRepository implements GameRepository for PostgreSQL
type PostgresGameRepository struct {
	db *database.DB
}

// NewPostgresGameRepository creates a new game repository
func NewPostgresGameRepository(db *database.DB) GameRepository {
	return &PostgresGameRepository{db: db}
}

// Upsert inserts a game or refreshes a scheduled one. Rows with recorded
// scores are left untouched.
func (g *PostgresGameRepository) Upsert(ctx context.Context, game *models.GameRecord) error {
	query := `
		INSERT INTO games (` + gameColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (game_id) DO UPDATE SET
			kickoff = EXCLUDED.kickoff,
			venue = EXCLUDED.venue,
			neutral_site = EXCLUDED.neutral_site,
			home_score = EXCLUDED.home_score,
			away_score = EXCLUDED.away_score,
			completed_at = EXCLUDED.completed_at,
			injury_differential = EXCLUDED.injury_differential
		WHERE games.home_score IS NULL
	`

	_, err := g.db.Querier(ctx).Exec(ctx, query,
		game.GameID, game.League, game.HomeTeamID, game.AwayTeamID, game.Kickoff, game.Venue, game.NeutralSite,
		game.Season, game.Week, game.HomeScore, game.AwayScore, game.CompletedAt, game.InjuryDifferential,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert game: %w", err)
	}
	return nil
}

// GetByID retrieves a game by its collaborator id
func (g *PostgresGameRepository) GetByID(ctx context.Context, gameID string) (*models.GameRecord, error) {
	row := g.db.Querier(ctx).QueryRow(ctx, `SELECT `+gameColumns+` FROM games WHERE game_id = $1`, gameID)
	game, err := scanGame(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	return game, nil
}

// GetCompleted retrieves completed games of a league in completion order
func (g *PostgresGameRepository) GetCompleted(ctx context.Context, league string, start, end time.Time) ([]*models.GameRecord, error) {
	query := `
		SELECT ` + gameColumns + `
		FROM games
		WHERE league = $1 AND home_score IS NOT NULL
		  AND COALESCE(completed_at, kickoff) BETWEEN $2 AND $3
		ORDER BY COALESCE(completed_at, kickoff)
	`

	rows, err := g.db.Querier(ctx).Query(ctx, query, league, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query completed games: %w", err)
	}
	defer rows.Close()

	var games []*models.GameRecord
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		games = append(games, game)
	}
	return games, rows.Err()
}

func scanGame(row pgx.Row) (*models.GameRecord, error) {
	game := &models.GameRecord{}
	err := row.Scan(
		&game.GameID, &game.League, &game.HomeTeamID, &game.AwayTeamID, &game.Kickoff, &game.Venue, &game.NeutralSite,
		&game.Season, &game.Week, &game.HomeScore, &game.AwayScore, &game.CompletedAt, &game.InjuryDifferential,
	)
	return game, err
}
