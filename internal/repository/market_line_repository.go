package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/yourusername/gridiron-edge/internal/database"
	"github.com/yourusername/gridiron-edge/internal/models"
)

// PostgresMarketLineRepository implements MarketLineRepository for PostgreSQL
type PostgresMarketLineRepository struct {
	db *database.DB
}

// NewPostgresMarketLineRepository creates a new market line repository
func NewPostgresMarketLineRepository(db *database.DB) MarketLineRepository {
	return &PostgresMarketLineRepository{db: db}
}

const insertLineQuery = `
	INSERT INTO market_lines (game_id, book_id, market_type, value, price, observed_at, book_class)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
`

// Insert appends a line observation
func (m *PostgresMarketLineRepository) Insert(ctx context.Context, line *models.MarketLine) error {
	_, err := m.db.Querier(ctx).Exec(ctx, insertLineQuery,
		line.GameID, line.BookID, line.MarketType, line.Value, line.Price, line.ObservedAt, line.BookClass,
	)
	if err != nil {
		return fmt.Errorf("failed to insert market line: %w", err)
	}
	return nil
}

// InsertBatch appends many observations in a single round trip
func (m *PostgresMarketLineRepository) InsertBatch(ctx context.Context, lines []*models.MarketLine) error {
	if len(lines) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, line := range lines {
		batch.Queue(insertLineQuery,
			line.GameID, line.BookID, line.MarketType, line.Value, line.Price, line.ObservedAt, line.BookClass,
		)
	}

	results := m.db.GetPool().SendBatch(ctx, batch)
	defer results.Close()

	for range lines {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert market line batch: %w", err)
		}
	}
	return nil
}

// GetByGame returns every observation for a game oldest first
func (m *PostgresMarketLineRepository) GetByGame(ctx context.Context, gameID string) ([]*models.MarketLine, error) {
	rows, err := m.db.Querier(ctx).Query(ctx, `
		SELECT game_id, book_id, market_type, value, price, observed_at, book_class
		FROM market_lines
		WHERE game_id = $1
		ORDER BY observed_at, id
	`, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to query market lines: %w", err)
	}
	defer rows.Close()

	var lines []*models.MarketLine
	for rows.Next() {
		line := &models.MarketLine{}
		if err := rows.Scan(&line.GameID, &line.BookID, &line.MarketType, &line.Value, &line.Price, &line.ObservedAt, &line.BookClass); err != nil {
			return nil, fmt.Errorf("failed to scan market line: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}
