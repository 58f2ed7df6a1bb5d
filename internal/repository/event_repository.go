package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/yourusername/gridiron-edge/internal/database"
	"github.com/yourusername/gridiron-edge/internal/models"
)

// PostgresEventRepository implements EventRepository for PostgreSQL
type PostgresEventRepository struct {
	db *database.DB
}

// NewPostgresEventRepository creates a new event repository
func NewPostgresEventRepository(db *database.DB) EventRepository {
	return &PostgresEventRepository{db: db}
}

// Insert appends an event; events are never updated
func (e *PostgresEventRepository) Insert(ctx context.Context, event *models.EFactorEvent) error {
	_, err := e.db.Querier(ctx).Exec(ctx, `
		INSERT INTO efactor_events (event_id, team_id, event_type, magnitude, occurred_at, source_id,
		                            reporter_confidence, supersedes_id, description, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		event.EventID, event.TeamID, event.Type, event.Magnitude, event.OccurredAt, event.SourceID,
		event.ReporterConfidence, event.SupersedesID, event.Description, event.RecordedAt,
	)
	if err != nil {
		return mapPgError(err, "failed to insert event")
	}
	return nil
}

// GetByTeam returns a team's events that occurred at or after since
func (e *PostgresEventRepository) GetByTeam(ctx context.Context, teamID string, since time.Time) ([]*models.EFactorEvent, error) {
	rows, err := e.db.Querier(ctx).Query(ctx, `
		SELECT event_id, team_id, event_type, magnitude, occurred_at, source_id,
		       reporter_confidence, supersedes_id, description, recorded_at
		FROM efactor_events
		WHERE team_id = $1 AND occurred_at >= $2
		ORDER BY occurred_at
	`, teamID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []*models.EFactorEvent
	for rows.Next() {
		ev := &models.EFactorEvent{}
		err := rows.Scan(
			&ev.EventID, &ev.TeamID, &ev.Type, &ev.Magnitude, &ev.OccurredAt, &ev.SourceID,
			&ev.ReporterConfidence, &ev.SupersedesID, &ev.Description, &ev.RecordedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
