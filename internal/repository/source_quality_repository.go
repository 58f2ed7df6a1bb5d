package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/yourusername/gridiron-edge/internal/database"
	"github.com/yourusername/gridiron-edge/internal/models"
)

// PostgresSourceQualityRepository implements SourceQualityRepository for PostgreSQL
type PostgresSourceQualityRepository struct {
	db *database.DB
}

// NewPostgresSourceQualityRepository creates a new source quality repository
func NewPostgresSourceQualityRepository(db *database.DB) SourceQualityRepository {
	return &PostgresSourceQualityRepository{db: db}
}

// Upsert stores the latest snapshot of a source
func (s *PostgresSourceQualityRepository) Upsert(ctx context.Context, record *models.SourceQualityRecord) error {
	_, err := s.db.Querier(ctx).Exec(ctx, `
		INSERT INTO source_quality (source_id, source_type, accuracy, coverage, avg_latency_ms, consistency,
		                            agreement, overall_score, observations, suppressed, suppressed_reason, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (source_id) DO UPDATE SET
			source_type = EXCLUDED.source_type,
			accuracy = EXCLUDED.accuracy,
			coverage = EXCLUDED.coverage,
			avg_latency_ms = EXCLUDED.avg_latency_ms,
			consistency = EXCLUDED.consistency,
			agreement = EXCLUDED.agreement,
			overall_score = EXCLUDED.overall_score,
			observations = EXCLUDED.observations,
			suppressed = EXCLUDED.suppressed,
			suppressed_reason = EXCLUDED.suppressed_reason,
			updated_at = EXCLUDED.updated_at
	`,
		record.SourceID, record.SourceType, record.Accuracy, record.Coverage, record.AvgLatency.Milliseconds(),
		record.Consistency, record.Agreement, record.OverallScore, record.Observations, record.Suppressed,
		record.SuppressedReason, record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert source quality: %w", err)
	}
	return nil
}

// GetAll returns the latest snapshot of every source
func (s *PostgresSourceQualityRepository) GetAll(ctx context.Context) ([]*models.SourceQualityRecord, error) {
	rows, err := s.db.Querier(ctx).Query(ctx, `
		SELECT source_id, source_type, accuracy, coverage, avg_latency_ms, consistency,
		       agreement, overall_score, observations, suppressed, suppressed_reason, updated_at
		FROM source_quality
		ORDER BY source_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query source quality: %w", err)
	}
	defer rows.Close()

	var records []*models.SourceQualityRecord
	for rows.Next() {
		rec := &models.SourceQualityRecord{}
		var latencyMs int64
		err := rows.Scan(
			&rec.SourceID, &rec.SourceType, &rec.Accuracy, &rec.Coverage, &latencyMs, &rec.Consistency,
			&rec.Agreement, &rec.OverallScore, &rec.Observations, &rec.Suppressed, &rec.SuppressedReason, &rec.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source quality: %w", err)
		}
		rec.AvgLatency = time.Duration(latencyMs) * time.Millisecond
		records = append(records, rec)
	}
	return records, rows.Err()
}
