package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/yourusername/gridiron-edge/internal/database"
	"github.com/yourusername/gridiron-edge/internal/models"
)

const predictionColumns = `p.id, p.game_id, p.league, p.market_type, p.side, p.predicted_edge, p.model_line,
		p.market_line, p.efactor_adjustment, p.contributing_sources, p.contributions, p.confidence_tier,
		p.confidence_score, p.sharp_alignment, p.stake_fraction, p.price, p.status, p.created_at`

// PostgresPredictionRepository implements PredictionRepository for PostgreSQL
type PostgresPredictionRepository struct {
	db *database.DB
}

// NewPostgresPredictionRepository creates a new prediction repository
func NewPostgresPredictionRepository(db *database.DB) PredictionRepository {
	return &PostgresPredictionRepository{db: db}
}

// Create inserts a prediction. The partial unique index on active predictions
// surfaces as ErrDuplicateKey.
func (p *PostgresPredictionRepository) Create(ctx context.Context, prediction *models.PredictionRecord) error {
	query := `
		INSERT INTO predictions (id, game_id, league, market_type, side, predicted_edge, model_line, market_line,
		                         efactor_adjustment, contributing_sources, contributions, confidence_tier,
		                         confidence_score, sharp_alignment, stake_fraction, price, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	_, err := p.db.Querier(ctx).Exec(ctx, query,
		prediction.ID, prediction.GameID, prediction.League, prediction.MarketType, prediction.Side,
		prediction.PredictedEdge, prediction.ModelLine, prediction.MarketLine, prediction.EFactorAdjustment,
		prediction.ContributingSources, prediction.Contributions, prediction.ConfidenceTier,
		prediction.ConfidenceScore, prediction.SharpAlignment, prediction.StakeFraction, prediction.Price,
		prediction.Status, prediction.CreatedAt,
	)
	if err != nil {
		return mapPgError(err, "failed to create prediction")
	}
	return nil
}

// GetByID retrieves a prediction by id
func (p *PostgresPredictionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.PredictionRecord, error) {
	row := p.db.Querier(ctx).QueryRow(ctx, `SELECT `+predictionColumns+` FROM predictions p WHERE p.id = $1`, id)
	prediction, err := scanPrediction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction: %w", err)
	}
	return prediction, nil
}

// GetActive retrieves the unresolved prediction for a game and market
func (p *PostgresPredictionRepository) GetActive(ctx context.Context, gameID string, marketType models.MarketType) (*models.PredictionRecord, error) {
	row := p.db.Querier(ctx).QueryRow(ctx, `
		SELECT `+predictionColumns+`
		FROM predictions p
		WHERE p.game_id = $1 AND p.market_type = $2 AND p.status = $3
	`, gameID, marketType, models.PredictionCreated)
	prediction, err := scanPrediction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active prediction: %w", err)
	}
	return prediction, nil
}

// AttachOutcome locks the prediction row, verifies it is unresolved, then stores
// the outcome and the status transition in one transaction
func (p *PostgresPredictionRepository) AttachOutcome(ctx context.Context, outcome *models.OutcomeRecord) error {
	return p.db.WithTransaction(ctx, func(txCtx context.Context) error {
		q := p.db.Querier(txCtx)

		var status models.PredictionStatus
		err := q.QueryRow(txCtx, `SELECT status FROM predictions WHERE id = $1 FOR UPDATE`, outcome.PredictionID).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return &models.CalibrationIntegrityError{PredictionID: outcome.PredictionID, Reason: "prediction not found"}
		}
		if err != nil {
			return fmt.Errorf("failed to lock prediction: %w", err)
		}
		if status != models.PredictionCreated {
			return &models.CalibrationIntegrityError{PredictionID: outcome.PredictionID, Reason: "prediction already resolved"}
		}

		_, err = q.Exec(txCtx, `
			INSERT INTO outcomes (id, prediction_id, result, actual_margin, closing_line_value, recorded_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, outcome.ID, outcome.PredictionID, outcome.Result, outcome.ActualMargin, outcome.ClosingLineValue, outcome.RecordedAt)
		if err != nil {
			return mapPgError(err, "failed to insert outcome")
		}

		_, err = q.Exec(txCtx, `UPDATE predictions SET status = $2 WHERE id = $1`, outcome.PredictionID, models.PredictionOutcomeRecorded)
		if err != nil {
			return fmt.Errorf("failed to update prediction status: %w", err)
		}
		return nil
	})
}

// MarkAnalyzed completes the calibration state machine for a prediction
func (p *PostgresPredictionRepository) MarkAnalyzed(ctx context.Context, id uuid.UUID) error {
	tag, err := p.db.Querier(ctx).Exec(ctx, `
		UPDATE predictions SET status = $3 WHERE id = $1 AND status = $2
	`, id, models.PredictionOutcomeRecorded, models.PredictionAnalyzed)
	if err != nil {
		return fmt.Errorf("failed to mark prediction analyzed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// GetOutcome retrieves the outcome linked to a prediction
func (p *PostgresPredictionRepository) GetOutcome(ctx context.Context, predictionID uuid.UUID) (*models.OutcomeRecord, error) {
	o := &models.OutcomeRecord{}
	err := p.db.Querier(ctx).QueryRow(ctx, `
		SELECT id, prediction_id, result, actual_margin, closing_line_value, recorded_at
		FROM outcomes WHERE prediction_id = $1
	`, predictionID).Scan(&o.ID, &o.PredictionID, &o.Result, &o.ActualMargin, &o.ClosingLineValue, &o.RecordedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get outcome: %w", err)
	}
	return o, nil
}

// GetResolved retrieves predictions whose outcomes were recorded in the window
func (p *PostgresPredictionRepository) GetResolved(ctx context.Context, league string, start, end time.Time) ([]models.ResolvedPrediction, error) {
	query := `
		SELECT ` + predictionColumns + `,
		       o.id, o.prediction_id, o.result, o.actual_margin, o.closing_line_value, o.recorded_at
		FROM predictions p
		JOIN outcomes o ON o.prediction_id = p.id
		WHERE ($1 = '' OR p.league = $1) AND o.recorded_at BETWEEN $2 AND $3
		ORDER BY o.recorded_at
	`

	rows, err := p.db.Querier(ctx).Query(ctx, query, league, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query resolved predictions: %w", err)
	}
	defer rows.Close()

	var resolved []models.ResolvedPrediction
	for rows.Next() {
		pr := &models.PredictionRecord{}
		o := &models.OutcomeRecord{}
		err := rows.Scan(
			&pr.ID, &pr.GameID, &pr.League, &pr.MarketType, &pr.Side, &pr.PredictedEdge, &pr.ModelLine,
			&pr.MarketLine, &pr.EFactorAdjustment, &pr.ContributingSources, &pr.Contributions, &pr.ConfidenceTier,
			&pr.ConfidenceScore, &pr.SharpAlignment, &pr.StakeFraction, &pr.Price, &pr.Status, &pr.CreatedAt,
			&o.ID, &o.PredictionID, &o.Result, &o.ActualMargin, &o.ClosingLineValue, &o.RecordedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan resolved prediction: %w", err)
		}
		resolved = append(resolved, models.ResolvedPrediction{Prediction: pr, Outcome: o})
	}
	return resolved, rows.Err()
}

func scanPrediction(row pgx.Row) (*models.PredictionRecord, error) {
	pr := &models.PredictionRecord{}
	err := row.Scan(
		&pr.ID, &pr.GameID, &pr.League, &pr.MarketType, &pr.Side, &pr.PredictedEdge, &pr.ModelLine,
		&pr.MarketLine, &pr.EFactorAdjustment, &pr.ContributingSources, &pr.Contributions, &pr.ConfidenceTier,
		&pr.ConfidenceScore, &pr.SharpAlignment, &pr.StakeFraction, &pr.Price, &pr.Status, &pr.CreatedAt,
	)
	return pr, err
}
