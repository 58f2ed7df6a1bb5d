package models

import (
	"time"

	"github.com/google/uuid"
)

// PredictionStatus tracks a prediction through the calibration state machine
type PredictionStatus string

const (
	PredictionCreated         PredictionStatus = "created"
	PredictionOutcomeRecorded PredictionStatus = "outcome_recorded"
	PredictionAnalyzed        PredictionStatus = "analyzed"
)

// SourceContribution is one source's signed point contribution (home minus away)
type SourceContribution struct {
	SourceID  string    `json:"source_id"`
	EventType EventType `json:"event_type"`
	Points    float64   `json:"points"`
}

// PredictionRecord is the persisted form of a recommendation awaiting an outcome
type PredictionRecord struct {
	ID                  uuid.UUID            `db:"id" json:"id" validate:"required"`
	GameID              string               `db:"game_id" json:"game_id" validate:"required"`
	League              string               `db:"league" json:"league"`
	MarketType          MarketType           `db:"market_type" json:"market_type" validate:"required"`
	Side                Side                 `db:"side" json:"side" validate:"required"`
	PredictedEdge       float64              `db:"predicted_edge" json:"predicted_edge"`
	ModelLine           float64              `db:"model_line" json:"model_line"`
	MarketLine          float64              `db:"market_line" json:"market_line"`
	EFactorAdjustment   float64              `db:"efactor_adjustment" json:"efactor_adjustment"`
	ContributingSources []string             `db:"contributing_sources" json:"contributing_sources"`
	Contributions       []SourceContribution `db:"contributions" json:"contributions"`
	ConfidenceTier      ConfidenceTier       `db:"confidence_tier" json:"confidence_tier"`
	ConfidenceScore     float64              `db:"confidence_score" json:"confidence_score" validate:"gte=0,lte=1"`
	SharpAlignment      bool                 `db:"sharp_alignment" json:"sharp_alignment"`
	StakeFraction       float64              `db:"stake_fraction" json:"stake_fraction"`
	Price               int                  `db:"price" json:"price"`
	Status              PredictionStatus     `db:"status" json:"status"`
	CreatedAt           time.Time            `db:"created_at" json:"created_at"`
}

// IsActive checks if the prediction still awaits an outcome
func (p *PredictionRecord) IsActive() bool {
	return p.Status == PredictionCreated
}

// GameResult is the settled result of the recommended side
type GameResult string

const (
	ResultWin  GameResult = "win"
	ResultLoss GameResult = "loss"
	ResultPush GameResult = "push"
)

// IsValid checks the result against the known set
func (r GameResult) IsValid() bool {
	return r == ResultWin || r == ResultLoss || r == ResultPush
}

// OutcomeRecord links a settled result to its prediction
type OutcomeRecord struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	PredictionID     uuid.UUID  `db:"prediction_id" json:"prediction_id" validate:"required"`
	Result           GameResult `db:"result" json:"result" validate:"required,oneof=win loss push"`
	ActualMargin     float64    `db:"actual_margin" json:"actual_margin"`
	ClosingLineValue float64    `db:"closing_line_value" json:"closing_line_value"`
	RecordedAt       time.Time  `db:"recorded_at" json:"recorded_at"`
}

// ResolvedPrediction pairs a prediction with its outcome for analysis
type ResolvedPrediction struct {
	Prediction *PredictionRecord `json:"prediction"`
	Outcome    *OutcomeRecord    `json:"outcome"`
}
