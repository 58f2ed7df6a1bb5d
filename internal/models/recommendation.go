package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Side is the recommended side of a market
type Side string

const (
	SideFavorite Side = "favorite"
	SideUnderdog Side = "underdog"
	SideOver     Side = "over"
	SideUnder    Side = "under"
	SideNoPlay   Side = "no_play"
)

// ConfidenceTier grades how strongly a recommendation is held
type ConfidenceTier string

const (
	TierNone     ConfidenceTier = "none"
	TierSlight   ConfidenceTier = "slight"
	TierElevated ConfidenceTier = "elevated"
	TierHigh     ConfidenceTier = "high"
)

// Rank orders tiers from none (0) to high (3)
func (t ConfidenceTier) Rank() int {
	switch t {
	case TierSlight:
		return 1
	case TierElevated:
		return 2
	case TierHigh:
		return 3
	default:
		return 0
	}
}

// BettingRecommendation is the derived output of one market evaluation
type BettingRecommendation struct {
	GameID          string          `json:"game_id"`
	MarketType      MarketType      `json:"market_type"`
	Side            Side            `json:"side"`
	Edge            float64         `json:"edge"`
	ModelLine       float64         `json:"model_line"`
	MarketLine      float64         `json:"market_line"`
	ConfidenceTier  ConfidenceTier  `json:"confidence_tier"`
	ConfidenceScore float64         `json:"confidence_score"`
	WinProbability  float64         `json:"win_probability"`
	Price           int             `json:"price"`
	StakeFraction   float64         `json:"stake_fraction"`
	StakeAmount     decimal.Decimal `json:"stake_amount"`
	SharpAlignment  bool            `json:"sharp_alignment"`
	Reasons         []string        `json:"reasons,omitempty"`
	Degraded        []string        `json:"degraded,omitempty"`
	PredictionID    *uuid.UUID      `json:"prediction_id,omitempty"`
}

// IsPlay checks if the recommendation carries a stake
func (r *BettingRecommendation) IsPlay() bool {
	return r.Side != SideNoPlay
}
