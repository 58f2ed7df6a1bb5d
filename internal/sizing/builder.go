package sizing

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/gridiron-edge/internal/edge"
	"github.com/yourusername/gridiron-edge/internal/models"
)

// Reasons attached to recommendations
const (
	ReasonThresholdNotMet = "threshold_not_met"
	ReasonQualified       = "edge_qualified"
	ReasonSharpAligned    = "sharp_aligned"
	ReasonClampedMin      = "stake_clamped_min"
	ReasonClampedMax      = "stake_clamped_max"
	ReasonKeyNumbers      = "key_numbers_crossed"
)

// Base confidence score of each tier, and the cut points used to map a shifted
// score back onto a tier
const (
	slightScore   = 0.55
	elevatedScore = 0.70
	highScore     = 0.85

	elevatedCut = 0.625
	highCut     = 0.775

	// DegradedPenalty is subtracted from the score per degraded input feed
	DegradedPenalty = 0.05
)

// ConfidenceAdjuster scales a confidence score by the quality of its sources
type ConfidenceAdjuster interface {
	AdjustConfidence(sourceIDs []string, base float64) float64
}

// Input is one evaluated market ready for sizing
type Input struct {
	Evaluation *edge.Evaluation
	// ConfidenceShift is the bounded E-Factor confidence adjustment
	ConfidenceShift float64
	Sources         []string
	Degraded        []string
	Bankroll        decimal.Decimal
}

// Builder assembles recommendations
type Builder struct {
	quality ConfidenceAdjuster
	log     *logrus.Entry
}

// NewBuilder creates a builder. quality may be nil.
func NewBuilder(quality ConfidenceAdjuster, log *logrus.Logger) *Builder {
	return &Builder{quality: quality, log: log.WithField("component", "sizing")}
}

// Build sizes one market. Edges below the threshold produce an explicit
// no_play with zero stake.
func (b *Builder) Build(in Input, risk RiskConfig) (*models.BettingRecommendation, error) {
	if in.Evaluation == nil {
		return nil, errors.New("evaluation is required")
	}
	ev := in.Evaluation

	rec := &models.BettingRecommendation{
		GameID:         ev.GameID,
		MarketType:     ev.MarketType,
		Edge:           ev.Edge,
		ModelLine:      ev.ModelLine,
		MarketLine:     ev.MarketLine,
		Price:          ev.Price,
		SharpAlignment: ev.SharpAligned,
		StakeAmount:    decimal.Zero,
		Degraded:       append([]string(nil), in.Degraded...),
	}
	if rec.Price == 0 {
		rec.Price = models.DefaultPrice
	}

	absEdge := math.Abs(ev.Edge)
	stake, err := risk.Size(absEdge, len(ev.KeyNumbers), rec.Price)
	if errors.Is(err, models.ErrThresholdNotMet) {
		rec.Side = models.SideNoPlay
		rec.ConfidenceTier = models.TierNone
		rec.Reasons = []string{ReasonThresholdNotMet}
		return rec, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to size %s %s: %w", ev.GameID, ev.MarketType, err)
	}

	rec.Side = ev.Side
	rec.WinProbability = stake.WinProbability
	rec.StakeFraction = stake.Applied
	rec.StakeAmount = in.Bankroll.Mul(decimal.NewFromFloat(stake.Applied)).Round(2)
	rec.ConfidenceTier, rec.ConfidenceScore = b.confidence(risk.Tier(absEdge), in)

	rec.Reasons = append(rec.Reasons, ReasonQualified)
	if len(ev.KeyNumbers) > 0 {
		keys := make([]string, len(ev.KeyNumbers))
		for i, k := range ev.KeyNumbers {
			keys[i] = fmt.Sprintf("%g", k)
		}
		rec.Reasons = append(rec.Reasons, ReasonKeyNumbers+":"+strings.Join(keys, ","))
	}
	if ev.SharpAligned {
		rec.Reasons = append(rec.Reasons, ReasonSharpAligned)
	}
	if stake.ClampedMin {
		rec.Reasons = append(rec.Reasons, ReasonClampedMin)
	}
	if stake.ClampedMax {
		rec.Reasons = append(rec.Reasons, ReasonClampedMax)
	}

	b.log.WithFields(logrus.Fields{
		"game_id":         ev.GameID,
		"market_type":     ev.MarketType,
		"win_probability": stake.WinProbability,
		"full_kelly":      stake.FullKelly,
		"applied":         stake.Applied,
		"tier":            rec.ConfidenceTier,
	}).Debug("Position sized")

	return rec, nil
}

// confidence shifts the tier's base score and maps it back onto a tier. A
// qualifying edge never drops below slight.
func (b *Builder) confidence(edgeTier models.ConfidenceTier, in Input) (models.ConfidenceTier, float64) {
	score := BaseScore(edgeTier) + in.ConfidenceShift - DegradedPenalty*float64(len(in.Degraded))
	if b.quality != nil && len(in.Sources) > 0 {
		score = b.quality.AdjustConfidence(in.Sources, score)
	}
	score = math.Max(0, math.Min(1, score))

	tier := models.TierSlight
	switch {
	case score >= highCut:
		tier = models.TierHigh
	case score >= elevatedCut:
		tier = models.TierElevated
	}
	return tier, score
}

// BaseScore is the unshifted confidence score of a tier
func BaseScore(t models.ConfidenceTier) float64 {
	switch t {
	case models.TierHigh:
		return highScore
	case models.TierElevated:
		return elevatedScore
	case models.TierSlight:
		return slightScore
	default:
		return 0
	}
}
