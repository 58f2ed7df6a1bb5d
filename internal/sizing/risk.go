// Package sizing turns qualifying edges into clamped Kelly stakes and
// confidence tiers.
package sizing

import (
	"fmt"
	"math"

	"github.com/yourusername/gridiron-edge/internal/config"
	"github.com/yourusername/gridiron-edge/internal/models"
	"github.com/yourusername/gridiron-edge/internal/oddsmath"
)

// MaxKeyNumberBonus caps the probability bonus from crossed key numbers
const MaxKeyNumberBonus = 0.03

// ProbabilityBucket maps edges of at least MinEdge points to a win probability
type ProbabilityBucket struct {
	MinEdge     float64
	Probability float64
}

// RiskConfig holds the bankroll risk inputs of a recommendation
type RiskConfig struct {
	MinBetPct          float64
	MaxBetPct          float64
	KellyFraction      float64
	MinEdgeThreshold   float64
	KeyNumbers         []float64
	ElevatedEdge       float64
	HighEdge           float64
	KeyNumberBonus     float64
	ProbabilityBuckets []ProbabilityBucket
}

// DefaultProbabilityBuckets are historical cover rates keyed by edge size
func DefaultProbabilityBuckets() []ProbabilityBucket {
	return []ProbabilityBucket{
		{MinEdge: 1.5, Probability: 0.53},
		{MinEdge: 3, Probability: 0.56},
		{MinEdge: 5, Probability: 0.59},
		{MinEdge: 7, Probability: 0.62},
	}
}

// DefaultRiskConfig returns half-Kelly between 0.5% and 3% of bankroll
func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		MinBetPct:          0.005,
		MaxBetPct:          0.03,
		KellyFraction:      0.5,
		MinEdgeThreshold:   1.5,
		KeyNumbers:         []float64{3, 7, 10, 14},
		ElevatedEdge:       3,
		HighEdge:           5,
		KeyNumberBonus:     0.01,
		ProbabilityBuckets: DefaultProbabilityBuckets(),
	}
}

// FromConfig converts the risk section of the application config
func FromConfig(c *config.RiskConfig) RiskConfig {
	rc := RiskConfig{
		MinBetPct:        c.MinBetPct,
		MaxBetPct:        c.MaxBetPct,
		KellyFraction:    c.KellyFraction,
		MinEdgeThreshold: c.MinEdgeThreshold,
		KeyNumbers:       append([]float64(nil), c.KeyNumbers...),
		ElevatedEdge:     c.ElevatedEdge,
		HighEdge:         c.HighEdge,
		KeyNumberBonus:   c.KeyNumberBonus,
	}
	for _, b := range c.ProbabilityBuckets {
		rc.ProbabilityBuckets = append(rc.ProbabilityBuckets, ProbabilityBucket{MinEdge: b.MinEdge, Probability: b.Probability})
	}
	if len(rc.ProbabilityBuckets) == 0 {
		rc.ProbabilityBuckets = DefaultProbabilityBuckets()
	}
	return rc
}

// Validate checks the bounds before any recommendation is produced
func (c RiskConfig) Validate() error {
	fail := func(field, reason string) error {
		return &models.ConfigurationError{Field: field, Reason: reason}
	}

	switch {
	case c.MaxBetPct <= 0 || c.MaxBetPct > 1:
		return fail("max_bet_pct", fmt.Sprintf("must be in (0, 1], got %g", c.MaxBetPct))
	case c.MinBetPct < 0:
		return fail("min_bet_pct", fmt.Sprintf("must not be negative, got %g", c.MinBetPct))
	case c.MinBetPct > c.MaxBetPct:
		return fail("min_bet_pct", fmt.Sprintf("%g exceeds max_bet_pct %g", c.MinBetPct, c.MaxBetPct))
	case c.KellyFraction <= 0 || c.KellyFraction > 1:
		return fail("kelly_fraction", fmt.Sprintf("must be in (0, 1], got %g", c.KellyFraction))
	case c.MinEdgeThreshold <= 0:
		return fail("min_edge_threshold", "must be positive")
	case c.ElevatedEdge < c.MinEdgeThreshold:
		return fail("elevated_edge", "must not be below min_edge_threshold")
	case c.HighEdge < c.ElevatedEdge:
		return fail("high_edge", "must not be below elevated_edge")
	case c.KeyNumberBonus < 0:
		return fail("key_number_bonus", "must not be negative")
	}

	for _, k := range c.KeyNumbers {
		if k <= 0 {
			return fail("key_numbers", fmt.Sprintf("must be positive, got %g", k))
		}
	}
	for i, b := range c.ProbabilityBuckets {
		if b.Probability <= 0 || b.Probability >= 1 {
			return fail("probability_buckets", fmt.Sprintf("probability %g not in (0, 1)", b.Probability))
		}
		if i > 0 && b.MinEdge <= c.ProbabilityBuckets[i-1].MinEdge {
			return fail("probability_buckets", "min_edge must be ascending")
		}
	}
	return nil
}

// WinProbability maps an edge to the probability of its bucket plus the key
// number bonus. Edges below the first bucket are a coin flip.
func (c RiskConfig) WinProbability(absEdge float64, keyNumbersCrossed int) float64 {
	buckets := c.ProbabilityBuckets
	if len(buckets) == 0 {
		buckets = DefaultProbabilityBuckets()
	}

	p := 0.5
	for _, b := range buckets {
		if absEdge >= b.MinEdge {
			p = b.Probability
		}
	}
	bonus := math.Min(float64(keyNumbersCrossed)*c.KeyNumberBonus, MaxKeyNumberBonus)
	return math.Min(p+bonus, 0.99)
}

// Tier grades an edge by the configured breakpoints. Edges below the
// threshold grade as none.
func (c RiskConfig) Tier(absEdge float64) models.ConfidenceTier {
	switch {
	case absEdge < c.MinEdgeThreshold:
		return models.TierNone
	case absEdge >= c.HighEdge:
		return models.TierHigh
	case absEdge >= c.ElevatedEdge:
		return models.TierElevated
	default:
		return models.TierSlight
	}
}

// Stake is a sized position
type Stake struct {
	WinProbability float64
	NetOdds        float64
	FullKelly      float64
	Applied        float64
	ClampedMin     bool
	ClampedMax     bool
}

// Size applies fractional Kelly and clamps the result to [MinBetPct, MaxBetPct].
// An edge below the threshold returns ErrThresholdNotMet.
func (c RiskConfig) Size(absEdge float64, keyNumbersCrossed int, price int) (Stake, error) {
	if absEdge < c.MinEdgeThreshold {
		return Stake{}, fmt.Errorf("edge %.2f below %.2f: %w", absEdge, c.MinEdgeThreshold, models.ErrThresholdNotMet)
	}
	if price == 0 {
		price = models.DefaultPrice
	}
	b, err := oddsmath.NetOdds(price)
	if err != nil {
		return Stake{}, fmt.Errorf("price %d: %w", price, err)
	}

	s := Stake{WinProbability: c.WinProbability(absEdge, keyNumbersCrossed), NetOdds: b}
	s.FullKelly = oddsmath.Kelly(s.WinProbability, b)

	fractional := s.FullKelly * c.KellyFraction
	switch {
	case fractional < c.MinBetPct:
		s.Applied = c.MinBetPct
		s.ClampedMin = true
	case fractional > c.MaxBetPct:
		s.Applied = c.MaxBetPct
		s.ClampedMax = true
	default:
		s.Applied = fractional
	}
	return s, nil
}
