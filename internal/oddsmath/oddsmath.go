// Package oddsmath converts between American prices, decimal odds and
// implied probabilities.
package oddsmath

import (
	"errors"
	"math"
)

var (
	// ErrInvalidPrice is returned for an American price of zero or inside (-100, 100)
	ErrInvalidPrice = errors.New("invalid American price")
	// ErrInvalidProbability is returned for probabilities outside (0, 1)
	ErrInvalidProbability = errors.New("invalid probability")
	// ErrInvalidDecimal is returned for decimal odds below 1.0
	ErrInvalidDecimal = errors.New("invalid decimal odds")
)

// AmericanToDecimal converts an American price to decimal odds.
// +150 → 2.50, -110 → 1.909
func AmericanToDecimal(american int) (float64, error) {
	if american > -100 && american < 100 {
		return 0, ErrInvalidPrice
	}
	if american > 0 {
		return float64(american)/100.0 + 1.0, nil
	}
	return 100.0/float64(-american) + 1.0, nil
}

// NetOdds returns b, the profit per unit staked, for an American price
func NetOdds(american int) (float64, error) {
	dec, err := AmericanToDecimal(american)
	if err != nil {
		return 0, err
	}
	return dec - 1.0, nil
}

// DecimalToAmerican converts decimal odds back to the nearest American price
func DecimalToAmerican(decimal float64) (int, error) {
	if decimal <= 1.0 {
		return 0, ErrInvalidDecimal
	}
	if decimal >= 2.0 {
		return int(math.Round((decimal - 1.0) * 100.0)), nil
	}
	return int(math.Round(-100.0 / (decimal - 1.0))), nil
}

// ImpliedProbability returns the break-even win probability of an American price
func ImpliedProbability(american int) (float64, error) {
	dec, err := AmericanToDecimal(american)
	if err != nil {
		return 0, err
	}
	return 1.0 / dec, nil
}

// ProbabilityToAmerican returns the fair American price of a win probability
func ProbabilityToAmerican(p float64) (int, error) {
	if p <= 0 || p >= 1 {
		return 0, ErrInvalidProbability
	}
	return DecimalToAmerican(1.0 / p)
}

// NoVig removes the bookmaker margin from a two-way market and returns the
// fair probabilities of each side.
func NoVig(priceA, priceB int) (float64, float64, error) {
	pa, err := ImpliedProbability(priceA)
	if err != nil {
		return 0, 0, err
	}
	pb, err := ImpliedProbability(priceB)
	if err != nil {
		return 0, 0, err
	}
	total := pa + pb
	return pa / total, pb / total, nil
}

// Kelly returns the full-Kelly fraction (p·(b+1) − 1)/b for win probability p
// and net odds b. The result is negative when the bet has no edge.
func Kelly(p, b float64) float64 {
	if b <= 0 {
		return 0
	}
	return (p*(b+1) - 1) / b
}
