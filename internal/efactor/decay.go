// Package efactor turns situational events into decayed, capped point
// adjustments per team.
package efactor

import (
	"math"
	"time"

	"github.com/yourusername/gridiron-edge/internal/models"
)

const day = 24 * time.Hour

// DecayParams is the (half-life, floor, max age) triple of one event type
type DecayParams struct {
	HalfLife time.Duration
	Floor    float64
	MaxAge   time.Duration
}

// DecayTable maps each event type to its decay parameters
type DecayTable map[models.EventType]DecayParams

// DefaultDecayTable returns the baseline parameters. Long-lived roster events
// keep a high floor; rest and travel effects are gone within a week.
func DefaultDecayTable() DecayTable {
	return DecayTable{
		models.EventKeyPlayerOut:        {HalfLife: 21 * day, Floor: 0.60, MaxAge: 120 * day},
		models.EventPositionGroupInjury: {HalfLife: 10 * day, Floor: 0.30, MaxAge: 42 * day},
		models.EventCoachingChange:      {HalfLife: 28 * day, Floor: 0.40, MaxAge: 180 * day},
		models.EventTrade:               {HalfLife: 14 * day, Floor: 0.25, MaxAge: 60 * day},
		models.EventRelease:             {HalfLife: 7 * day, Floor: 0.10, MaxAge: 28 * day},
		models.EventSigning:             {HalfLife: 14 * day, Floor: 0.20, MaxAge: 60 * day},
		models.EventPlayoffImplication:  {HalfLife: 5 * day, Floor: 0.50, MaxAge: 14 * day},
		models.EventRestAdvantage:       {HalfLife: 2 * day, Floor: 0, MaxAge: 7 * day},
		models.EventTravelFatigue:       {HalfLife: 36 * time.Hour, Floor: 0, MaxAge: 5 * day},
		models.EventNewsSentiment:       {HalfLife: 24 * time.Hour, Floor: 0, MaxAge: 3 * day},
	}
}

// WithOverrides returns a copy of the table with the given entries replaced
func (t DecayTable) WithOverrides(overrides map[models.EventType]DecayParams) DecayTable {
	out := make(DecayTable, len(t)+len(overrides))
	for k, v := range t {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// Fraction returns the share of the original magnitude still in effect at age:
// max(0.5^(age/halfLife), floor) up to and including MaxAge, zero after it.
// A non-positive age is treated as fresh.
func Fraction(age time.Duration, p DecayParams) float64 {
	if age > p.MaxAge {
		return 0
	}
	if age <= 0 {
		return 1
	}
	if p.HalfLife <= 0 {
		return p.Floor
	}
	return math.Max(math.Pow(0.5, float64(age)/float64(p.HalfLife)), p.Floor)
}

// Impact returns the current signed impact of magnitude m at age
func Impact(m float64, age time.Duration, p DecayParams) float64 {
	return m * Fraction(age, p)
}
