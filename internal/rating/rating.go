// Package rating maintains team power ratings through a single recurrence.
package rating

// Recurrence weights. They sum to 1.0.
const (
	PriorWeight       = 0.90
	PerformanceWeight = 0.10
)

// DefaultHomeFieldAdvantage is the home-field constant in points
const DefaultHomeFieldAdvantage = 2.0

// Location is where a team played relative to the venue
type Location int

const (
	Home Location = iota
	Away
	Neutral
)

// String returns the location name
func (l Location) String() string {
	switch l {
	case Home:
		return "home"
	case Away:
		return "away"
	default:
		return "neutral"
	}
}

// homeFieldTerm removes the home edge already embedded in the raw margin
func homeFieldTerm(loc Location, hfa float64) float64 {
	switch loc {
	case Home:
		return -hfa
	case Away:
		return hfa
	default:
		return 0
	}
}

// TruePerformance is the team's performance in rating points for one game.
// margin and injuryDiff are from the team's own perspective.
func TruePerformance(margin, opponentRating, injuryDiff float64, loc Location, hfa float64) float64 {
	return margin + opponentRating + injuryDiff + homeFieldTerm(loc, hfa)
}

// UpdateRating applies new = 0.90*old + 0.10*true_performance
func UpdateRating(old, opponentRating, margin, injuryDiff float64, loc Location, hfa float64) float64 {
	return PriorWeight*old + PerformanceWeight*TruePerformance(margin, opponentRating, injuryDiff, loc, hfa)
}
