package edge

import (
	"math"
	"sort"
	"time"

	"github.com/yourusername/gridiron-edge/internal/models"
)

// ConsensusRule selects how multiple book lines collapse into one
type ConsensusRule string

const (
	// RuleSharp uses the first configured sharp book that posted a line, else the median
	RuleSharp ConsensusRule = "sharp"
	// RuleMedian uses the median across books
	RuleMedian ConsensusRule = "median"
)

// Consensus is the market line used for differencing
type Consensus struct {
	MarketType models.MarketType
	Value      float64
	Price      int
	Books      int
	// SourceBook is set when a single sharp book defined the line
	SourceBook string
	ObservedAt time.Time
}

// LatestByBook keeps the most recent observation per book for one market type,
// ignoring observations after asOf. The result is ordered by book id.
func LatestByBook(lines []*models.MarketLine, market models.MarketType, asOf time.Time) []*models.MarketLine {
	latest := make(map[string]*models.MarketLine)
	for _, l := range lines {
		if l == nil || l.MarketType != market || l.ObservedAt.After(asOf) {
			continue
		}
		cur, ok := latest[l.BookID]
		if !ok || l.ObservedAt.After(cur.ObservedAt) {
			latest[l.BookID] = l
		}
	}

	out := make([]*models.MarketLine, 0, len(latest))
	for _, l := range latest {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BookID < out[j].BookID })
	return out
}

// consensus collapses the latest lines per book into one value
func consensus(latest []*models.MarketLine, rule ConsensusRule, sharpBooks []string) (Consensus, bool) {
	if len(latest) == 0 {
		return Consensus{}, false
	}

	if rule == RuleSharp {
		byBook := make(map[string]*models.MarketLine, len(latest))
		for _, l := range latest {
			byBook[l.BookID] = l
		}
		for _, book := range sharpBooks {
			if l, ok := byBook[book]; ok {
				return Consensus{
					MarketType: l.MarketType,
					Value:      l.Value,
					Price:      l.PriceOrDefault(),
					Books:      1,
					SourceBook: book,
					ObservedAt: l.ObservedAt,
				}, true
			}
		}
	}

	return medianConsensus(latest), true
}

// medianConsensus takes the median value; its price comes from the book whose
// line sits closest to the median
func medianConsensus(latest []*models.MarketLine) Consensus {
	values := make([]float64, len(latest))
	var observed time.Time
	for i, l := range latest {
		values[i] = l.Value
		if l.ObservedAt.After(observed) {
			observed = l.ObservedAt
		}
	}
	med := median(values)

	closest := latest[0]
	for _, l := range latest[1:] {
		if math.Abs(l.Value-med) < math.Abs(closest.Value-med) {
			closest = l
		}
	}

	return Consensus{
		MarketType: closest.MarketType,
		Value:      med,
		Price:      closest.PriceOrDefault(),
		Books:      len(latest),
		ObservedAt: observed,
	}
}

// splitByClass returns the median line of sharp books and of public books
func splitByClass(latest []*models.MarketLine) (sharp, public float64, ok bool) {
	var s, p []float64
	for _, l := range latest {
		if l.IsSharp() {
			s = append(s, l.Value)
		} else {
			p = append(p, l.Value)
		}
	}
	if len(s) == 0 || len(p) == 0 {
		return 0, 0, false
	}
	return median(s), median(p), true
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
