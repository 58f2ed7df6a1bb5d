// Package edge compares model lines against the market and signs the result
// from the favourite's perspective.
package edge

import (
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/gridiron-edge/internal/logger"
	"github.com/yourusername/gridiron-edge/internal/models"
)

// DefaultUnitsPerPoint converts percentage-style signals into points
const DefaultUnitsPerPoint = 5.0

// Config holds the detector's tunables
type Config struct {
	HomeFieldAdvantage float64
	ConsensusRule      ConsensusRule
	SharpBooks         []string
	UnitsPerPoint      float64
}

// Criteria decides whether an edge qualifies. It comes from the risk configuration.
type Criteria struct {
	MinEdgeThreshold float64
	KeyNumbers       []float64
}

// SpreadInput carries everything the spread model line is built from.
// All adjustments are in home-margin terms: positive helps the home team.
type SpreadInput struct {
	GameID          string
	HomeRating      float64
	AwayRating      float64
	NeutralSite     bool
	HomeEFactor     float64
	AwayEFactor     float64
	Situational     float64
	PercentageUnits float64
}

// Evaluation is the edge of one market
type Evaluation struct {
	GameID     string
	MarketType models.MarketType
	// ModelLine and MarketLine are home margins for spreads and points for totals
	ModelLine  float64
	MarketLine float64
	// PostedLine is the consensus line as books quote it
	PostedLine     float64
	Edge           float64
	Side           models.Side
	FavoriteIsHome bool
	Qualifies      bool
	SharpAligned   bool
	KeyNumbers     []float64
	Price          int
	Books          int
}

// Detector computes model lines and edges
type Detector struct {
	cfg Config
	log *logger.EdgeLogger
}

// NewDetector creates a detector. A non-positive UnitsPerPoint falls back to 5.
func NewDetector(cfg Config, log *logrus.Logger) *Detector {
	if cfg.UnitsPerPoint <= 0 {
		cfg.UnitsPerPoint = DefaultUnitsPerPoint
	}
	if cfg.ConsensusRule == "" {
		cfg.ConsensusRule = RuleMedian
	}
	return &Detector{cfg: cfg, log: logger.NewEdgeLogger(log)}
}

// NetAdjustment is the home-minus-away E-Factor difference plus situational
// points plus percentage units converted to points
func (d *Detector) NetAdjustment(in SpreadInput) float64 {
	return (in.HomeEFactor - in.AwayEFactor) + in.Situational + in.PercentageUnits/d.cfg.UnitsPerPoint
}

// ModelLine returns the predicted home margin. Neutral sites drop home field.
func (d *Detector) ModelLine(in SpreadInput) float64 {
	hfa := d.cfg.HomeFieldAdvantage
	if in.NeutralSite {
		hfa = 0
	}
	return (in.HomeRating - in.AwayRating) + hfa + d.NetAdjustment(in)
}

// Consensus collapses the latest line per book of one market type with the
// configured rule
func (d *Detector) Consensus(lines []*models.MarketLine, market models.MarketType, asOf time.Time) (Consensus, bool) {
	return consensus(LatestByBook(lines, market, asOf), d.cfg.ConsensusRule, d.cfg.SharpBooks)
}

// EvaluateSpread differences the model home margin against the spread consensus.
// A positive edge means the model likes the market favourite by more than the
// market does; a pick'em treats the home team as favourite.
func (d *Detector) EvaluateSpread(in SpreadInput, lines []*models.MarketLine, asOf time.Time, crit Criteria) (*Evaluation, error) {
	latest := LatestByBook(lines, models.MarketTypeSpread, asOf)
	cons, ok := consensus(latest, d.cfg.ConsensusRule, d.cfg.SharpBooks)
	if !ok {
		return nil, fmt.Errorf("no spread lines for game %s: %w", in.GameID, models.ErrDataUnavailable)
	}

	model := d.ModelLine(in)
	market := -cons.Value
	favoriteIsHome := market >= 0

	diff := model - market
	edge := diff
	if !favoriteIsHome {
		edge = -diff
	}

	ev := &Evaluation{
		GameID:         in.GameID,
		MarketType:     models.MarketTypeSpread,
		ModelLine:      model,
		MarketLine:     market,
		PostedLine:     cons.Value,
		Edge:           edge,
		Side:           sideFor(edge, models.SideFavorite, models.SideUnderdog),
		FavoriteIsHome: favoriteIsHome,
		Price:          cons.Price,
		Books:          cons.Books,
		KeyNumbers:     KeyNumbersCrossed(model, market, crit.KeyNumbers),
	}
	ev.Qualifies = math.Abs(edge) >= crit.MinEdgeThreshold

	// spread values are quoted as minus the home margin
	if sharp, public, ok := splitByClass(latest); ok {
		ev.SharpAligned = (public-sharp)*diff > 0
	}

	d.logEvaluation(ev, crit)
	return ev, nil
}

// EvaluateTotal differences a model total against the total consensus.
// A positive edge is an over, a negative edge an under.
func (d *Detector) EvaluateTotal(gameID string, modelTotal float64, lines []*models.MarketLine, asOf time.Time, crit Criteria) (*Evaluation, error) {
	latest := LatestByBook(lines, models.MarketTypeTotal, asOf)
	cons, ok := consensus(latest, d.cfg.ConsensusRule, d.cfg.SharpBooks)
	if !ok {
		return nil, fmt.Errorf("no total lines for game %s: %w", gameID, models.ErrDataUnavailable)
	}

	edge := modelTotal - cons.Value
	ev := &Evaluation{
		GameID:     gameID,
		MarketType: models.MarketTypeTotal,
		ModelLine:  modelTotal,
		MarketLine: cons.Value,
		PostedLine: cons.Value,
		Edge:       edge,
		Side:       sideFor(edge, models.SideOver, models.SideUnder),
		Price:      cons.Price,
		Books:      cons.Books,
		Qualifies:  math.Abs(edge) >= crit.MinEdgeThreshold,
	}
	if sharp, public, ok := splitByClass(latest); ok {
		ev.SharpAligned = (sharp-public)*edge > 0
	}

	d.logEvaluation(ev, crit)
	return ev, nil
}

func (d *Detector) logEvaluation(ev *Evaluation, crit Criteria) {
	if ev.Qualifies {
		d.log.LogEdgeDetected(ev.GameID, string(ev.MarketType), ev.ModelLine, ev.MarketLine, ev.Edge, ev.SharpAligned)
		return
	}
	d.log.LogNoPlay(ev.GameID, string(ev.MarketType), ev.Edge, crit.MinEdgeThreshold)
}

// KeyNumbersCrossed lists the key numbers, in either direction, lying strictly
// between two home margins
func KeyNumbersCrossed(model, market float64, keys []float64) []float64 {
	lo, hi := math.Min(model, market), math.Max(model, market)
	var crossed []float64
	for _, k := range keys {
		k = math.Abs(k)
		if (lo < k && k < hi) || (k != 0 && lo < -k && -k < hi) {
			crossed = append(crossed, k)
		}
	}
	return crossed
}

func sideFor(edge float64, positive, negative models.Side) models.Side {
	if edge < 0 {
		return negative
	}
	return positive
}
