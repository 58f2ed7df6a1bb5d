package calibration

import (
	"math"

	"github.com/yourusername/gridiron-edge/internal/models"
	"github.com/yourusername/gridiron-edge/internal/oddsmath"
)

// Accuracy counts directional hits of a signal against realized results
type Accuracy struct {
	Samples int     `json:"samples"`
	Hits    int     `json:"hits"`
	Rate    float64 `json:"rate"`
}

func (a *Accuracy) add(hit bool) {
	a.Samples++
	if hit {
		a.Hits++
	}
	a.Rate = float64(a.Hits) / float64(a.Samples)
}

// Metrics are the aggregate calibration measures over resolved predictions
type Metrics struct {
	Predictions       int                            `json:"predictions"`
	Wins              int                            `json:"wins"`
	Losses            int                            `json:"losses"`
	Pushes            int                            `json:"pushes"`
	EdgeRMSE          float64                        `json:"edge_rmse"`
	ATSWinRate        float64                        `json:"ats_win_rate"`
	UnitsStaked       float64                        `json:"units_staked"`
	UnitsProfit       float64                        `json:"units_profit"`
	ROIPerUnit        float64                        `json:"roi_per_unit"`
	MeanCLV           float64                        `json:"mean_clv"`
	SourceAccuracy    map[string]*Accuracy           `json:"source_accuracy"`
	EventTypeAccuracy map[models.EventType]*Accuracy `json:"event_type_accuracy"`
}

// CalculateMetrics aggregates resolved predictions. Pushes are excluded from the
// ATS rate but their stakes count as staked.
func CalculateMetrics(resolved []models.ResolvedPrediction) Metrics {
	m := Metrics{
		SourceAccuracy:    make(map[string]*Accuracy),
		EventTypeAccuracy: make(map[models.EventType]*Accuracy),
	}

	var sqErr, clv float64
	for _, r := range resolved {
		if r.Prediction == nil || r.Outcome == nil {
			continue
		}
		p, o := r.Prediction, r.Outcome
		m.Predictions++

		diff := p.ModelLine - o.ActualMargin
		sqErr += diff * diff
		clv += o.ClosingLineValue

		stake := p.StakeFraction
		m.UnitsStaked += stake
		switch o.Result {
		case models.ResultWin:
			m.Wins++
			m.UnitsProfit += stake * netOdds(p.Price)
		case models.ResultLoss:
			m.Losses++
			m.UnitsProfit -= stake
		case models.ResultPush:
			m.Pushes++
		}

		deviation := RealizedDeviation(p, o)
		for _, c := range p.Contributions {
			hit, ok := DirectionalHit(c.Points, deviation)
			if !ok {
				continue
			}
			accuracyFor(m.SourceAccuracy, c.SourceID).add(hit)
			eventAccuracyFor(m.EventTypeAccuracy, c.EventType).add(hit)
		}
	}

	if m.Predictions == 0 {
		return m
	}
	m.EdgeRMSE = math.Sqrt(sqErr / float64(m.Predictions))
	m.MeanCLV = clv / float64(m.Predictions)
	if decided := m.Wins + m.Losses; decided > 0 {
		m.ATSWinRate = float64(m.Wins) / float64(decided)
	}
	if m.UnitsStaked > 0 {
		m.ROIPerUnit = m.UnitsProfit / m.UnitsStaked
	}
	return m
}

// RealizedDeviation is how far the result landed from the market line, in the
// same frame as the contributions: home margin for spreads, points for totals
func RealizedDeviation(p *models.PredictionRecord, o *models.OutcomeRecord) float64 {
	return o.ActualMargin - p.MarketLine
}

// DirectionalHit reports whether a signed contribution pointed the way the
// result deviated from the market. ok is false when either side is zero.
func DirectionalHit(points, deviation float64) (hit bool, ok bool) {
	if points == 0 || deviation == 0 {
		return false, false
	}
	return math.Signbit(points) == math.Signbit(deviation), true
}

func netOdds(price int) float64 {
	if price == 0 {
		price = models.DefaultPrice
	}
	b, err := oddsmath.NetOdds(price)
	if err != nil {
		return 0
	}
	return b
}

func accuracyFor(m map[string]*Accuracy, key string) *Accuracy {
	a, ok := m[key]
	if !ok {
		a = &Accuracy{}
		m[key] = a
	}
	return a
}

func eventAccuracyFor(m map[models.EventType]*Accuracy, key models.EventType) *Accuracy {
	a, ok := m[key]
	if !ok {
		a = &Accuracy{}
		m[key] = a
	}
	return a
}
