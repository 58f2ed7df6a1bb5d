package backtest

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"
	"time"
)

// EquityPoint is the bankroll after one settlement
type EquityPoint struct {
	Time     time.Time `json:"time"`
	Value    float64   `json:"value"`
	Drawdown float64   `json:"drawdown"`
	PnL      float64   `json:"pnl"`
}

// EquityCurve is the bankroll over a replay, one point per settled bet
type EquityCurve []EquityPoint

// Returns are the per-settlement returns on the running bankroll
func (e EquityCurve) Returns() []float64 {
	if len(e) < 2 {
		return []float64{}
	}
	returns := make([]float64, 0, len(e)-1)
	for i := 1; i < len(e); i++ {
		prev := e[i-1].Value
		if prev == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, (e[i].Value-prev)/prev)
	}
	return returns
}

// Volatility is the standard deviation of returns
func (e EquityCurve) Volatility() float64 {
	return stddev(e.Returns())
}

// MaxDrawdown is the largest peak-to-trough fraction along the curve
func (e EquityCurve) MaxDrawdown() float64 {
	maxDD, peak := 0.0, 0.0
	for _, p := range e {
		if p.Value > peak {
			peak = p.Value
		}
		if peak == 0 {
			continue
		}
		if dd := (peak - p.Value) / peak; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// WriteCSV writes the curve with a header row
func (e EquityCurve) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"time", "value", "drawdown", "pnl"}); err != nil {
		return err
	}
	for _, p := range e {
		row := []string{
			p.Time.Format(time.RFC3339),
			strconv.FormatFloat(p.Value, 'f', 2, 64),
			strconv.FormatFloat(p.Drawdown, 'f', 6, 64),
			strconv.FormatFloat(p.PnL, 'f', 2, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := average(values)
	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	return math.Sqrt(variance / float64(len(values)))
}
