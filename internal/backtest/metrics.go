package backtest

import (
	"math"
	"sort"
	"time"

	"github.com/yourusername/gridiron-edge/internal/models"
)

// Metrics summarises a replay
type Metrics struct {
	TotalReturn   float64 `json:"total_return"`
	CAGR          float64 `json:"cagr"`
	MaxDrawdown   float64 `json:"max_drawdown"`
	SharpeRatio   float64 `json:"sharpe_ratio"`
	SortinoRatio  float64 `json:"sortino_ratio"`
	CalmarRatio   float64 `json:"calmar_ratio"`
	ValueAtRisk95 float64 `json:"var_95"`
	ValueAtRisk99 float64 `json:"var_99"`

	TotalBets    int     `json:"total_bets"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	Pushes       int     `json:"pushes"`
	Passed       int     `json:"passed"`
	Skipped      int     `json:"skipped"`
	ATSWinRate   float64 `json:"ats_win_rate"`
	Staked       float64 `json:"staked"`
	NetProfit    float64 `json:"net_profit"`
	ROI          float64 `json:"roi"`
	ProfitFactor float64 `json:"profit_factor"`
	AverageWin   float64 `json:"average_win"`
	AverageLoss  float64 `json:"average_loss"`
	Expectancy   float64 `json:"expectancy"`
	LargestWin   float64 `json:"largest_win"`
	LargestLoss  float64 `json:"largest_loss"`
	AverageEdge  float64 `json:"average_edge"`
	AverageCLV   float64 `json:"average_clv"`

	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Days  int       `json:"days"`
}

// CalculateMetrics derives metrics from a finished replay over [start, end]
func CalculateMetrics(state *State, start, end time.Time, riskFreeRate float64) Metrics {
	m := Metrics{
		Start: start,
		End:   end,
		Days:  int(end.Sub(start).Hours()/24) + 1,
	}
	if state == nil || len(state.EquityCurve) == 0 {
		return m
	}
	m.Passed = state.Passed
	m.Skipped = state.Skipped

	initial := state.EquityCurve[0].Value
	final := state.EquityCurve[len(state.EquityCurve)-1].Value
	if initial > 0 {
		m.TotalReturn = (final - initial) / initial
		m.CAGR = calculateCAGR(initial, final, m.Days)
	}

	m.MaxDrawdown = state.EquityCurve.MaxDrawdown()
	returns := state.EquityCurve.Returns()
	periods := periodsPerYear(len(returns), m.Days)
	m.SharpeRatio = calculateSharpeRatio(returns, riskFreeRate, periods)
	m.SortinoRatio = calculateSortinoRatio(returns, riskFreeRate, periods)
	if m.MaxDrawdown > 0 {
		m.CalmarRatio = m.CAGR / m.MaxDrawdown
	}
	m.ValueAtRisk95 = calculateVaR(returns, 0.95)
	m.ValueAtRisk99 = calculateVaR(returns, 0.99)

	m.TotalBets = len(state.Bets)
	grossProfit, grossLoss := 0.0, 0.0
	edgeSum, clvSum := 0.0, 0.0
	for _, b := range state.Bets {
		switch b.Result {
		case models.ResultWin:
			m.Wins++
		case models.ResultLoss:
			m.Losses++
		case models.ResultPush:
			m.Pushes++
		}
		if b.ProfitLoss > 0 {
			grossProfit += b.ProfitLoss
			m.LargestWin = math.Max(m.LargestWin, b.ProfitLoss)
		} else if b.ProfitLoss < 0 {
			grossLoss += -b.ProfitLoss
			m.LargestLoss = math.Min(m.LargestLoss, b.ProfitLoss)
		}
		edgeSum += math.Abs(b.Edge)
		clvSum += b.CLV
	}

	if decided := m.Wins + m.Losses; decided > 0 {
		m.ATSWinRate = float64(m.Wins) / float64(decided)
	}
	if m.Wins > 0 {
		m.AverageWin = grossProfit / float64(m.Wins)
	}
	if m.Losses > 0 {
		m.AverageLoss = -grossLoss / float64(m.Losses)
	}
	m.NetProfit = grossProfit - grossLoss
	m.Staked = state.Staked()
	if m.Staked > 0 {
		m.ROI = m.NetProfit / m.Staked
	}
	m.ProfitFactor = profitFactor(grossProfit, grossLoss)
	if m.TotalBets > 0 {
		m.Expectancy = m.NetProfit / float64(m.TotalBets)
		m.AverageEdge = edgeSum / float64(m.TotalBets)
		m.AverageCLV = clvSum / float64(m.TotalBets)
	}
	return m
}

// periodsPerYear scales per-bet ratios to a year of betting at the observed rate
func periodsPerYear(n, days int) float64 {
	if n == 0 || days <= 0 {
		return 0
	}
	return float64(n) * 365.0 / float64(days)
}

func calculateSharpeRatio(returns []float64, riskFreeRate, periods float64) float64 {
	if len(returns) == 0 || periods <= 0 {
		return 0
	}
	std := stddev(returns)
	if std == 0 {
		return 0
	}
	return (average(returns) - riskFreeRate/periods) / std * math.Sqrt(periods)
}

func calculateSortinoRatio(returns []float64, riskFreeRate, periods float64) float64 {
	if len(returns) == 0 || periods <= 0 {
		return 0
	}
	negatives := make([]float64, 0, len(returns))
	for _, r := range returns {
		if r < 0 {
			negatives = append(negatives, r)
		}
	}
	std := stddev(negatives)
	if std == 0 {
		return 0
	}
	return (average(returns) - riskFreeRate/periods) / std * math.Sqrt(periods)
}

func calculateCAGR(initial, final float64, days int) float64 {
	if initial <= 0 || final <= 0 || days <= 0 {
		return 0
	}
	years := float64(days) / 365.0
	return math.Pow(final/initial, 1.0/years) - 1.0
}

// calculateVaR is the return at the (1-level) quantile
func calculateVaR(returns []float64, level float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	sorted := append([]float64(nil), returns...)
	sort.Float64s(sorted)
	idx := int(math.Floor((1.0 - level) * float64(len(sorted))))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func profitFactor(grossProfit, grossLoss float64) float64 {
	if grossLoss == 0 {
		if grossProfit > 0 {
			return 999
		}
		return 0
	}
	return grossProfit / grossLoss
}
