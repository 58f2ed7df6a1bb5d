package backtest

import (
	"context"
	"fmt"
	"strings"
)

// Report combines a full replay with its Monte Carlo and walk-forward views
type Report struct {
	Metrics     Metrics            `json:"metrics"`
	MonteCarlo  *MonteCarloResult  `json:"monte_carlo,omitempty"`
	WalkForward *WalkForwardResult `json:"walk_forward,omitempty"`
	Bets        []*Bet             `json:"bets"`
	State       *State             `json:"-"`
}

// Evaluate runs the whole date range, then resamples its bets and replays it
// in windows. A zero WindowDays skips the walk-forward pass and zero
// iterations skip Monte Carlo.
func (e *Engine) Evaluate(ctx context.Context, wf WalkForwardConfig) (*Report, error) {
	state, metrics, err := e.Run(ctx, e.config.Start, e.config.End)
	if err != nil {
		return nil, err
	}
	report := &Report{Metrics: metrics, Bets: state.Bets, State: state}

	if e.config.MonteCarloIterations > 0 && len(state.Bets) > 0 {
		mc, err := RunMonteCarlo(ctx, state.Bets, MonteCarloConfig{
			Iterations:      e.config.MonteCarloIterations,
			Seed:            e.config.Seed,
			InitialBankroll: e.config.InitialBankroll,
		})
		if err != nil {
			return nil, err
		}
		report.MonteCarlo = &mc
	}

	if wf.WindowDays > 0 {
		result, err := RunWalkForward(ctx, e, wf)
		if err != nil {
			return nil, err
		}
		report.WalkForward = &result
	}
	return report, nil
}

// Summary formats the headline figures for a terminal
func (r *Report) Summary() string {
	m := r.Metrics
	var b strings.Builder
	b.WriteString("Backtest Report\n")
	b.WriteString("===============\n")
	fmt.Fprintf(&b, "Period:        %s to %s\n", m.Start.Format("2006-01-02"), m.End.Format("2006-01-02"))
	fmt.Fprintf(&b, "Plays:         %d (%d-%d-%d), %d passed, %d skipped\n", m.TotalBets, m.Wins, m.Losses, m.Pushes, m.Passed, m.Skipped)
	fmt.Fprintf(&b, "ATS Win Rate:  %.2f%%\n", m.ATSWinRate*100)
	fmt.Fprintf(&b, "ROI:           %.2f%%\n", m.ROI*100)
	fmt.Fprintf(&b, "Total Return:  %.2f%%\n", m.TotalReturn*100)
	fmt.Fprintf(&b, "Max Drawdown:  %.2f%%\n", m.MaxDrawdown*100)
	fmt.Fprintf(&b, "Sharpe Ratio:  %.2f\n", m.SharpeRatio)
	fmt.Fprintf(&b, "Average CLV:   %+.2f pts\n", m.AverageCLV)
	if r.MonteCarlo != nil {
		fmt.Fprintf(&b, "P(profit):     %.2f%%\n", r.MonteCarlo.ProbabilityOfProfit*100)
		fmt.Fprintf(&b, "P(ruin):       %.2f%%\n", r.MonteCarlo.ProbabilityOfRuin*100)
	}
	if r.WalkForward != nil {
		fmt.Fprintf(&b, "Consistency:   %.2f%% of %d windows\n", r.WalkForward.ConsistencyScore*100, len(r.WalkForward.Windows))
	}
	return b.String()
}
