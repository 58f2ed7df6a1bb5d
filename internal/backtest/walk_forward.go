package backtest

import (
	"context"
	"fmt"
	"time"
)

// WalkForwardConfig configures rolling out-of-sample windows. Ratings are read
// as of each decision time, so every window is out of sample.
type WalkForwardConfig struct {
	WindowDays int
	StepDays   int
	// MinBets drops windows with too few plays to judge
	MinBets int
}

// WalkForwardWindow is one replayed window
type WalkForwardWindow struct {
	WindowID int       `json:"window_id"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Metrics  Metrics   `json:"metrics"`
}

// WalkForwardResult aggregates the windows of a walk-forward run
type WalkForwardResult struct {
	Windows           []WalkForwardWindow `json:"windows"`
	AggregatedMetrics Metrics             `json:"aggregated_metrics"`
	ConsistencyScore  float64             `json:"consistency_score"`
}

// RunWalkForward replays consecutive windows of the engine's date range, each
// from the initial bankroll
func RunWalkForward(ctx context.Context, engine *Engine, cfg WalkForwardConfig) (WalkForwardResult, error) {
	if engine == nil {
		return WalkForwardResult{}, fmt.Errorf("engine is required")
	}
	if cfg.WindowDays <= 0 {
		return WalkForwardResult{}, fmt.Errorf("window days must be positive")
	}
	if cfg.StepDays <= 0 {
		cfg.StepDays = cfg.WindowDays
	}

	start, end := engine.Config().Start, engine.Config().End
	var windows []WalkForwardWindow
	windowID := 0
	for current := start; current.Before(end); current = current.AddDate(0, 0, cfg.StepDays) {
		windowEnd := current.AddDate(0, 0, cfg.WindowDays)
		if windowEnd.After(end) {
			windowEnd = end
		}

		windowID++
		_, metrics, err := engine.Run(ctx, current, windowEnd)
		if err != nil {
			return WalkForwardResult{}, err
		}
		if metrics.TotalBets > 0 && metrics.TotalBets >= cfg.MinBets {
			windows = append(windows, WalkForwardWindow{
				WindowID: windowID,
				Start:    current,
				End:      windowEnd,
				Metrics:  metrics,
			})
		}
		if !windowEnd.Before(end) {
			break
		}
	}

	return WalkForwardResult{
		Windows:           windows,
		AggregatedMetrics: aggregateWindows(windows),
		ConsistencyScore:  CalculateConsistency(windows),
	}, nil
}

// CalculateConsistency is the share of windows with a positive return
func CalculateConsistency(windows []WalkForwardWindow) float64 {
	if len(windows) == 0 {
		return 0
	}
	profitable := 0
	for _, w := range windows {
		if w.Metrics.TotalReturn > 0 {
			profitable++
		}
	}
	return float64(profitable) / float64(len(windows))
}

// aggregateWindows averages per-window figures
func aggregateWindows(windows []WalkForwardWindow) Metrics {
	if len(windows) == 0 {
		return Metrics{}
	}
	agg := Metrics{Start: windows[0].Start, End: windows[len(windows)-1].End}
	for _, w := range windows {
		agg.TotalReturn += w.Metrics.TotalReturn
		agg.SharpeRatio += w.Metrics.SharpeRatio
		agg.MaxDrawdown += w.Metrics.MaxDrawdown
		agg.ATSWinRate += w.Metrics.ATSWinRate
		agg.ROI += w.Metrics.ROI
		agg.AverageCLV += w.Metrics.AverageCLV
		agg.TotalBets += w.Metrics.TotalBets
	}
	n := float64(len(windows))
	agg.TotalReturn /= n
	agg.SharpeRatio /= n
	agg.MaxDrawdown /= n
	agg.ATSWinRate /= n
	agg.ROI /= n
	agg.AverageCLV /= n
	return agg
}
