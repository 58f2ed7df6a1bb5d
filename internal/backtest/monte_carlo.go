package backtest

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/yourusername/gridiron-edge/internal/oddsmath"
)

// DefaultRuinFraction is the share of the starting bankroll whose loss counts as ruin
const DefaultRuinFraction = 0.5

// MonteCarloConfig configures the resampling of a replay's bets
type MonteCarloConfig struct {
	Iterations      int
	Seed            int64
	InitialBankroll float64
	RuinFraction    float64
}

// MonteCarloResult summarises the simulated final bankrolls
type MonteCarloResult struct {
	Iterations          int                `json:"iterations"`
	MeanReturn          float64            `json:"mean_return"`
	StdReturn           float64            `json:"std_return"`
	VaR95               float64            `json:"var_95"`
	VaR99               float64            `json:"var_99"`
	ProbabilityOfProfit float64            `json:"probability_of_profit"`
	ProbabilityOfRuin   float64            `json:"probability_of_ruin"`
	ConfidenceIntervals map[string]float64 `json:"confidence_intervals"`
	Distribution        []float64          `json:"-"`
}

// RunMonteCarlo replays the bet sequence with outcomes drawn from each bet's
// model win probability. Stakes keep their fraction of the running bankroll;
// pushes are not simulated.
func RunMonteCarlo(ctx context.Context, bets []*Bet, cfg MonteCarloConfig) (MonteCarloResult, error) {
	if cfg.InitialBankroll <= 0 {
		return MonteCarloResult{}, fmt.Errorf("initial bankroll must be positive")
	}
	if cfg.Iterations <= 0 {
		cfg.Iterations = 1000
	}
	if cfg.RuinFraction <= 0 || cfg.RuinFraction > 1 {
		cfg.RuinFraction = DefaultRuinFraction
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	payouts := make([]float64, len(bets))
	for i, b := range bets {
		net, err := oddsmath.NetOdds(b.Price)
		if err != nil {
			return MonteCarloResult{}, fmt.Errorf("bet on %s: %w", b.GameID, err)
		}
		payouts[i] = net
	}

	rng := rand.New(rand.NewSource(seed))
	distribution := make([]float64, cfg.Iterations)
	for i := 0; i < cfg.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return MonteCarloResult{}, err
		}
		bankroll := cfg.InitialBankroll
		for j, b := range bets {
			p := b.WinProbability
			if p <= 0 {
				p = 0.5
			}
			stake := bankroll * b.StakeFraction
			if rng.Float64() < p {
				bankroll += stake * payouts[j]
			} else {
				bankroll -= stake
			}
			if bankroll <= 0 {
				bankroll = 0
				break
			}
		}
		distribution[i] = bankroll
	}

	sorted := append([]float64(nil), distribution...)
	sort.Float64s(sorted)
	mean, std := average(distribution), stddev(distribution)
	toReturn := func(v float64) float64 { return (v - cfg.InitialBankroll) / cfg.InitialBankroll }

	return MonteCarloResult{
		Iterations:          cfg.Iterations,
		MeanReturn:          toReturn(mean),
		StdReturn:           std / cfg.InitialBankroll,
		VaR95:               toReturn(percentile(sorted, 0.05)),
		VaR99:               toReturn(percentile(sorted, 0.01)),
		ProbabilityOfProfit: share(distribution, func(v float64) bool { return v > cfg.InitialBankroll }),
		ProbabilityOfRuin:   share(distribution, func(v float64) bool { return v <= cfg.InitialBankroll*(1-cfg.RuinFraction) }),
		ConfidenceIntervals: confidenceIntervals(sorted, []float64{0.9, 0.95, 0.99}),
		Distribution:        distribution,
	}, nil
}

// confidenceIntervals maps each level to the width of its central interval of
// final bankrolls
func confidenceIntervals(sorted []float64, levels []float64) map[string]float64 {
	out := make(map[string]float64, len(levels))
	for _, level := range levels {
		tail := (1.0 - level) / 2.0
		out[fmt.Sprintf("%.0f%%", level*100)] = percentile(sorted, 1.0-tail) - percentile(sorted, tail)
	}
	return out
}

// percentile expects sorted input
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Floor(p * float64(len(sorted)-1)))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func share(values []float64, pred func(float64) bool) float64 {
	if len(values) == 0 {
		return 0
	}
	n := 0
	for _, v := range values {
		if pred(v) {
			n++
		}
	}
	return float64(n) / float64(len(values))
}
