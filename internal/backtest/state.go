package backtest

import (
	"time"

	"github.com/yourusername/gridiron-edge/internal/models"
)

// Bet is one simulated spread position and its settlement
type Bet struct {
	GameID         string                `json:"game_id"`
	Side           models.Side           `json:"side"`
	Edge           float64               `json:"edge"`
	ModelLine      float64               `json:"model_line"`
	MarketLine     float64               `json:"market_line"`
	ClosingLine    *float64              `json:"closing_line,omitempty"`
	Price          int                   `json:"price"`
	Tier           models.ConfidenceTier `json:"tier"`
	WinProbability float64               `json:"win_probability"`
	StakeFraction  float64               `json:"stake_fraction"`
	Stake          float64               `json:"stake"`
	Result         models.GameResult     `json:"result"`
	ProfitLoss     float64               `json:"profit_loss"`
	CLV            float64               `json:"clv"`
	PlacedAt       time.Time             `json:"placed_at"`
	SettledAt      time.Time             `json:"settled_at"`
}

// State tracks a replay in progress
type State struct {
	Bankroll    float64
	Peak        float64
	Bets        []*Bet
	EquityCurve EquityCurve
	DailyPnL    map[time.Time]float64
	// Passed counts games evaluated without a play, Skipped games that could
	// not be evaluated at all
	Passed  int
	Skipped int
}

// NewState starts a replay at start with the initial bankroll
func NewState(initialBankroll float64, start time.Time) *State {
	s := &State{
		Bankroll: initialBankroll,
		Peak:     initialBankroll,
		Bets:     []*Bet{},
		DailyPnL: make(map[time.Time]float64),
	}
	s.RecordEquityPoint(start, 0)
	return s
}

// Settle applies a settled bet to the bankroll and the equity curve
func (s *State) Settle(bet *Bet) {
	s.Bankroll += bet.ProfitLoss
	if s.Bankroll > s.Peak {
		s.Peak = s.Bankroll
	}
	s.Bets = append(s.Bets, bet)

	at := bet.SettledAt.UTC()
	day := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC)
	s.DailyPnL[day] += bet.ProfitLoss
	s.RecordEquityPoint(at, bet.ProfitLoss)
}

// Drawdown is the current peak-to-trough fraction
func (s *State) Drawdown() float64 {
	if s.Peak <= 0 || s.Bankroll >= s.Peak {
		return 0
	}
	return (s.Peak - s.Bankroll) / s.Peak
}

// RecordEquityPoint appends the current bankroll to the curve
func (s *State) RecordEquityPoint(t time.Time, pnl float64) {
	s.EquityCurve = append(s.EquityCurve, EquityPoint{
		Time:     t,
		Value:    s.Bankroll,
		Drawdown: s.Drawdown(),
		PnL:      pnl,
	})
}

// Staked is the total amount risked
func (s *State) Staked() float64 {
	total := 0.0
	for _, b := range s.Bets {
		total += b.Stake
	}
	return total
}
