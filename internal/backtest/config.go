package backtest

import (
	"fmt"
	"time"

	"github.com/yourusername/gridiron-edge/internal/config"
)

// Config controls one historical replay
type Config struct {
	Start  time.Time
	End    time.Time
	League string
	// DecisionLead is how long before kickoff each game is evaluated
	DecisionLead         time.Duration
	InitialBankroll      float64
	MonteCarloIterations int
	// Seed makes Monte Carlo runs repeatable; zero seeds from the clock
	Seed         int64
	RiskFreeRate float64
}

// FromConfig converts the backtest section of the app config
func FromConfig(cfg *config.BacktestConfig) (Config, error) {
	if cfg == nil {
		return Config{}, fmt.Errorf("backtest config is required")
	}
	start, err := time.Parse("2006-01-02", cfg.StartDate)
	if err != nil {
		return Config{}, fmt.Errorf("invalid start date: %w", err)
	}
	end, err := time.Parse("2006-01-02", cfg.EndDate)
	if err != nil {
		return Config{}, fmt.Errorf("invalid end date: %w", err)
	}

	c := Config{
		Start:                start,
		End:                  end.Add(24*time.Hour - time.Nanosecond),
		League:               cfg.League,
		DecisionLead:         time.Duration(cfg.DecisionLeadHours) * time.Hour,
		InitialBankroll:      cfg.InitialBankroll,
		MonteCarloIterations: cfg.MonteCarloIterations,
		RiskFreeRate:         cfg.RiskFreeRate,
	}
	return c, c.Validate()
}

// Validate checks replay parameters
func (c Config) Validate() error {
	if c.Start.After(c.End) {
		return fmt.Errorf("start date must be before end date")
	}
	if c.League == "" {
		return fmt.Errorf("league is required")
	}
	if c.DecisionLead < 0 {
		return fmt.Errorf("decision lead cannot be negative")
	}
	if c.InitialBankroll <= 0 {
		return fmt.Errorf("initial bankroll must be positive")
	}
	if c.MonteCarloIterations < 0 {
		return fmt.Errorf("monte carlo iterations cannot be negative")
	}
	return nil
}
