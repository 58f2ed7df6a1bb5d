// Package backtest replays completed games through the edge and sizing
// pipeline, using only ratings, lines and events known at decision time.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/gridiron-edge/internal/acquisition"
	"github.com/yourusername/gridiron-edge/internal/edge"
	"github.com/yourusername/gridiron-edge/internal/efactor"
	"github.com/yourusername/gridiron-edge/internal/models"
	"github.com/yourusername/gridiron-edge/internal/repository"
	"github.com/yourusername/gridiron-edge/internal/settlement"
	"github.com/yourusername/gridiron-edge/internal/sizing"
)

// Deps are the pipeline pieces a replay runs through
type Deps struct {
	Repos      *repository.Repositories
	Detector   *edge.Detector
	Aggregator *efactor.Aggregator
	Builder    *sizing.Builder
	Risk       sizing.RiskConfig
}

// Engine orchestrates backtest runs
type Engine struct {
	config     Config
	repos      *repository.Repositories
	detector   *edge.Detector
	aggregator *efactor.Aggregator
	builder    *sizing.Builder
	risk       sizing.RiskConfig
	logger     *logrus.Logger
}

// NewEngine creates a backtest engine
func NewEngine(cfg Config, deps Deps, logger *logrus.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Repos == nil || deps.Detector == nil || deps.Aggregator == nil || deps.Builder == nil {
		return nil, fmt.Errorf("repositories, detector, aggregator and builder are required")
	}
	if err := deps.Risk.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{
		config:     cfg,
		repos:      deps.Repos,
		detector:   deps.Detector,
		aggregator: deps.Aggregator,
		builder:    deps.Builder,
		risk:       deps.Risk,
		logger:     logger,
	}, nil
}

// Config returns the backtest configuration
func (e *Engine) Config() Config {
	return e.config
}

// Run replays [start, end] and computes its metrics
func (e *Engine) Run(ctx context.Context, start, end time.Time) (*State, Metrics, error) {
	e.logger.WithFields(logrus.Fields{"league": e.config.League, "start": start, "end": end}).Info("Starting backtest run")
	state, err := e.HistoricalReplay(ctx, start, end)
	if err != nil {
		return nil, Metrics{}, err
	}
	metrics := CalculateMetrics(state, start, end, e.config.RiskFreeRate)
	e.logger.WithFields(logrus.Fields{
		"bets":         metrics.TotalBets,
		"passed":       metrics.Passed,
		"skipped":      metrics.Skipped,
		"ats_win_rate": metrics.ATSWinRate,
		"roi":          metrics.ROI,
	}).Info("Backtest run complete")
	return state, metrics, nil
}

// HistoricalReplay evaluates the spread of every game completed in
// [start, end], in kickoff order, and settles each play against the final score
func (e *Engine) HistoricalReplay(ctx context.Context, start, end time.Time) (*State, error) {
	state := NewState(e.config.InitialBankroll, start)

	games, err := e.repos.Games.GetCompleted(ctx, e.config.League, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load games: %w", err)
	}
	sort.SliceStable(games, func(i, j int) bool {
		if games[i].Kickoff.Equal(games[j].Kickoff) {
			return games[i].GameID < games[j].GameID
		}
		return games[i].Kickoff.Before(games[j].Kickoff)
	})

	for _, g := range games {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if state.Bankroll <= 0 {
			e.logger.WithField("game_id", g.GameID).Warn("Bankroll exhausted, replay stopped")
			break
		}
		if err := e.processGame(ctx, g, state); err != nil {
			return nil, err
		}
	}
	return state, nil
}

func (e *Engine) processGame(ctx context.Context, g *models.GameRecord, state *State) error {
	decision := g.Kickoff.Add(-e.config.DecisionLead)
	log := e.logger.WithField("game_id", g.GameID)

	home, err := e.ratingAt(ctx, g.HomeTeamID, decision)
	if err == nil {
		var away float64
		away, err = e.ratingAt(ctx, g.AwayTeamID, decision)
		if err == nil {
			return e.evaluate(ctx, g, decision, home, away, state)
		}
	}
	if errors.Is(err, models.ErrDataUnavailable) {
		state.Skipped++
		log.WithError(err).Debug("Game skipped")
		return nil
	}
	return err
}

func (e *Engine) evaluate(ctx context.Context, g *models.GameRecord, decision time.Time, home, away float64, state *State) error {
	lines, err := e.repos.Lines.GetByGame(ctx, g.GameID)
	if err != nil {
		return fmt.Errorf("failed to load lines for %s: %w", g.GameID, err)
	}
	events, err := e.events(ctx, g, decision)
	if err != nil {
		return err
	}

	homeAdj := e.aggregator.TeamAdjustment(g.HomeTeamID, events, decision)
	awayAdj := e.aggregator.TeamAdjustment(g.AwayTeamID, events, decision)

	ev, err := e.detector.EvaluateSpread(edge.SpreadInput{
		GameID:      g.GameID,
		HomeRating:  home,
		AwayRating:  away,
		NeutralSite: g.NeutralSite,
		HomeEFactor: homeAdj.Points,
		AwayEFactor: awayAdj.Points,
	}, lines, decision, edge.Criteria{MinEdgeThreshold: e.risk.MinEdgeThreshold, KeyNumbers: e.risk.KeyNumbers})
	if errors.Is(err, models.ErrDataUnavailable) {
		state.Skipped++
		return nil
	}
	if err != nil {
		return err
	}

	bound := e.aggregator.ConfidenceBound()
	rec, err := e.builder.Build(sizing.Input{
		Evaluation:      ev,
		ConfidenceShift: math.Max(-bound, math.Min(bound, homeAdj.Confidence+awayAdj.Confidence)),
		Sources:         mergeSources(homeAdj.Sources, awayAdj.Sources),
		Bankroll:        decimal.NewFromFloat(state.Bankroll),
	}, e.risk)
	if err != nil {
		return err
	}
	if !rec.IsPlay() {
		state.Passed++
		return nil
	}

	result, err := settlement.Grade(models.MarketTypeSpread, rec.Side, rec.MarketLine, g)
	if err != nil {
		return err
	}
	stake, _ := rec.StakeAmount.Float64()
	pnl, err := settlement.Profit(result, stake, rec.Price)
	if err != nil {
		return err
	}

	bet := &Bet{
		GameID:         g.GameID,
		Side:           rec.Side,
		Edge:           rec.Edge,
		ModelLine:      rec.ModelLine,
		MarketLine:     rec.MarketLine,
		Price:          rec.Price,
		Tier:           rec.ConfidenceTier,
		WinProbability: rec.WinProbability,
		StakeFraction:  rec.StakeFraction,
		Stake:          stake,
		Result:         result,
		ProfitLoss:     pnl,
		PlacedAt:       decision,
		SettledAt:      g.CompletionTime(),
	}
	if cons, ok := e.detector.Consensus(lines, models.MarketTypeSpread, g.Kickoff); ok {
		closing := -cons.Value
		bet.ClosingLine = &closing
		bet.CLV = settlement.ClosingLineValue(models.MarketTypeSpread, rec.Side, rec.MarketLine, closing)
	}
	state.Settle(bet)
	return nil
}

// ratingAt is the latest history value recorded at or before t. The seed
// point carries no time and always qualifies.
func (e *Engine) ratingAt(ctx context.Context, teamID string, t time.Time) (float64, error) {
	history, err := e.repos.Ratings.History(ctx, teamID)
	if errors.Is(err, models.ErrNotFound) || (err == nil && len(history) == 0) {
		return 0, fmt.Errorf("no rating for %s: %w", teamID, models.ErrDataUnavailable)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load rating history for %s: %w", teamID, err)
	}

	found := false
	var value float64
	for _, p := range history {
		if p.RecordedAt.After(t) {
			continue
		}
		value, found = p.Value, true
	}
	if !found {
		return 0, fmt.Errorf("no rating for %s before %s: %w", teamID, t.Format(time.RFC3339), models.ErrDataUnavailable)
	}
	return value, nil
}

func (e *Engine) events(ctx context.Context, g *models.GameRecord, decision time.Time) ([]*models.EFactorEvent, error) {
	since := decision.Add(-acquisition.DefaultEventLookback)
	var out []*models.EFactorEvent
	for _, team := range []string{g.HomeTeamID, g.AwayTeamID} {
		events, err := e.repos.Events.GetByTeam(ctx, team, since)
		if err != nil {
			return nil, fmt.Errorf("failed to load events for %s: %w", team, err)
		}
		out = append(out, events...)
	}
	return out, nil
}

func mergeSources(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, s := range append(append([]string(nil), a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
