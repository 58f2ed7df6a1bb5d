package backtest

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/gridiron-edge/internal/edge"
	"github.com/yourusername/gridiron-edge/internal/efactor"
	"github.com/yourusername/gridiron-edge/internal/models"
	"github.com/yourusername/gridiron-edge/internal/rating"
	"github.com/yourusername/gridiron-edge/internal/repository"
	"github.com/yourusername/gridiron-edge/internal/sizing"
)

var kickoff = time.Date(2024, 10, 6, 17, 0, 0, 0, time.UTC)

type fixture struct {
	engine  *Engine
	repos   *repository.Repositories
	ratings *rating.Engine
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	log := quietLogger()

	repos := repository.NewMemoryRepositories()
	ratings := rating.NewEngine(repos.Ratings, 2.0, log)
	for team, value := range map[string]float64{"KC": 10, "DEN": 3, "BUF": 6, "MIA": 5} {
		require.NoError(t, ratings.Seed(ctx, team, "nfl", value))
	}

	// favourite covers: model 9 against KC -3, closes at -4.5
	storeGame(t, repos, completedGame("2024-W5-DEN-KC", "KC", "DEN", kickoff, 24, 17),
		spreadLine("2024-W5-DEN-KC", -3, kickoff.Add(-2*time.Hour)),
		spreadLine("2024-W5-DEN-KC", -4.5, kickoff.Add(-10*time.Minute)))
	// model -5 against DEN +4.5: no play
	storeGame(t, repos, completedGame("2024-W6-KC-DEN", "DEN", "KC", kickoff.AddDate(0, 0, 7), 13, 20),
		spreadLine("2024-W6-KC-DEN", 4.5, kickoff.AddDate(0, 0, 7).Add(-2*time.Hour)))
	// unrated team
	storeGame(t, repos, completedGame("2024-W6-LV-KC", "KC", "LV", kickoff.AddDate(0, 0, 7), 27, 20),
		spreadLine("2024-W6-LV-KC", -9, kickoff.AddDate(0, 0, 7).Add(-2*time.Hour)))
	// no lines
	storeGame(t, repos, completedGame("2024-W7-MIA-BUF", "BUF", "MIA", kickoff.AddDate(0, 0, 14), 30, 10))
	// model 1 against MIA +3: underdog, lands on the number
	storeGame(t, repos, completedGame("2024-W8-BUF-MIA", "MIA", "BUF", kickoff.AddDate(0, 0, 21), 20, 23),
		spreadLine("2024-W8-BUF-MIA", 3, kickoff.AddDate(0, 0, 21).Add(-2*time.Hour)))

	e, err := NewEngine(Config{
		Start:                kickoff.Add(-24 * time.Hour),
		End:                  kickoff.AddDate(0, 0, 30),
		League:               "nfl",
		DecisionLead:         time.Hour,
		InitialBankroll:      10000,
		MonteCarloIterations: 200,
		Seed:                 7,
	}, Deps{
		Repos:      repos,
		Detector:   edge.NewDetector(edge.Config{HomeFieldAdvantage: 2.0}, log),
		Aggregator: efactor.NewAggregator(efactor.DefaultConfig(), nil, log),
		Builder:    sizing.NewBuilder(nil, log),
		Risk:       sizing.DefaultRiskConfig(),
	}, log)
	require.NoError(t, err)
	return &fixture{engine: e, repos: repos, ratings: ratings}
}

func completedGame(id, home, away string, at time.Time, homeScore, awayScore int) *models.GameRecord {
	done := at.Add(3 * time.Hour)
	return &models.GameRecord{
		GameID:      id,
		League:      "nfl",
		HomeTeamID:  home,
		AwayTeamID:  away,
		Kickoff:     at,
		HomeScore:   &homeScore,
		AwayScore:   &awayScore,
		CompletedAt: &done,
	}
}

func spreadLine(gameID string, value float64, at time.Time) *models.MarketLine {
	return &models.MarketLine{
		GameID:     gameID,
		BookID:     "pinnacle",
		MarketType: models.MarketTypeSpread,
		Value:      value,
		Price:      -110,
		ObservedAt: at,
		BookClass:  models.BookClassSharp,
	}
}

func storeGame(t *testing.T, repos *repository.Repositories, g *models.GameRecord, lines ...*models.MarketLine) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, repos.Games.Upsert(ctx, g))
	if len(lines) > 0 {
		require.NoError(t, repos.Lines.InsertBatch(ctx, lines))
	}
}

func TestHistoricalReplay(t *testing.T) {
	f := newFixture(t)
	cfg := f.engine.Config()

	state, err := f.engine.HistoricalReplay(context.Background(), cfg.Start, cfg.End)
	require.NoError(t, err)

	require.Len(t, state.Bets, 2)
	assert.Equal(t, 1, state.Passed)
	assert.Equal(t, 2, state.Skipped)

	first := state.Bets[0]
	assert.Equal(t, "2024-W5-DEN-KC", first.GameID)
	assert.Equal(t, models.SideFavorite, first.Side)
	assert.InDelta(t, 6.0, first.Edge, 1e-9)
	assert.InDelta(t, 300.0, first.Stake, 1e-9)
	assert.Equal(t, models.ResultWin, first.Result)
	assert.InDelta(t, 300*100.0/110.0, first.ProfitLoss, 1e-6)
	require.NotNil(t, first.ClosingLine)
	assert.InDelta(t, 4.5, *first.ClosingLine, 1e-9)
	assert.InDelta(t, 1.5, first.CLV, 1e-9)
	assert.Equal(t, kickoff.Add(-time.Hour), first.PlacedAt)

	second := state.Bets[1]
	assert.Equal(t, "2024-W8-BUF-MIA", second.GameID)
	assert.Equal(t, models.SideUnderdog, second.Side)
	assert.Equal(t, models.ResultPush, second.Result)
	assert.Zero(t, second.ProfitLoss)

	assert.InDelta(t, 10000+300*100.0/110.0, state.Bankroll, 1e-6)
	assert.Len(t, state.EquityCurve, 3)
}

func TestRunComputesMetrics(t *testing.T) {
	f := newFixture(t)
	cfg := f.engine.Config()

	_, metrics, err := f.engine.Run(context.Background(), cfg.Start, cfg.End)
	require.NoError(t, err)

	assert.Equal(t, 2, metrics.TotalBets)
	assert.Equal(t, 1, metrics.Wins)
	assert.Equal(t, 0, metrics.Losses)
	assert.Equal(t, 1, metrics.Pushes)
	assert.Equal(t, 1, metrics.Passed)
	assert.Equal(t, 2, metrics.Skipped)
	assert.InDelta(t, 1.0, metrics.ATSWinRate, 1e-9)
	assert.InDelta(t, 300*100.0/110.0, metrics.NetProfit, 1e-6)
	assert.Greater(t, metrics.TotalReturn, 0.0)
	assert.Zero(t, metrics.MaxDrawdown)
}

func TestRatingsArePointInTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	g, err := f.repos.Games.GetByID(ctx, "2024-W5-DEN-KC")
	require.NoError(t, err)
	update, err := f.ratings.ApplyGame(ctx, g)
	require.NoError(t, err)

	before, err := f.engine.ratingAt(ctx, "KC", kickoff)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, before, 1e-9)

	after, err := f.engine.ratingAt(ctx, "KC", kickoff.Add(4*time.Hour))
	require.NoError(t, err)
	assert.InDelta(t, update.Home.New, after, 1e-9)

	_, err = f.engine.ratingAt(ctx, "LV", kickoff)
	assert.ErrorIs(t, err, models.ErrDataUnavailable)
}

func TestHistoricalReplayHonoursCancellation(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.engine.HistoricalReplay(ctx, f.engine.Config().Start, f.engine.Config().End)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewEngineValidates(t *testing.T) {
	log := quietLogger()
	valid := Config{Start: kickoff, End: kickoff.AddDate(0, 1, 0), League: "nfl", InitialBankroll: 100}

	_, err := NewEngine(valid, Deps{}, log)
	assert.Error(t, err)

	bad := valid
	bad.InitialBankroll = 0
	_, err = NewEngine(bad, Deps{}, log)
	assert.Error(t, err)
}

func TestEvaluate(t *testing.T) {
	f := newFixture(t)

	report, err := f.engine.Evaluate(context.Background(), WalkForwardConfig{WindowDays: 7, StepDays: 7, MinBets: 1})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Metrics.TotalBets)
	require.NotNil(t, report.MonteCarlo)
	assert.Equal(t, 200, report.MonteCarlo.Iterations)
	require.NotNil(t, report.WalkForward)
	assert.Len(t, report.WalkForward.Windows, 2)
	assert.Contains(t, report.Summary(), "ATS Win Rate:  100.00%")
}
