package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/yourusername/gridiron-edge/internal/acquisition"
	"github.com/yourusername/gridiron-edge/internal/edge"
	"github.com/yourusername/gridiron-edge/internal/efactor"
	"github.com/yourusername/gridiron-edge/internal/metrics"
	"github.com/yourusername/gridiron-edge/internal/models"
	"github.com/yourusername/gridiron-edge/internal/sizing"
)

// Reasons for markets that are not evaluated
const (
	ReasonNoMarketLines    = "no_market_lines"
	ReasonNoProjectedTotal = "no_projected_total"
	ReasonMoneylineNoEdge  = "moneyline_not_edged"
	ReasonWeatherPrefix    = "weather:"
)

// GameInput is everything one evaluation pass needs. Nil Lines, Events or
// Weather are gathered through the acquirer, or read from storage when no
// acquirer is configured. AsOf pins the evaluation time.
type GameInput struct {
	Game                  *models.GameRecord
	AsOf                  time.Time
	Lines                 []*models.MarketLine
	Events                []*models.EFactorEvent
	Weather               *models.WeatherForecast
	ProjectedTotal        *float64
	SituationalAdjustment float64
	// PercentageSignals is in units; it is converted to points by the detector
	PercentageSignals float64
	// Bankroll overrides the configured bankroll when positive
	Bankroll decimal.Decimal
}

type inputs struct {
	lines    []*models.MarketLine
	events   []*models.EFactorEvent
	weather  *models.WeatherForecast
	degraded []string
}

// ComputeRecommendation evaluates every market of a game and returns one
// recommendation per market, in spread, total, moneyline order. Sub-threshold
// edges are no_play recommendations, not errors. Qualifying plays create a
// prediction unless one is already active for the game and market.
func (e *Engine) ComputeRecommendation(ctx context.Context, in GameInput, risk sizing.RiskConfig) ([]*models.BettingRecommendation, error) {
	if in.Game == nil {
		return nil, errors.New("game is required")
	}
	if err := risk.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	asOf := in.AsOf
	if asOf.IsZero() {
		asOf = e.now().UTC()
	}
	bankroll := in.Bankroll
	if !bankroll.IsPositive() {
		bankroll = e.bankroll
	}

	data, err := e.collect(ctx, in, asOf)
	if err != nil {
		return nil, err
	}

	home, err := e.ratings.Get(ctx, in.Game.HomeTeamID)
	if err != nil {
		return nil, fmt.Errorf("home rating %s: %w: %w", in.Game.HomeTeamID, models.ErrDataUnavailable, err)
	}
	away, err := e.ratings.Get(ctx, in.Game.AwayTeamID)
	if err != nil {
		return nil, fmt.Errorf("away rating %s: %w: %w", in.Game.AwayTeamID, models.ErrDataUnavailable, err)
	}

	// scores only move on first sight of an event, so re-evaluation is repeatable
	e.tracker.ObserveEvents(data.events, e.storeEvents(ctx, data.events), asOf)
	homeAdj := e.aggregator.TeamAdjustment(in.Game.HomeTeamID, data.events, asOf)
	awayAdj := e.aggregator.TeamAdjustment(in.Game.AwayTeamID, data.events, asOf)

	crit := edge.Criteria{MinEdgeThreshold: risk.MinEdgeThreshold, KeyNumbers: risk.KeyNumbers}
	shift := clampShift(homeAdj.Confidence+awayAdj.Confidence, e.aggregator.ConfidenceBound())
	sources := unionSorted(homeAdj.Sources, awayAdj.Sources)

	var recs []*models.BettingRecommendation

	// spread
	spreadIn := edge.SpreadInput{
		GameID:          in.Game.GameID,
		HomeRating:      home.Rating,
		AwayRating:      away.Rating,
		NeutralSite:     in.Game.NeutralSite,
		HomeEFactor:     homeAdj.Points,
		AwayEFactor:     awayAdj.Points,
		Situational:     in.SituationalAdjustment,
		PercentageUnits: in.PercentageSignals,
	}
	spread, err := e.evaluate(ctx, in.Game, models.MarketTypeSpread, data.degraded, bankroll, risk,
		func() (*edge.Evaluation, error) {
			return e.detector.EvaluateSpread(spreadIn, data.lines, asOf, crit)
		}, shift, sources, spreadContributions(homeAdj, awayAdj), asOf)
	if err != nil {
		return nil, err
	}
	recs = append(recs, spread)

	// total
	weather := efactor.WeatherTotalAdjustment(data.weather)
	var total *models.BettingRecommendation
	if in.ProjectedTotal == nil {
		total = noPlay(in.Game.GameID, models.MarketTypeTotal, data.degraded, ReasonNoProjectedTotal)
		if c, ok := e.detector.Consensus(data.lines, models.MarketTypeTotal, asOf); ok {
			total.MarketLine = c.Value
			total.Price = c.Price
		}
	} else {
		modelTotal := *in.ProjectedTotal + weather.TotalPoints
		total, err = e.evaluate(ctx, in.Game, models.MarketTypeTotal, data.degraded, bankroll, risk,
			func() (*edge.Evaluation, error) {
				return e.detector.EvaluateTotal(in.Game.GameID, modelTotal, data.lines, asOf, crit)
			}, shift, sources, nil, asOf)
		if err != nil {
			return nil, err
		}
	}
	for _, r := range weather.Reasons {
		total.Reasons = append(total.Reasons, ReasonWeatherPrefix+r)
	}
	recs = append(recs, total)

	// moneyline prices are carried but not edged
	if c, ok := e.detector.Consensus(data.lines, models.MarketTypeMoneyline, asOf); ok {
		ml := noPlay(in.Game.GameID, models.MarketTypeMoneyline, data.degraded, ReasonMoneylineNoEdge)
		ml.MarketLine = c.Value
		ml.Price = c.Price
		recs = append(recs, ml)
	}

	plays := 0
	for _, r := range recs {
		if r.IsPlay() {
			plays++
		}
		metrics.RecordRecommendation(string(r.MarketType), string(r.Side), string(r.ConfidenceTier), math.Abs(r.Edge), r.StakeFraction)
		e.audit.LogRecommendation(r.GameID, string(r.MarketType), string(r.Side), string(r.ConfidenceTier), r.Edge, r.StakeFraction, r.StakeAmount, r.Degraded)
	}

	elapsed := time.Since(start)
	metrics.RecordEvaluationDuration(elapsed.Seconds())
	e.edgeLog.LogEvaluation(in.Game.GameID, len(recs), plays, float64(elapsed.Microseconds())/1000)

	return recs, nil
}

// evaluate runs one market through the detector and the builder, and records
// a prediction for a play
func (e *Engine) evaluate(
	ctx context.Context,
	game *models.GameRecord,
	market models.MarketType,
	degraded []string,
	bankroll decimal.Decimal,
	risk sizing.RiskConfig,
	detect func() (*edge.Evaluation, error),
	shift float64,
	sources []string,
	contributions []models.SourceContribution,
	asOf time.Time,
) (*models.BettingRecommendation, error) {
	ev, err := detect()
	if errors.Is(err, models.ErrDataUnavailable) {
		return noPlay(game.GameID, market, degraded, ReasonNoMarketLines), nil
	}
	if err != nil {
		return nil, err
	}

	rec, err := e.builder.Build(sizing.Input{
		Evaluation:      ev,
		ConfidenceShift: shift,
		Sources:         sources,
		Degraded:        degraded,
		Bankroll:        bankroll,
	}, risk)
	if err != nil {
		return nil, err
	}

	if rec.IsPlay() {
		id, err := e.ensurePrediction(ctx, game, rec, contributions, sources, asOf)
		if err != nil {
			return nil, err
		}
		rec.PredictionID = &id
	}
	return rec, nil
}

// ensurePrediction returns the active prediction for the game and market, or
// creates one. Re-evaluating a game never creates a second active prediction.
func (e *Engine) ensurePrediction(ctx context.Context, game *models.GameRecord, rec *models.BettingRecommendation, contributions []models.SourceContribution, sources []string, asOf time.Time) (uuid.UUID, error) {
	active, err := e.repos.Predictions.GetActive(ctx, game.GameID, rec.MarketType)
	if err == nil {
		return active.ID, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return uuid.Nil, fmt.Errorf("failed to look up active prediction: %w", err)
	}

	var efactorPoints float64
	for _, c := range contributions {
		efactorPoints += c.Points
	}

	p := &models.PredictionRecord{
		ID:                  uuid.New(),
		GameID:              game.GameID,
		League:              game.League,
		MarketType:          rec.MarketType,
		Side:                rec.Side,
		PredictedEdge:       rec.Edge,
		ModelLine:           rec.ModelLine,
		MarketLine:          rec.MarketLine,
		EFactorAdjustment:   efactorPoints,
		ContributingSources: append([]string(nil), sources...),
		Contributions:       contributions,
		ConfidenceTier:      rec.ConfidenceTier,
		ConfidenceScore:     rec.ConfidenceScore,
		SharpAlignment:      rec.SharpAlignment,
		StakeFraction:       rec.StakeFraction,
		Price:               rec.Price,
		Status:              models.PredictionCreated,
		CreatedAt:           asOf,
	}

	if err := e.repos.Predictions.Create(ctx, p); err != nil {
		if errors.Is(err, models.ErrDuplicateKey) {
			active, getErr := e.repos.Predictions.GetActive(ctx, game.GameID, rec.MarketType)
			if getErr == nil {
				return active.ID, nil
			}
		}
		return uuid.Nil, fmt.Errorf("failed to create prediction: %w", err)
	}

	metrics.RecordPredictionCreated(string(p.MarketType))
	e.audit.LogPredictionCreated(p.ID, p.GameID, string(p.MarketType), p.PredictedEdge, p.ContributingSources)
	return p.ID, nil
}

// collect fills in the inputs the caller did not supply
func (e *Engine) collect(ctx context.Context, in GameInput, asOf time.Time) (*inputs, error) {
	data := &inputs{lines: in.Lines, events: in.Events, weather: in.Weather}
	if in.Lines != nil && in.Events != nil && (in.Weather != nil || in.Game.Venue == "") {
		return data, nil
	}

	if e.acquirer != nil {
		bundle, err := e.acquirer.Gather(ctx, in.Game, asOf)
		if err != nil {
			return nil, err
		}
		if in.Lines == nil {
			data.lines = bundle.Lines.Value
			e.noteDegraded(in.Game.GameID, string(models.SourceTypeOdds), bundle.Lines.Source, bundle.Lines.Status, bundle.Lines.Reason, data)
			if bundle.Lines.Status == acquisition.StatusOK {
				e.storeLines(ctx, bundle.Lines.Value)
			}
		}
		if in.Events == nil {
			data.events = bundle.Events()
			e.noteDegraded(in.Game.GameID, "home_events", bundle.HomeEvents.Source, bundle.HomeEvents.Status, bundle.HomeEvents.Reason, data)
			e.noteDegraded(in.Game.GameID, "away_events", bundle.AwayEvents.Source, bundle.AwayEvents.Status, bundle.AwayEvents.Reason, data)
		}
		if in.Weather == nil && in.Game.Venue != "" {
			data.weather = bundle.Weather.Value
			e.noteDegraded(in.Game.GameID, string(models.SourceTypeWeather), bundle.Weather.Source, bundle.Weather.Status, bundle.Weather.Reason, data)
		}
		return data, nil
	}

	if in.Lines == nil {
		lines, err := e.repos.Lines.GetByGame(ctx, in.Game.GameID)
		if err != nil {
			return nil, fmt.Errorf("failed to load lines: %w", err)
		}
		data.lines = lines
	}
	if in.Events == nil {
		since := asOf.Add(-acquisition.DefaultEventLookback)
		for _, team := range []string{in.Game.HomeTeamID, in.Game.AwayTeamID} {
			events, err := e.repos.Events.GetByTeam(ctx, team, since)
			if err != nil {
				return nil, fmt.Errorf("failed to load events for %s: %w", team, err)
			}
			data.events = append(data.events, events...)
		}
	}
	return data, nil
}

func (e *Engine) noteDegraded(gameID, input, source string, status acquisition.Status, reason string, data *inputs) {
	if status == acquisition.StatusOK {
		return
	}
	data.degraded = append(data.degraded, input+":"+string(status))
	e.edgeLog.LogDegradedInput(gameID, source, string(status), reason)
}

func (e *Engine) storeLines(ctx context.Context, lines []*models.MarketLine) {
	if len(lines) == 0 {
		return
	}
	if err := e.repos.Lines.InsertBatch(ctx, lines); err != nil {
		e.log.WithError(err).Warn("Failed to store market lines")
	}
}

// storeEvents records events not seen before and returns their ids
func (e *Engine) storeEvents(ctx context.Context, events []*models.EFactorEvent) map[uuid.UUID]bool {
	inserted := make(map[uuid.UUID]bool)
	for _, ev := range events {
		err := e.repos.Events.Insert(ctx, ev)
		switch {
		case err == nil:
			inserted[ev.EventID] = true
		case !errors.Is(err, models.ErrDuplicateKey):
			e.log.WithError(err).WithField("event_id", ev.EventID.String()).Warn("Failed to store event")
		}
	}
	return inserted
}

func noPlay(gameID string, market models.MarketType, degraded []string, reason string) *models.BettingRecommendation {
	return &models.BettingRecommendation{
		GameID:         gameID,
		MarketType:     market,
		Side:           models.SideNoPlay,
		ConfidenceTier: models.TierNone,
		StakeAmount:    decimal.Zero,
		Reasons:        []string{reason},
		Degraded:       append([]string(nil), degraded...),
	}
}

// spreadContributions orients each team's contributions home minus away
func spreadContributions(home, away efactor.TeamAdjustment) []models.SourceContribution {
	out := make([]models.SourceContribution, 0, len(home.Contributions)+len(away.Contributions))
	out = append(out, home.Contributions...)
	for _, c := range away.Contributions {
		c.Points = -c.Points
		out = append(out, c)
	}
	return out
}

func clampShift(v, bound float64) float64 {
	return math.Max(-bound, math.Min(bound, v))
}

func unionSorted(a, b []string) []string {
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
