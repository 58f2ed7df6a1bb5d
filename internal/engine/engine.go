// Package engine composes ratings, edge detection, E-Factors, sizing, source
// quality and calibration into the operations exposed to callers.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/gridiron-edge/internal/acquisition"
	"github.com/yourusername/gridiron-edge/internal/backtest"
	"github.com/yourusername/gridiron-edge/internal/calibration"
	"github.com/yourusername/gridiron-edge/internal/edge"
	"github.com/yourusername/gridiron-edge/internal/efactor"
	"github.com/yourusername/gridiron-edge/internal/logger"
	"github.com/yourusername/gridiron-edge/internal/metrics"
	"github.com/yourusername/gridiron-edge/internal/models"
	"github.com/yourusername/gridiron-edge/internal/rating"
	"github.com/yourusername/gridiron-edge/internal/repository"
	"github.com/yourusername/gridiron-edge/internal/settlement"
	"github.com/yourusername/gridiron-edge/internal/sizing"
	"github.com/yourusername/gridiron-edge/internal/sourcequality"
)

// Engine is the entry point for evaluation, outcome recording and reporting
type Engine struct {
	repos       *repository.Repositories
	ratings     *rating.Engine
	detector    *edge.Detector
	aggregator  *efactor.Aggregator
	tracker     *sourcequality.Tracker
	builder     *sizing.Builder
	calibration *calibration.Service
	acquirer    *acquisition.Acquirer
	stream      acquisition.LineSource

	risk       sizing.RiskConfig
	bankroll   decimal.Decimal
	autoSettle bool

	audit   *logger.AuditLogger
	edgeLog *logger.EdgeLogger
	log     *logrus.Logger
	now     func() time.Time
}

// Components are the collaborators an Engine is assembled from. Acquirer and
// Stream are optional.
type Components struct {
	Repos       *repository.Repositories
	Ratings     *rating.Engine
	Detector    *edge.Detector
	Aggregator  *efactor.Aggregator
	Tracker     *sourcequality.Tracker
	Builder     *sizing.Builder
	Calibration *calibration.Service
	Acquirer    *acquisition.Acquirer
	Stream      acquisition.LineSource
	Risk        sizing.RiskConfig
	Bankroll    decimal.Decimal
	// AutoSettle grades active predictions in ProcessCompletedGame
	AutoSettle bool
}

// Option configures an Engine
type Option func(*Engine)

// WithClock replaces time.Now where a caller does not pin AsOf
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New assembles an engine from its components
func New(c Components, log *logrus.Logger, opts ...Option) (*Engine, error) {
	if c.Repos == nil || c.Ratings == nil || c.Detector == nil || c.Aggregator == nil ||
		c.Tracker == nil || c.Builder == nil || c.Calibration == nil {
		return nil, errors.New("engine: missing required component")
	}
	if err := c.Risk.Validate(); err != nil {
		return nil, err
	}
	if c.Bankroll.IsNegative() {
		return nil, &models.ConfigurationError{Field: "bankroll.amount", Reason: "must not be negative"}
	}

	e := &Engine{
		repos:       c.Repos,
		ratings:     c.Ratings,
		detector:    c.Detector,
		aggregator:  c.Aggregator,
		tracker:     c.Tracker,
		builder:     c.Builder,
		calibration: c.Calibration,
		acquirer:    c.Acquirer,
		stream:      c.Stream,
		risk:        c.Risk,
		bankroll:    c.Bankroll,
		autoSettle:  c.AutoSettle,
		audit:       logger.NewAuditLogger(log),
		edgeLog:     logger.NewEdgeLogger(log),
		log:         log,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	bankroll, _ := e.bankroll.Float64()
	metrics.UpdateBankroll(bankroll)
	return e, nil
}

// Risk returns the configured risk parameters
func (e *Engine) Risk() sizing.RiskConfig {
	return e.risk
}

// Ratings exposes the rating engine for seeding and inspection
func (e *Engine) Ratings() *rating.Engine {
	return e.ratings
}

// Tracker exposes the source quality tracker
func (e *Engine) Tracker() *sourcequality.Tracker {
	return e.tracker
}

// Backtest builds a historical replay over the engine's stores and pipeline
func (e *Engine) Backtest(cfg backtest.Config) (*backtest.Engine, error) {
	return backtest.NewEngine(cfg, backtest.Deps{
		Repos:      e.repos,
		Detector:   e.detector,
		Aggregator: e.aggregator,
		Builder:    e.builder,
		Risk:       e.risk,
	}, e.log)
}

// RecordOutcome attaches a settled result to a prediction
func (e *Engine) RecordOutcome(ctx context.Context, predictionID uuid.UUID, result models.GameResult, actualMargin, clv float64) (*models.OutcomeRecord, error) {
	return e.calibration.RecordOutcome(ctx, predictionID, result, actualMargin, clv)
}

// GetCalibrationReport reports calibration for a league over the trailing window
func (e *Engine) GetCalibrationReport(ctx context.Context, league string, window time.Duration) (*calibration.Report, error) {
	return e.calibration.Report(ctx, league, window)
}

// GetSourceHealth returns every source quality record keyed by source id
func (e *Engine) GetSourceHealth() map[string]models.SourceQualityRecord {
	return e.tracker.Snapshot()
}

// SuppressSource removes a source's influence until reinstated
func (e *Engine) SuppressSource(sourceID, reason string) {
	e.tracker.Suppress(sourceID, reason, e.now().UTC())
	e.audit.LogSourceSuppression(sourceID, true, reason)
}

// ReinstateSource restores a suppressed source
func (e *Engine) ReinstateSource(sourceID string) error {
	if err := e.tracker.Reinstate(sourceID, e.now().UTC()); err != nil {
		return err
	}
	e.audit.LogSourceSuppression(sourceID, false, "")
	return nil
}

// Persist snapshots source quality to storage
func (e *Engine) Persist(ctx context.Context) error {
	return e.tracker.Persist(ctx)
}

// ProcessCompletedGame stores a final score, settles the game's active
// predictions when auto settlement is on and routes the score to the rating
// engine. A deferred update is not an error to the caller; it is retried later.
func (e *Engine) ProcessCompletedGame(ctx context.Context, game *models.GameRecord) (*rating.Update, error) {
	if game == nil {
		return nil, errors.New("game is required")
	}
	if err := e.repos.Games.Upsert(ctx, game); err != nil {
		return nil, fmt.Errorf("failed to store game %s: %w", game.GameID, err)
	}
	// a recorded final is immutable; a conflicting resend must not be used
	stored, err := e.repos.Games.GetByID(ctx, game.GameID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload game %s: %w", game.GameID, err)
	}
	game = stored

	if e.autoSettle && game.IsCompleted() {
		if n := e.settle(ctx, game); n > 0 {
			e.log.WithFields(logrus.Fields{"game_id": game.GameID, "settled": n}).Info("Predictions settled")
		}
	}

	update, err := e.ratings.ApplyGame(ctx, game)
	if errors.Is(err, models.ErrRatingDeferred) {
		return nil, nil
	}
	return update, err
}

// settle records outcomes for the active spread and total predictions of a
// completed game. Closing line value is measured against the stored lines as
// of kickoff.
func (e *Engine) settle(ctx context.Context, game *models.GameRecord) int {
	lines, err := e.repos.Lines.GetByGame(ctx, game.GameID)
	if err != nil {
		e.log.WithError(err).WithField("game_id", game.GameID).Debug("No stored lines for closing line value")
	}

	settled := 0
	for _, market := range []models.MarketType{models.MarketTypeSpread, models.MarketTypeTotal} {
		p, err := e.repos.Predictions.GetActive(ctx, game.GameID, market)
		if errors.Is(err, models.ErrNotFound) {
			continue
		}
		if err != nil {
			e.log.WithError(err).WithField("game_id", game.GameID).Warn("Failed to load active prediction")
			continue
		}

		result, err := settlement.Grade(market, p.Side, p.MarketLine, game)
		if err != nil {
			e.log.WithError(err).WithField("prediction_id", p.ID).Warn("Prediction not graded")
			continue
		}

		var clv float64
		if cons, ok := e.detector.Consensus(lines, market, game.Kickoff); ok {
			closing := cons.Value
			if market == models.MarketTypeSpread {
				closing = -closing
			}
			clv = settlement.ClosingLineValue(market, p.Side, p.MarketLine, closing)
		}

		if _, err := e.calibration.RecordOutcome(ctx, p.ID, result, settlement.Realized(market, game), clv); err != nil {
			e.log.WithError(err).WithField("prediction_id", p.ID).Warn("Outcome not recorded")
			continue
		}
		settled++
	}
	return settled
}

// LookupGame returns a stored game, falling back to the game feeds. A game
// fetched from a feed is stored.
func (e *Engine) LookupGame(ctx context.Context, gameID string) (*models.GameRecord, error) {
	g, err := e.repos.Games.GetByID(ctx, gameID)
	if err == nil {
		return g, nil
	}
	if !errors.Is(err, models.ErrNotFound) || e.acquirer == nil {
		return nil, err
	}

	res := e.acquirer.FetchGame(ctx, gameID)
	if !res.Usable() {
		return nil, fmt.Errorf("game %s: %s: %w", gameID, res.Reason, models.ErrDataUnavailable)
	}
	if err := e.repos.Games.Upsert(ctx, res.Value); err != nil {
		e.log.WithError(err).WithField("game_id", gameID).Warn("Failed to store fetched game")
	}
	return res.Value, nil
}

// ReplayDeferred retries deferred rating updates
func (e *Engine) ReplayDeferred(ctx context.Context) (int, error) {
	return e.ratings.ReplayDeferred(ctx)
}

// SweepCompleted pulls finals since the given time and applies each one.
// Already applied games are skipped.
func (e *Engine) SweepCompleted(ctx context.Context, league string, since time.Time) (int, error) {
	if e.acquirer == nil {
		return 0, fmt.Errorf("no game feed configured: %w", models.ErrDataUnavailable)
	}
	games, err := e.acquirer.FetchCompleted(ctx, league, since)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, g := range games {
		update, err := e.ProcessCompletedGame(ctx, g)
		switch {
		case errors.Is(err, models.ErrDuplicateKey):
			continue
		case err != nil:
			e.log.WithError(err).WithField("game_id", g.GameID).Warn("Completed game not applied")
			continue
		case update != nil:
			applied++
		}
	}
	return applied, nil
}

// MonitorLineMovement watches the odds stream for a game until window elapses
// or ctx is done, returning what was seen either way
func (e *Engine) MonitorLineMovement(ctx context.Context, gameID string, window time.Duration) (*acquisition.Movement, error) {
	if e.stream == nil {
		return nil, fmt.Errorf("no odds stream configured: %w", models.ErrDataUnavailable)
	}
	return acquisition.MonitorLineMovement(ctx, e.stream, gameID, window), nil
}
