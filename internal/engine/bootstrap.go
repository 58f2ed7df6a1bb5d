package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/gridiron-edge/internal/acquisition"
	"github.com/yourusername/gridiron-edge/internal/calibration"
	"github.com/yourusername/gridiron-edge/internal/config"
	"github.com/yourusername/gridiron-edge/internal/database"
	"github.com/yourusername/gridiron-edge/internal/edge"
	"github.com/yourusername/gridiron-edge/internal/efactor"
	"github.com/yourusername/gridiron-edge/internal/models"
	"github.com/yourusername/gridiron-edge/internal/rating"
	"github.com/yourusername/gridiron-edge/internal/repository"
	"github.com/yourusername/gridiron-edge/internal/sizing"
	"github.com/yourusername/gridiron-edge/internal/sourcequality"
)

// Runtime is an engine plus the resources it was built on
type Runtime struct {
	Engine *Engine
	// DB is nil when the engine runs on in-memory stores
	DB *database.DB
	// Stream is nil when no stream url is configured; the caller runs it
	Stream *acquisition.StreamClient
}

// Close releases the database pool and the stream connection
func (r *Runtime) Close() {
	if r.Stream != nil {
		r.Stream.Close()
	}
	if r.DB != nil {
		r.DB.Close()
	}
}

// DecayTable applies the configured overrides to the default decay table
func DecayTable(overrides []config.DecayOverride) efactor.DecayTable {
	m := make(map[models.EventType]efactor.DecayParams, len(overrides))
	for _, o := range overrides {
		m[models.EventType(o.Type)] = efactor.DecayParams{
			HalfLife: hours(o.HalfLifeHours),
			Floor:    o.Floor,
			MaxAge:   hours(o.MaxAgeHours),
		}
	}
	return efactor.DefaultDecayTable().WithOverrides(m)
}

func hours(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}

// NewFromConfig wires every component from a validated configuration
func NewFromConfig(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*Runtime, error) {
	rt := &Runtime{}

	var repos *repository.Repositories
	var ratingOpts []rating.Option
	if cfg.Database.Enabled {
		db, err := database.Initialize(ctx, cfg, log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		rt.DB = db
		repos, err = repository.NewRepositories(db)
		if err != nil {
			rt.Close()
			return nil, err
		}
		ratingOpts = append(ratingOpts, rating.WithTransactor(db))
	} else {
		log.Warn("Database disabled, using in-memory stores")
		repos = repository.NewMemoryRepositories()
	}

	tracker := sourcequality.NewTracker(sourcequality.Config{
		Alpha:          cfg.SourceQuality.Alpha,
		LatencyScale:   time.Duration(cfg.SourceQuality.LatencyScaleSeconds) * time.Second,
		ReferenceScore: cfg.SourceQuality.ReferenceScore,
	}, repos.SourceQuality, log)
	if err := tracker.Load(ctx); err != nil {
		rt.Close()
		return nil, err
	}
	now := time.Now().UTC()
	for _, src := range cfg.Acquisition.Sources {
		tracker.Register(src.Name, models.SourceType(src.Type), now)
	}

	aggregator := efactor.NewAggregator(efactor.Config{
		PerTeamCap:      cfg.EFactor.PerTeamCap,
		ConfidenceBound: cfg.EFactor.ConfidenceBound,
		Decay:           DecayTable(cfg.EFactor.Decay),
	}, tracker, log)

	detector := edge.NewDetector(edge.Config{
		HomeFieldAdvantage: cfg.Rating.HomeFieldAdvantage,
		ConsensusRule:      edge.ConsensusRule(cfg.Edge.ConsensusRule),
		SharpBooks:         cfg.Edge.SharpBooks,
		UnitsPerPoint:      cfg.Edge.UnitsPerPoint,
	}, log)

	cal := calibration.NewService(repos.Predictions, tracker, aggregator, calibration.Thresholds{
		RMSECeiling: cfg.Calibration.RMSECeiling,
		ATSFloor:    cfg.Calibration.ATSFloor,
		SourceFloor: cfg.Calibration.SourceFloor,
		MinSample:   cfg.Calibration.MinSample,
	}, log, calibration.WithWindow(time.Duration(cfg.Calibration.WindowDays)*24*time.Hour))

	acquirer := acquisition.NewFromConfig(cfg, log, acquisition.WithObserver(tracker))

	var stream acquisition.LineSource
	if cfg.Acquisition.StreamURL != "" {
		rt.Stream = acquisition.NewStreamClient(cfg.Acquisition.StreamURL, streamKey(cfg), log)
		stream = rt.Stream
	}

	e, err := New(Components{
		Repos:       repos,
		Ratings:     rating.NewEngine(repos.Ratings, cfg.Rating.HomeFieldAdvantage, log, ratingOpts...),
		Detector:    detector,
		Aggregator:  aggregator,
		Tracker:     tracker,
		Builder:     sizing.NewBuilder(tracker, log),
		Calibration: cal,
		Acquirer:    acquirer,
		Stream:      stream,
		Risk:        sizing.FromConfig(&cfg.Risk),
		Bankroll:    decimal.NewFromFloat(cfg.Bankroll.Amount),
		AutoSettle:  cfg.Calibration.AutoSettle,
	}, log)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Engine = e
	return rt, nil
}

// streamKey reuses the api key of the first odds source for the stream
func streamKey(cfg *config.Config) string {
	for _, src := range cfg.SourcesOfType(string(models.SourceTypeOdds)) {
		if src.APIKey != "" {
			return src.APIKey
		}
	}
	return ""
}
