// Package calibration resolves predictions against outcomes and reports how
// well the model and its sources hold up.
package calibration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/gridiron-edge/internal/logger"
	"github.com/yourusername/gridiron-edge/internal/metrics"
	"github.com/yourusername/gridiron-edge/internal/models"
	"github.com/yourusername/gridiron-edge/internal/repository"
)

// DefaultWindow is the report window when none is given
const DefaultWindow = 90 * 24 * time.Hour

// AccuracyRecorder receives per-source accuracy observations
type AccuracyRecorder interface {
	RecordAccuracy(sourceID string, sample float64, at time.Time)
}

// Report is the calibration state of a league over a window
type Report struct {
	League           string            `json:"league"`
	WindowStart      time.Time         `json:"window_start"`
	WindowEnd        time.Time         `json:"window_end"`
	Metrics          Metrics           `json:"metrics"`
	Advisories       []Advisory        `json:"advisories"`
	DecaySuggestions []DecaySuggestion `json:"decay_suggestions"`
}

// Service owns the prediction state machine after creation
type Service struct {
	repo       repository.PredictionRepository
	tracker    AccuracyRecorder
	decay      DecayLookup
	thresholds Thresholds
	window     time.Duration
	audit      *logger.AuditLogger
	log        *logger.RatingLogger
	now        func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithWindow sets the default report window
func WithWindow(window time.Duration) Option {
	return func(s *Service) {
		if window > 0 {
			s.window = window
		}
	}
}

// NewService creates a calibration service. tracker and decay may be nil.
func NewService(repo repository.PredictionRepository, tracker AccuracyRecorder, decay DecayLookup, th Thresholds, log *logrus.Logger, opts ...Option) *Service {
	s := &Service{
		repo:       repo,
		tracker:    tracker,
		decay:      decay,
		thresholds: th,
		window:     DefaultWindow,
		audit:      logger.NewAuditLogger(log),
		log:        logger.NewRatingLogger(log),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordOutcome attaches a result to an unresolved prediction and analyzes it.
// Unknown or already resolved predictions return a *models.CalibrationIntegrityError
// and nothing is stored.
func (s *Service) RecordOutcome(ctx context.Context, predictionID uuid.UUID, result models.GameResult, actualMargin, clv float64) (*models.OutcomeRecord, error) {
	if !result.IsValid() {
		return nil, fmt.Errorf("invalid result %q", result)
	}

	outcome := &models.OutcomeRecord{
		ID:               uuid.New(),
		PredictionID:     predictionID,
		Result:           result,
		ActualMargin:     actualMargin,
		ClosingLineValue: clv,
		RecordedAt:       s.now().UTC(),
	}

	if err := s.repo.AttachOutcome(ctx, outcome); err != nil {
		var integrity *models.CalibrationIntegrityError
		if errors.As(err, &integrity) {
			s.audit.LogIntegrityViolation(predictionID, integrity.Reason)
			metrics.RecordIntegrityError()
		}
		return nil, err
	}

	s.audit.LogOutcomeRecorded(predictionID, string(result), actualMargin, clv, outcome.RecordedAt)
	metrics.RecordOutcome(string(result))

	if err := s.analyze(ctx, outcome); err != nil {
		return outcome, fmt.Errorf("outcome stored but analysis failed: %w", err)
	}
	return outcome, nil
}

// analyze feeds per-source accuracy to the tracker and moves the prediction to analyzed
func (s *Service) analyze(ctx context.Context, outcome *models.OutcomeRecord) error {
	pred, err := s.repo.GetByID(ctx, outcome.PredictionID)
	if err != nil {
		return fmt.Errorf("failed to load prediction: %w", err)
	}

	if s.tracker != nil {
		deviation := RealizedDeviation(pred, outcome)
		for _, c := range pred.Contributions {
			hit, ok := DirectionalHit(c.Points, deviation)
			if !ok {
				continue
			}
			sample := 0.0
			if hit {
				sample = 1
			}
			s.tracker.RecordAccuracy(c.SourceID, sample, outcome.RecordedAt)
		}
	}

	if err := s.repo.MarkAnalyzed(ctx, pred.ID); err != nil {
		return fmt.Errorf("failed to mark analyzed: %w", err)
	}
	return nil
}

// Report computes calibration metrics and advisories for a league over the
// trailing window. An empty league covers all leagues; a non-positive window
// uses the default.
func (s *Service) Report(ctx context.Context, league string, window time.Duration) (*Report, error) {
	if window <= 0 {
		window = s.window
	}
	end := s.now().UTC()
	start := end.Add(-window)

	resolved, err := s.repo.GetResolved(ctx, league, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load resolved predictions: %w", err)
	}

	m := CalculateMetrics(resolved)
	advisories, suggestions := Advise(m, s.thresholds, s.decay)

	kinds := make([]string, len(advisories))
	for i, a := range advisories {
		kinds[i] = string(a.Kind)
		s.log.LogCalibrationAdvisory(league, string(a.Kind), a.Subject, a.Message)
	}
	metrics.RecordCalibrationReport(league, m.EdgeRMSE, m.ATSWinRate, kinds)

	return &Report{
		League:           league,
		WindowStart:      start,
		WindowEnd:        end,
		Metrics:          m,
		Advisories:       advisories,
		DecaySuggestions: suggestions,
	}, nil
}
