// Package scheduler runs the engine's periodic maintenance jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/gridiron-edge/internal/calibration"
)

// RatingReplayer retries deferred rating updates
type RatingReplayer interface {
	ReplayDeferred(ctx context.Context) (int, error)
}

// CalibrationReporter produces calibration reports
type CalibrationReporter interface {
	GetCalibrationReport(ctx context.Context, league string, window time.Duration) (*calibration.Report, error)
}

// SourcePersister snapshots source quality to storage
type SourcePersister interface {
	Persist(ctx context.Context) error
}

// CompletedGameSweeper pulls finals from the game feed and applies them
type CompletedGameSweeper interface {
	SweepCompleted(ctx context.Context, league string, since time.Time) (int, error)
}

// Scheduler manages the periodic jobs
type Scheduler struct {
	cron            *cron.Cron
	logger          *logrus.Logger
	mu              sync.RWMutex
	isRunning       bool
	jobIDs          map[string]cron.EntryID
	jobTimeout      time.Duration
	gracefulTimeout time.Duration
	now             func() time.Time
}

// NewScheduler creates a new scheduler
func NewScheduler(logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		cron:            cron.New(cron.WithLocation(time.UTC)),
		logger:          logger,
		jobIDs:          make(map[string]cron.EntryID),
		jobTimeout:      10 * time.Minute,
		gracefulTimeout: 30 * time.Second,
		now:             time.Now,
	}
}

func (s *Scheduler) add(name, expr string, job func(ctx context.Context)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cannot schedule job while scheduler is running")
	}
	if _, exists := s.jobIDs[name]; exists {
		return fmt.Errorf("job %s already scheduled", name)
	}

	entryID, err := s.cron.AddFunc(expr, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
		defer cancel()

		start := time.Now()
		job(ctx)
		s.logger.WithFields(logrus.Fields{
			"job":         name,
			"duration_ms": time.Since(start).Milliseconds(),
		}).Debug("Scheduled job finished")
	})
	if err != nil {
		return fmt.Errorf("failed to add job %s: %w", name, err)
	}

	s.jobIDs[name] = entryID
	s.logger.WithFields(logrus.Fields{"job": name, "schedule": expr}).Info("Scheduled job")
	return nil
}

// ScheduleDeferredReplay retries games whose rating update was deferred
func (s *Scheduler) ScheduleDeferredReplay(expr string, r RatingReplayer) error {
	return s.add("deferred_replay", expr, func(ctx context.Context) {
		applied, err := r.ReplayDeferred(ctx)
		if err != nil {
			s.logger.WithError(err).Error("Deferred replay failed")
			return
		}
		if applied > 0 {
			s.logger.WithField("applied", applied).Info("Deferred rating updates applied")
		}
	})
}

// ScheduleCalibrationSweep reports calibration for each league over the window
func (s *Scheduler) ScheduleCalibrationSweep(expr string, leagues []string, window time.Duration, r CalibrationReporter) error {
	return s.add("calibration_sweep", expr, func(ctx context.Context) {
		for _, league := range leagues {
			report, err := r.GetCalibrationReport(ctx, league, window)
			if err != nil {
				s.logger.WithError(err).WithField("league", league).Error("Calibration sweep failed")
				continue
			}
			s.logger.WithFields(logrus.Fields{
				"league":      league,
				"predictions": report.Metrics.Predictions,
				"edge_rmse":   report.Metrics.EdgeRMSE,
				"ats":         report.Metrics.ATSWinRate,
				"advisories":  len(report.Advisories),
			}).Info("Calibration sweep")
		}
	})
}

// ScheduleSourceSnapshot persists source quality records
func (s *Scheduler) ScheduleSourceSnapshot(expr string, p SourcePersister) error {
	return s.add("source_snapshot", expr, func(ctx context.Context) {
		if err := p.Persist(ctx); err != nil {
			s.logger.WithError(err).Error("Source quality snapshot failed")
		}
	})
}

// ScheduleCompletedGames applies finals from the last lookback period
func (s *Scheduler) ScheduleCompletedGames(expr string, leagues []string, lookback time.Duration, sw CompletedGameSweeper) error {
	return s.add("completed_games", expr, func(ctx context.Context) {
		since := s.now().Add(-lookback)
		for _, league := range leagues {
			n, err := sw.SweepCompleted(ctx, league, since)
			if err != nil {
				s.logger.WithError(err).WithField("league", league).Warn("Completed game sweep failed")
				continue
			}
			if n > 0 {
				s.logger.WithFields(logrus.Fields{"league": league, "games": n}).Info("Completed games processed")
			}
		}
	})
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}
	if len(s.jobIDs) == 0 {
		return fmt.Errorf("no jobs scheduled")
	}

	s.cron.Start()
	s.isRunning = true
	s.logger.WithField("jobs", len(s.jobIDs)).Info("Scheduler started")
	return nil
}

// Stop waits for running jobs up to the graceful timeout and stops the scheduler
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	s.isRunning = false
	select {
	case <-s.cron.Stop().Done():
		s.logger.Info("Scheduler stopped")
		return nil
	case <-time.After(s.gracefulTimeout):
		return fmt.Errorf("scheduler stop timed out after %s", s.gracefulTimeout)
	}
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Jobs returns the scheduled job names
func (s *Scheduler) Jobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.jobIDs))
	for name := range s.jobIDs {
		names = append(names, name)
	}
	return names
}

// GetNextRun returns the time of the next scheduled job run
func (s *Scheduler) GetNextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return time.Time{}
	}

	nextRun := time.Time{}
	for _, jobID := range s.jobIDs {
		entry := s.cron.Entry(jobID)
		if entry.Valid() && (nextRun.IsZero() || entry.Next.Before(nextRun)) {
			nextRun = entry.Next
		}
	}
	return nextRun
}

// RunNow runs a scheduled job synchronously, outside its schedule
func (s *Scheduler) RunNow(name string) error {
	s.mu.RLock()
	id, ok := s.jobIDs[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown job %s", name)
	}
	entry := s.cron.Entry(id)
	if !entry.Valid() {
		return fmt.Errorf("job %s has no entry", name)
	}
	entry.Job.Run()
	return nil
}
