package sourcequality

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/gridiron-edge/internal/metrics"
	"github.com/yourusername/gridiron-edge/internal/models"
	"github.com/yourusername/gridiron-edge/internal/repository"
)

// Tracker keeps one SourceQualityRecord per source. All updates go through it.
type Tracker struct {
	mu      sync.RWMutex
	cfg     Config
	records map[string]*models.SourceQualityRecord
	repo    repository.SourceQualityRepository
	log     *logrus.Entry
}

// NewTracker creates a tracker. repo may be nil when snapshots are not persisted.
func NewTracker(cfg Config, repo repository.SourceQualityRepository, log *logrus.Logger) *Tracker {
	if cfg.Alpha <= 0 || cfg.Alpha > 1 {
		cfg.Alpha = DefaultConfig().Alpha
	}
	if cfg.LatencyScale <= 0 {
		cfg.LatencyScale = DefaultConfig().LatencyScale
	}
	if cfg.ReferenceScore <= 0 {
		cfg.ReferenceScore = Neutral
	}
	return &Tracker{
		cfg:     cfg,
		records: make(map[string]*models.SourceQualityRecord),
		repo:    repo,
		log:     log.WithField("component", "source_quality"),
	}
}

// Load replaces in-memory state with the persisted snapshots
func (t *Tracker) Load(ctx context.Context) error {
	if t.repo == nil {
		return nil
	}
	stored, err := t.repo.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load source quality: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, rec := range stored {
		cp := *rec
		cp.OverallScore = OverallScore(&cp, t.cfg.LatencyScale)
		t.records[cp.SourceID] = &cp
	}
	t.log.WithField("sources", len(stored)).Info("Source quality loaded")
	return nil
}

// Register makes a source known with neutral scores; existing sources are unchanged
func (t *Tracker) Register(sourceID string, sourceType models.SourceType, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.recordLocked(sourceID, sourceType, at)
}

func (t *Tracker) recordLocked(sourceID string, sourceType models.SourceType, at time.Time) *models.SourceQualityRecord {
	rec, ok := t.records[sourceID]
	if !ok {
		rec = &models.SourceQualityRecord{
			SourceID:    sourceID,
			SourceType:  sourceType,
			Accuracy:    Neutral,
			Coverage:    Neutral,
			AvgLatency:  t.cfg.LatencyScale,
			Consistency: Neutral,
			Agreement:   Neutral,
			UpdatedAt:   at,
		}
		rec.OverallScore = OverallScore(rec, t.cfg.LatencyScale)
		t.records[sourceID] = rec
	}
	if rec.SourceType == "" {
		rec.SourceType = sourceType
	}
	return rec
}

func (t *Tracker) update(sourceID string, sourceType models.SourceType, at time.Time, fn func(*models.SourceQualityRecord)) {
	t.mu.Lock()
	rec := t.recordLocked(sourceID, sourceType, at)
	fn(rec)
	rec.Observations++
	rec.UpdatedAt = at
	rec.OverallScore = OverallScore(rec, t.cfg.LatencyScale)
	score := rec.EffectiveScore()
	t.mu.Unlock()

	metrics.UpdateSourceScore(sourceID, score)
}

// RecordAccuracy folds a resolved observation into the accuracy EMA.
// sample is 1 for a report confirmed by ground truth and 0 for a miss;
// partial credit is allowed.
func (t *Tracker) RecordAccuracy(sourceID string, sample float64, at time.Time) {
	t.update(sourceID, "", at, func(rec *models.SourceQualityRecord) {
		rec.Accuracy = ema(rec.Accuracy, sample, t.cfg.Alpha)
	})
}

// RecordFetch folds one fetch into the coverage and latency averages
func (t *Tracker) RecordFetch(sourceID string, sourceType models.SourceType, covered bool, latency time.Duration, at time.Time) {
	t.update(sourceID, sourceType, at, func(rec *models.SourceQualityRecord) {
		rec.Coverage = ema(rec.Coverage, boolSample(covered), t.cfg.Alpha)
		if covered {
			rec.AvgLatency = emaDuration(rec.AvgLatency, latency, t.cfg.Alpha)
		}
	})
}

// RecordConsistency folds whether a report held up against the source's own later reports
func (t *Tracker) RecordConsistency(sourceID string, consistent bool, at time.Time) {
	t.update(sourceID, models.SourceTypeEvents, at, func(rec *models.SourceQualityRecord) {
		rec.Consistency = ema(rec.Consistency, boolSample(consistent), t.cfg.Alpha)
	})
}

// RecordAgreement folds whether a report agreed with other sources on the same signal
func (t *Tracker) RecordAgreement(sourceID string, agreed bool, at time.Time) {
	t.update(sourceID, models.SourceTypeEvents, at, func(rec *models.SourceQualityRecord) {
		rec.Agreement = ema(rec.Agreement, boolSample(agreed), t.cfg.Alpha)
	})
}

// ObserveEvents derives consistency and agreement observations from a batch of
// events. Only events in fresh are observed, so a batch can be offered again
// without moving any score; a nil fresh treats every event as new. The rest of
// the batch is context: a fresh event superseding one from the same source
// counts against that source's consistency, and where two or more sources
// report the same team and event type, a source with a fresh report agrees when
// its sign matches the majority sign.
func (t *Tracker) ObserveEvents(events []*models.EFactorEvent, fresh map[uuid.UUID]bool, at time.Time) {
	isFresh := func(ev *models.EFactorEvent) bool {
		return fresh == nil || fresh[ev.EventID]
	}
	byID := make(map[uuid.UUID]*models.EFactorEvent, len(events))
	for _, ev := range events {
		byID[ev.EventID] = ev
	}

	superseded := make(map[uuid.UUID]bool)
	for _, ev := range events {
		if ev.SupersedesID == nil {
			continue
		}
		prior, ok := byID[*ev.SupersedesID]
		if !ok || prior.SourceID != ev.SourceID {
			continue
		}
		superseded[prior.EventID] = true
		if isFresh(ev) {
			t.RecordConsistency(ev.SourceID, false, at)
		}
	}

	type signalKey struct {
		team string
		typ  models.EventType
	}
	signs := make(map[signalKey]map[string]float64)
	reported := make(map[signalKey]map[string]bool)

	for _, ev := range events {
		if isFresh(ev) && !superseded[ev.EventID] && !correctsOwn(ev, byID) {
			t.RecordConsistency(ev.SourceID, true, at)
		}
		if superseded[ev.EventID] {
			continue
		}
		key := signalKey{ev.TeamID, ev.Type}
		if signs[key] == nil {
			signs[key] = make(map[string]float64)
			reported[key] = make(map[string]bool)
		}
		signs[key][ev.SourceID] += ev.Magnitude
		if isFresh(ev) {
			reported[key][ev.SourceID] = true
		}
	}

	keys := make([]signalKey, 0, len(signs))
	for k := range signs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].team == keys[j].team {
			return keys[i].typ < keys[j].typ
		}
		return keys[i].team < keys[j].team
	})

	for _, key := range keys {
		bySource := signs[key]
		if len(bySource) < 2 || len(reported[key]) == 0 {
			continue
		}
		var majority float64
		for _, m := range bySource {
			majority += math.Copysign(1, m)
		}
		sources := make([]string, 0, len(reported[key]))
		for src := range reported[key] {
			sources = append(sources, src)
		}
		sort.Strings(sources)
		for _, src := range sources {
			agreed := majority == 0 || math.Signbit(bySource[src]) == math.Signbit(majority)
			t.RecordAgreement(src, agreed, at)
		}
	}
}

func correctsOwn(ev *models.EFactorEvent, byID map[uuid.UUID]*models.EFactorEvent) bool {
	if ev.SupersedesID == nil {
		return false
	}
	prior, ok := byID[*ev.SupersedesID]
	return ok && prior.SourceID == ev.SourceID
}

// Score returns the effective score of a source: neutral when unknown, zero when suppressed
func (t *Tracker) Score(sourceID string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.records[sourceID]
	if !ok {
		return Neutral
	}
	return rec.EffectiveScore()
}

// IsSuppressed reports whether an operator suppressed the source
func (t *Tracker) IsSuppressed(sourceID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.records[sourceID]
	return ok && rec.Suppressed
}

// AdjustConfidence scales base by the mean score of the contributing sources
// relative to the reference score, clamped to [0, 1]. With no sources the base
// is returned unchanged.
func (t *Tracker) AdjustConfidence(sourceIDs []string, base float64) float64 {
	if len(sourceIDs) == 0 {
		return clamp01(base)
	}
	var sum float64
	for _, id := range sourceIDs {
		sum += t.Score(id)
	}
	mean := sum / float64(len(sourceIDs))
	return clamp01(base * mean / t.cfg.ReferenceScore)
}

// Suppress removes a source's influence until reinstated. Only operators call this.
func (t *Tracker) Suppress(sourceID, reason string, at time.Time) {
	t.mu.Lock()
	rec := t.recordLocked(sourceID, "", at)
	rec.Suppressed = true
	rec.SuppressedReason = reason
	rec.UpdatedAt = at
	t.mu.Unlock()

	metrics.UpdateSourceScore(sourceID, 0)
	t.log.WithFields(logrus.Fields{"source_id": sourceID, "reason": reason}).Warn("Source suppressed")
}

// Reinstate restores a suppressed source with its accumulated scores
func (t *Tracker) Reinstate(sourceID string, at time.Time) error {
	t.mu.Lock()
	rec, ok := t.records[sourceID]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("source %s: %w", sourceID, models.ErrNotFound)
	}
	rec.Suppressed = false
	rec.SuppressedReason = ""
	rec.UpdatedAt = at
	score := rec.OverallScore
	t.mu.Unlock()

	metrics.UpdateSourceScore(sourceID, score)
	t.log.WithField("source_id", sourceID).Info("Source reinstated")
	return nil
}

// Snapshot returns a copy of every record keyed by source id
func (t *Tracker) Snapshot() map[string]models.SourceQualityRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]models.SourceQualityRecord, len(t.records))
	for id, rec := range t.records {
		out[id] = *rec
	}
	return out
}

// Persist writes every record through the repository
func (t *Tracker) Persist(ctx context.Context) error {
	if t.repo == nil {
		return nil
	}
	snapshot := t.Snapshot()
	ids := make([]string, 0, len(snapshot))
	for id := range snapshot {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		rec := snapshot[id]
		if err := t.repo.Upsert(ctx, &rec); err != nil {
			return fmt.Errorf("failed to persist source %s: %w", id, err)
		}
	}
	t.log.WithField("sources", len(ids)).Debug("Source quality snapshot persisted")
	return nil
}
