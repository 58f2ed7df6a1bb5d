package sourcequality

import (
	"context"
	"io"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/gridiron-edge/internal/models"
	"github.com/yourusername/gridiron-edge/internal/repository"
)

var now = time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC)

func newTestTracker(repo repository.SourceQualityRepository) *Tracker {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewTracker(DefaultConfig(), repo, log)
}

func TestWeightsSumToOne(t *testing.T) {
	assert.InDelta(t, 1.0, WeightAccuracy+WeightCoverage+WeightLatency+WeightConsistency+WeightAgreement, 1e-12)
}

func TestNewSourceStartsNeutral(t *testing.T) {
	tr := newTestTracker(nil)
	assert.Equal(t, Neutral, tr.Score("unknown"))

	tr.Register("beat-wire", models.SourceTypeEvents, now)
	assert.InDelta(t, Neutral, tr.Score("beat-wire"), 1e-9)
}

func TestLatencyQuality(t *testing.T) {
	assert.Equal(t, 1.0, LatencyQuality(0, time.Hour))
	assert.InDelta(t, 0.5, LatencyQuality(time.Hour, time.Hour), 1e-12)
	assert.Less(t, LatencyQuality(5*time.Hour, time.Hour), LatencyQuality(2*time.Hour, time.Hour))
}

func TestAccuracyEMA(t *testing.T) {
	tr := newTestTracker(nil)
	tr.RecordAccuracy("beat-wire", 1, now)

	rec := tr.Snapshot()["beat-wire"]
	assert.InDelta(t, 0.55, rec.Accuracy, 1e-12)
	assert.Equal(t, 1, rec.Observations)
	assert.Greater(t, rec.OverallScore, Neutral)
}

func TestPoorAccuracyApproachesButNeverRemoves(t *testing.T) {
	tr := newTestTracker(nil)
	for i := 0; i < 200; i++ {
		tr.RecordAccuracy("rumor-mill", 0, now)
		tr.RecordAgreement("rumor-mill", false, now)
		tr.RecordConsistency("rumor-mill", false, now)
		tr.RecordFetch("rumor-mill", models.SourceTypeEvents, false, 0, now)
	}

	rec := tr.Snapshot()["rumor-mill"]
	assert.False(t, rec.Suppressed)
	assert.Less(t, rec.OverallScore, 0.1)
	assert.Greater(t, rec.OverallScore, 0.0)
}

func TestScoreBoundsUnderRandomObservations(t *testing.T) {
	tr := newTestTracker(nil)
	rng := rand.New(rand.NewSource(7))
	sources := []string{"a", "b", "c"}

	for i := 0; i < 2000; i++ {
		src := sources[rng.Intn(len(sources))]
		switch rng.Intn(4) {
		case 0:
			tr.RecordAccuracy(src, rng.Float64()*3-1, now)
		case 1:
			tr.RecordFetch(src, models.SourceTypeOdds, rng.Intn(2) == 0, time.Duration(rng.Int63n(int64(48*time.Hour)))-time.Hour, now)
		case 2:
			tr.RecordConsistency(src, rng.Intn(2) == 0, now)
		case 3:
			tr.RecordAgreement(src, rng.Intn(2) == 0, now)
		}
		for _, rec := range tr.Snapshot() {
			require.GreaterOrEqual(t, rec.OverallScore, 0.0)
			require.LessOrEqual(t, rec.OverallScore, 1.0)
		}
	}
}

func TestAdjustConfidence(t *testing.T) {
	tr := newTestTracker(nil)
	assert.InDelta(t, 0.6, tr.AdjustConfidence(nil, 0.6), 1e-12)
	assert.InDelta(t, 0.6, tr.AdjustConfidence([]string{"new-source"}, 0.6), 1e-12)

	for i := 0; i < 50; i++ {
		tr.RecordAccuracy("sharp-wire", 1, now)
		tr.RecordAgreement("sharp-wire", true, now)
	}
	assert.Greater(t, tr.AdjustConfidence([]string{"sharp-wire"}, 0.6), 0.6)
	assert.LessOrEqual(t, tr.AdjustConfidence([]string{"sharp-wire"}, 0.95), 1.0)
}

func TestSuppressAndReinstate(t *testing.T) {
	tr := newTestTracker(nil)
	tr.RecordAccuracy("beat-wire", 1, now)
	before := tr.Score("beat-wire")

	tr.Suppress("beat-wire", "operator review", now)
	assert.True(t, tr.IsSuppressed("beat-wire"))
	assert.Equal(t, 0.0, tr.Score("beat-wire"))
	assert.Equal(t, 0.0, tr.AdjustConfidence([]string{"beat-wire"}, 0.8))

	require.NoError(t, tr.Reinstate("beat-wire", now))
	assert.InDelta(t, before, tr.Score("beat-wire"), 1e-12)

	assert.ErrorIs(t, tr.Reinstate("never-seen", now), models.ErrNotFound)
}

func TestObserveEventsConsistencyAndAgreement(t *testing.T) {
	tr := newTestTracker(nil)
	first := &models.EFactorEvent{EventID: uuid.New(), TeamID: "KC", Type: models.EventKeyPlayerOut, Magnitude: -3, SourceID: "flip-flop"}
	correction := &models.EFactorEvent{EventID: uuid.New(), TeamID: "KC", Type: models.EventKeyPlayerOut, Magnitude: -1, SourceID: "flip-flop", SupersedesID: &first.EventID}
	agree := &models.EFactorEvent{EventID: uuid.New(), TeamID: "KC", Type: models.EventKeyPlayerOut, Magnitude: -2.5, SourceID: "beat-wire"}
	also := &models.EFactorEvent{EventID: uuid.New(), TeamID: "KC", Type: models.EventKeyPlayerOut, Magnitude: -2, SourceID: "team-site"}
	dissent := &models.EFactorEvent{EventID: uuid.New(), TeamID: "KC", Type: models.EventKeyPlayerOut, Magnitude: 1, SourceID: "contrarian"}

	tr.ObserveEvents([]*models.EFactorEvent{first, correction, agree, also, dissent}, nil, now)

	snap := tr.Snapshot()
	assert.Less(t, snap["flip-flop"].Consistency, snap["beat-wire"].Consistency)
	assert.Greater(t, snap["beat-wire"].Agreement, Neutral)
	assert.Less(t, snap["contrarian"].Agreement, Neutral)
}

func TestObserveEventsOnlyCountsFreshEvents(t *testing.T) {
	tr := newTestTracker(nil)
	a := &models.EFactorEvent{EventID: uuid.New(), TeamID: "KC", Type: models.EventKeyPlayerOut, Magnitude: 1, SourceID: "beat-wire"}
	b := &models.EFactorEvent{EventID: uuid.New(), TeamID: "KC", Type: models.EventKeyPlayerOut, Magnitude: 1, SourceID: "team-site"}
	batch := []*models.EFactorEvent{a, b}

	tr.ObserveEvents(batch, map[uuid.UUID]bool{a.EventID: true, b.EventID: true}, now)
	before := tr.Snapshot()

	for i := 0; i < 10; i++ {
		tr.ObserveEvents(batch, map[uuid.UUID]bool{}, now)
	}
	after := tr.Snapshot()
	assert.Equal(t, before["beat-wire"].Observations, after["beat-wire"].Observations)
	assert.InDelta(t, before["beat-wire"].Agreement, after["beat-wire"].Agreement, 1e-12)
	assert.InDelta(t, before["team-site"].Consistency, after["team-site"].Consistency, 1e-12)

	// a late report is judged against the ones already seen
	c := &models.EFactorEvent{EventID: uuid.New(), TeamID: "KC", Type: models.EventKeyPlayerOut, Magnitude: -2, SourceID: "contrarian"}
	tr.ObserveEvents(append(batch, c), map[uuid.UUID]bool{c.EventID: true}, now)
	after = tr.Snapshot()
	assert.Less(t, after["contrarian"].Agreement, Neutral)
	assert.Equal(t, before["beat-wire"].Observations, after["beat-wire"].Observations)
}

func TestPersistAndLoad(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemorySourceQualityRepository()
	tr := newTestTracker(repo)
	tr.RecordAccuracy("beat-wire", 1, now)
	tr.Suppress("rumor-mill", "spam", now)
	require.NoError(t, tr.Persist(ctx))

	restored := newTestTracker(repo)
	require.NoError(t, restored.Load(ctx))
	assert.InDelta(t, tr.Score("beat-wire"), restored.Score("beat-wire"), 1e-9)
	assert.True(t, restored.IsSuppressed("rumor-mill"))
}
