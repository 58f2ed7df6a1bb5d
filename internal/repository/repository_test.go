package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/gridiron-edge/internal/database"
	"github.com/yourusername/gridiron-edge/internal/models"
)

var (
	_ RatingRepository        = (*MemoryRatingRepository)(nil)
	_ GameRepository          = (*MemoryGameRepository)(nil)
	_ MarketLineRepository    = (*MemoryMarketLineRepository)(nil)
	_ EventRepository         = (*MemoryEventRepository)(nil)
	_ SourceQualityRepository = (*MemorySourceQualityRepository)(nil)
	_ PredictionRepository    = (*MemoryPredictionRepository)(nil)
)

var t0 = time.Date(2024, 9, 8, 17, 0, 0, 0, time.UTC)

func newPrediction(gameID string) *models.PredictionRecord {
	return &models.PredictionRecord{
		ID:                  uuid.New(),
		GameID:              gameID,
		League:              "nfl",
		MarketType:          models.MarketTypeSpread,
		Side:                models.SideFavorite,
		PredictedEdge:       3.5,
		ContributingSources: []string{"beat-wire"},
		Status:              models.PredictionCreated,
		CreatedAt:           t0,
	}
}

func TestMemoryRatingAppendHistory(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRatingRepository()

	require.NoError(t, repo.Create(ctx, &models.TeamRating{
		TeamID: "KC", League: "nfl", Rating: 10, Version: 1, LastUpdated: t0,
		History: []models.RatingPoint{{Value: 10, RecordedAt: t0}},
	}))

	updated, err := repo.Append(ctx, "KC", 1, models.RatingPoint{Value: 10.08, GameID: "g1", RecordedAt: t0.Add(time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, 10.08, updated.Rating)
	assert.Equal(t, 2, updated.Version)
	assert.Len(t, updated.History, 2)

	_, err = repo.Append(ctx, "KC", 2, models.RatingPoint{Value: 11, GameID: "g1", RecordedAt: t0.Add(2 * time.Hour)})
	assert.ErrorIs(t, err, models.ErrDuplicateKey)

	_, err = repo.Append(ctx, "KC", 1, models.RatingPoint{Value: 11, GameID: "g2", RecordedAt: t0.Add(2 * time.Hour)})
	assert.ErrorIs(t, err, ErrVersionConflict)

	// returned copies never alias stored history
	updated.History[0].Value = -99
	history, err := repo.History(ctx, "KC")
	require.NoError(t, err)
	assert.Equal(t, 10.0, history[0].Value)
}

func TestMemoryRatingCreateDuplicate(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRatingRepository()
	require.NoError(t, repo.Create(ctx, &models.TeamRating{TeamID: "BUF", League: "nfl", Version: 1}))
	assert.ErrorIs(t, repo.Create(ctx, &models.TeamRating{TeamID: "BUF", League: "nfl", Version: 1}), models.ErrDuplicateKey)

	_, err := repo.Get(ctx, "NYJ")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestMemoryGameCompletedIsImmutable(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryGameRepository()
	home, away := 27, 20
	game := &models.GameRecord{GameID: "g1", League: "nfl", HomeTeamID: "KC", AwayTeamID: "BUF", Kickoff: t0, HomeScore: &home, AwayScore: &away}
	require.NoError(t, repo.Upsert(ctx, game))

	changed, otherAway := 30, 3
	require.NoError(t, repo.Upsert(ctx, &models.GameRecord{GameID: "g1", League: "nfl", HomeTeamID: "KC", AwayTeamID: "BUF", Kickoff: t0, HomeScore: &changed, AwayScore: &otherAway}))

	stored, err := repo.GetByID(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, 7.0, stored.HomeMargin())

	completed, err := repo.GetCompleted(ctx, "nfl", t0.Add(-time.Hour), t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, completed, 1)
}

func TestMemoryEventsAppendOnly(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryEventRepository()
	ev := &models.EFactorEvent{EventID: uuid.New(), TeamID: "KC", Type: models.EventKeyPlayerOut, Magnitude: -3, OccurredAt: t0, SourceID: "beat-wire"}

	require.NoError(t, repo.Insert(ctx, ev))
	assert.ErrorIs(t, repo.Insert(ctx, ev), models.ErrDuplicateKey)

	events, err := repo.GetByTeam(ctx, "KC", t0.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, -3.0, events[0].Magnitude)
}

func TestMemoryPredictionOneActivePerGameMarket(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryPredictionRepository()

	first := newPrediction("g1")
	require.NoError(t, repo.Create(ctx, first))
	assert.ErrorIs(t, repo.Create(ctx, newPrediction("g1")), models.ErrDuplicateKey)

	total := newPrediction("g1")
	total.MarketType = models.MarketTypeTotal
	require.NoError(t, repo.Create(ctx, total))

	active, err := repo.GetActive(ctx, "g1", models.MarketTypeSpread)
	require.NoError(t, err)
	assert.Equal(t, first.ID, active.ID)
}

func TestMemoryAttachOutcomeIntegrity(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryPredictionRepository()

	orphan := &models.OutcomeRecord{ID: uuid.New(), PredictionID: uuid.New(), Result: models.ResultWin, RecordedAt: t0}
	err := repo.AttachOutcome(ctx, orphan)
	var integrityErr *models.CalibrationIntegrityError
	require.True(t, errors.As(err, &integrityErr))
	assert.Equal(t, orphan.PredictionID, integrityErr.PredictionID)
	_, outcomes := repo.Count()
	assert.Zero(t, outcomes)

	p := newPrediction("g2")
	require.NoError(t, repo.Create(ctx, p))
	require.NoError(t, repo.AttachOutcome(ctx, &models.OutcomeRecord{ID: uuid.New(), PredictionID: p.ID, Result: models.ResultLoss, RecordedAt: t0}))

	err = repo.AttachOutcome(ctx, &models.OutcomeRecord{ID: uuid.New(), PredictionID: p.ID, Result: models.ResultWin, RecordedAt: t0})
	assert.ErrorIs(t, err, models.ErrCalibrationIntegrity)
	_, outcomes = repo.Count()
	assert.Equal(t, 1, outcomes)

	// a resolved prediction frees the slot for a new active one
	require.NoError(t, repo.Create(ctx, newPrediction("g2")))

	require.NoError(t, repo.MarkAnalyzed(ctx, p.ID))
	stored, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PredictionAnalyzed, stored.Status)
}

func TestMemoryAttachOutcomeConcurrent(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryPredictionRepository()
	p := newPrediction("g3")
	require.NoError(t, repo.Create(ctx, p))

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.AttachOutcome(ctx, &models.OutcomeRecord{ID: uuid.New(), PredictionID: p.ID, Result: models.ResultWin, RecordedAt: t0})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, succeeded)
}

func TestMemoryGetResolvedFilters(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryPredictionRepository()

	nfl := newPrediction("g4")
	ncaa := newPrediction("g5")
	ncaa.League = "ncaaf"
	require.NoError(t, repo.Create(ctx, nfl))
	require.NoError(t, repo.Create(ctx, ncaa))
	require.NoError(t, repo.AttachOutcome(ctx, &models.OutcomeRecord{ID: uuid.New(), PredictionID: nfl.ID, Result: models.ResultWin, RecordedAt: t0}))
	require.NoError(t, repo.AttachOutcome(ctx, &models.OutcomeRecord{ID: uuid.New(), PredictionID: ncaa.ID, Result: models.ResultWin, RecordedAt: t0.Add(48 * time.Hour)}))

	got, err := repo.GetResolved(ctx, "nfl", t0.Add(-time.Hour), t0.Add(100*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, nfl.ID, got[0].Prediction.ID)

	all, err := repo.GetResolved(ctx, "", t0.Add(-time.Hour), t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestPostgresPredictionRoundTrip(t *testing.T) {
	db := database.SetupTestDB(t)
	repos, err := NewRepositories(db)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	p := newPrediction("it-" + uuid.NewString())
	require.NoError(t, repos.Predictions.Create(ctx, p))
	assert.ErrorIs(t, repos.Predictions.Create(ctx, newPrediction(p.GameID)), models.ErrDuplicateKey)

	err = repos.Predictions.AttachOutcome(ctx, &models.OutcomeRecord{ID: uuid.New(), PredictionID: uuid.New(), Result: models.ResultWin, RecordedAt: time.Now()})
	assert.ErrorIs(t, err, models.ErrCalibrationIntegrity)
}
