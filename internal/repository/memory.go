package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/gridiron-edge/internal/models"
)

// MemoryRatingRepository implements RatingRepository in process
type MemoryRatingRepository struct {
	mu      sync.RWMutex
	ratings map[string]*models.TeamRating
}

// NewMemoryRatingRepository creates an empty in-memory rating store
func NewMemoryRatingRepository() *MemoryRatingRepository {
	return &MemoryRatingRepository{ratings: make(map[string]*models.TeamRating)}
}

// Get returns a copy of the stored rating
func (m *MemoryRatingRepository) Get(_ context.Context, teamID string) (*models.TeamRating, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.ratings[teamID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return r.Clone(), nil
}

// Create stores an initial rating
func (m *MemoryRatingRepository) Create(_ context.Context, rating *models.TeamRating) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ratings[rating.TeamID]; ok {
		return fmt.Errorf("rating for %s: %w", rating.TeamID, models.ErrDuplicateKey)
	}
	m.ratings[rating.TeamID] = rating.Clone()
	return nil
}

// Append adds a history point and moves the current rating
func (m *MemoryRatingRepository) Append(_ context.Context, teamID string, expectedVersion int, point models.RatingPoint) (*models.TeamRating, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.ratings[teamID]
	if !ok {
		return nil, models.ErrNotFound
	}
	for _, p := range r.History {
		if p.GameID == point.GameID {
			return nil, fmt.Errorf("game %s for %s: %w", point.GameID, teamID, models.ErrDuplicateKey)
		}
	}
	if r.Version != expectedVersion {
		return nil, fmt.Errorf("team %s at version %d: %w", teamID, expectedVersion, ErrVersionConflict)
	}
	r.History = append(r.History, point)
	r.Rating = point.Value
	r.LastUpdated = point.RecordedAt
	r.Version++
	return r.Clone(), nil
}

// History returns a copy of the team's history
func (m *MemoryRatingRepository) History(_ context.Context, teamID string) ([]models.RatingPoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.ratings[teamID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return append([]models.RatingPoint(nil), r.History...), nil
}

// ListByLeague returns the ratings of a league ordered by rating descending
func (m *MemoryRatingRepository) ListByLeague(_ context.Context, league string) ([]*models.TeamRating, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.TeamRating
	for _, r := range m.ratings {
		if r.League == league {
			cp := r.Clone()
			cp.History = nil
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rating == out[j].Rating {
			return out[i].TeamID < out[j].TeamID
		}
		return out[i].Rating > out[j].Rating
	})
	return out, nil
}

// MemoryGameRepository implements GameRepository in process
type MemoryGameRepository struct {
	mu    sync.RWMutex
	games map[string]models.GameRecord
}

// NewMemoryGameRepository creates an empty in-memory game store
func NewMemoryGameRepository() *MemoryGameRepository {
	return &MemoryGameRepository{games: make(map[string]models.GameRecord)}
}

// Upsert stores a game unless a completed copy is already stored
func (m *MemoryGameRepository) Upsert(_ context.Context, game *models.GameRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.games[game.GameID]; ok && existing.IsCompleted() {
		return nil
	}
	m.games[game.GameID] = *game
	return nil
}

// GetByID returns a copy of a stored game
func (m *MemoryGameRepository) GetByID(_ context.Context, gameID string) (*models.GameRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.games[gameID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &g, nil
}

// GetCompleted returns completed games of a league in completion order
func (m *MemoryGameRepository) GetCompleted(_ context.Context, league string, start, end time.Time) ([]*models.GameRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.GameRecord
	for _, g := range m.games {
		g := g
		at := g.CompletionTime()
		if g.League == league && g.IsCompleted() && !at.Before(start) && !at.After(end) {
			out = append(out, &g)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CompletionTime().Before(out[j].CompletionTime())
	})
	return out, nil
}

// MemoryMarketLineRepository implements MarketLineRepository in process
type MemoryMarketLineRepository struct {
	mu    sync.RWMutex
	lines map[string][]models.MarketLine
}

// NewMemoryMarketLineRepository creates an empty in-memory line store
func NewMemoryMarketLineRepository() *MemoryMarketLineRepository {
	return &MemoryMarketLineRepository{lines: make(map[string][]models.MarketLine)}
}

// Insert appends a line observation
func (m *MemoryMarketLineRepository) Insert(_ context.Context, line *models.MarketLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines[line.GameID] = append(m.lines[line.GameID], *line)
	return nil
}

// InsertBatch appends many observations
func (m *MemoryMarketLineRepository) InsertBatch(ctx context.Context, lines []*models.MarketLine) error {
	for _, line := range lines {
		if err := m.Insert(ctx, line); err != nil {
			return err
		}
	}
	return nil
}

// GetByGame returns a game's observations oldest first
func (m *MemoryMarketLineRepository) GetByGame(_ context.Context, gameID string) ([]*models.MarketLine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stored := m.lines[gameID]
	out := make([]*models.MarketLine, 0, len(stored))
	for i := range stored {
		l := stored[i]
		out = append(out, &l)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ObservedAt.Before(out[j].ObservedAt) })
	return out, nil
}

// MemoryEventRepository implements EventRepository in process
type MemoryEventRepository struct {
	mu     sync.RWMutex
	events []models.EFactorEvent
	ids    map[uuid.UUID]bool
}

// NewMemoryEventRepository creates an empty in-memory event store
func NewMemoryEventRepository() *MemoryEventRepository {
	return &MemoryEventRepository{ids: make(map[uuid.UUID]bool)}
}

// Insert appends an event
func (m *MemoryEventRepository) Insert(_ context.Context, event *models.EFactorEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ids[event.EventID] {
		return fmt.Errorf("event %s: %w", event.EventID, models.ErrDuplicateKey)
	}
	m.ids[event.EventID] = true
	m.events = append(m.events, *event)
	return nil
}

// GetByTeam returns a team's events at or after since, oldest first
func (m *MemoryEventRepository) GetByTeam(_ context.Context, teamID string, since time.Time) ([]*models.EFactorEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.EFactorEvent
	for i := range m.events {
		ev := m.events[i]
		if ev.TeamID == teamID && !ev.OccurredAt.Before(since) {
			out = append(out, &ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}

// MemorySourceQualityRepository implements SourceQualityRepository in process
type MemorySourceQualityRepository struct {
	mu      sync.RWMutex
	records map[string]models.SourceQualityRecord
}

// NewMemorySourceQualityRepository creates an empty in-memory source store
func NewMemorySourceQualityRepository() *MemorySourceQualityRepository {
	return &MemorySourceQualityRepository{records: make(map[string]models.SourceQualityRecord)}
}

// Upsert stores the latest snapshot of a source
func (m *MemorySourceQualityRepository) Upsert(_ context.Context, record *models.SourceQualityRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[record.SourceID] = *record
	return nil
}

// GetAll returns every stored snapshot ordered by source id
func (m *MemorySourceQualityRepository) GetAll(_ context.Context) ([]*models.SourceQualityRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.SourceQualityRecord, 0, len(m.records))
	for _, r := range m.records {
		r := r
		out = append(out, &r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceID < out[j].SourceID })
	return out, nil
}

// MemoryPredictionRepository implements PredictionRepository in process
type MemoryPredictionRepository struct {
	mu          sync.RWMutex
	predictions map[uuid.UUID]models.PredictionRecord
	outcomes    map[uuid.UUID]models.OutcomeRecord
}

// NewMemoryPredictionRepository creates an empty in-memory prediction store
func NewMemoryPredictionRepository() *MemoryPredictionRepository {
	return &MemoryPredictionRepository{
		predictions: make(map[uuid.UUID]models.PredictionRecord),
		outcomes:    make(map[uuid.UUID]models.OutcomeRecord),
	}
}

// Create stores a prediction, enforcing one active prediction per game and market
func (m *MemoryPredictionRepository) Create(_ context.Context, prediction *models.PredictionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.predictions[prediction.ID]; ok {
		return fmt.Errorf("prediction %s: %w", prediction.ID, models.ErrDuplicateKey)
	}
	if prediction.IsActive() {
		for _, p := range m.predictions {
			if p.IsActive() && p.GameID == prediction.GameID && p.MarketType == prediction.MarketType {
				return fmt.Errorf("active prediction for %s/%s: %w", prediction.GameID, prediction.MarketType, models.ErrDuplicateKey)
			}
		}
	}
	m.predictions[prediction.ID] = copyPrediction(prediction)
	return nil
}

// GetByID returns a copy of a prediction
func (m *MemoryPredictionRepository) GetByID(_ context.Context, id uuid.UUID) (*models.PredictionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.predictions[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := copyPrediction(&p)
	return &cp, nil
}

// GetActive returns the unresolved prediction for a game and market
func (m *MemoryPredictionRepository) GetActive(_ context.Context, gameID string, marketType models.MarketType) (*models.PredictionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.predictions {
		if p.IsActive() && p.GameID == gameID && p.MarketType == marketType {
			cp := copyPrediction(&p)
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

// AttachOutcome stores the outcome and transitions the prediction under one lock
func (m *MemoryPredictionRepository) AttachOutcome(_ context.Context, outcome *models.OutcomeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.predictions[outcome.PredictionID]
	if !ok {
		return &models.CalibrationIntegrityError{PredictionID: outcome.PredictionID, Reason: "prediction not found"}
	}
	if !p.IsActive() {
		return &models.CalibrationIntegrityError{PredictionID: outcome.PredictionID, Reason: "prediction already resolved"}
	}
	p.Status = models.PredictionOutcomeRecorded
	m.predictions[p.ID] = p
	m.outcomes[p.ID] = *outcome
	return nil
}

// MarkAnalyzed moves a prediction from outcome_recorded to analyzed
func (m *MemoryPredictionRepository) MarkAnalyzed(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.predictions[id]
	if !ok || p.Status != models.PredictionOutcomeRecorded {
		return models.ErrNotFound
	}
	p.Status = models.PredictionAnalyzed
	m.predictions[id] = p
	return nil
}

// GetOutcome returns the outcome linked to a prediction
func (m *MemoryPredictionRepository) GetOutcome(_ context.Context, predictionID uuid.UUID) (*models.OutcomeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.outcomes[predictionID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &o, nil
}

// GetResolved returns predictions with outcomes recorded in the window
func (m *MemoryPredictionRepository) GetResolved(_ context.Context, league string, start, end time.Time) ([]models.ResolvedPrediction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.ResolvedPrediction
	for id, o := range m.outcomes {
		o := o
		p := m.predictions[id]
		if league != "" && p.League != league {
			continue
		}
		if o.RecordedAt.Before(start) || o.RecordedAt.After(end) {
			continue
		}
		cp := copyPrediction(&p)
		out = append(out, models.ResolvedPrediction{Prediction: &cp, Outcome: &o})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Outcome, out[j].Outcome
		if a.RecordedAt.Equal(b.RecordedAt) {
			return a.ID.String() < b.ID.String()
		}
		return a.RecordedAt.Before(b.RecordedAt)
	})
	return out, nil
}

// Count returns the number of stored predictions and outcomes
func (m *MemoryPredictionRepository) Count() (predictions, outcomes int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.predictions), len(m.outcomes)
}

func copyPrediction(p *models.PredictionRecord) models.PredictionRecord {
	cp := *p
	cp.ContributingSources = append([]string(nil), p.ContributingSources...)
	cp.Contributions = append([]models.SourceContribution(nil), p.Contributions...)
	return cp
}
