package rating

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/gridiron-edge/internal/logger"
	"github.com/yourusername/gridiron-edge/internal/metrics"
	"github.com/yourusername/gridiron-edge/internal/models"
	"github.com/yourusername/gridiron-edge/internal/repository"
)

// SeedGameID marks the history point written by Seed
const SeedGameID = "preseason"

// Transactor runs fn inside one storage transaction
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(context.Context) error) error
}

// TeamUpdate is the rating change of one team for one game
type TeamUpdate struct {
	TeamID          string
	Old             float64
	New             float64
	TruePerformance float64
}

// Update is the result of applying a completed game
type Update struct {
	GameID string
	Home   TeamUpdate
	Away   TeamUpdate
}

// Engine is the only writer of team ratings
type Engine struct {
	repo  repository.RatingRepository
	tx    Transactor
	hfa   float64
	locks *teamLocks
	log   *logger.RatingLogger

	mu       sync.Mutex
	deferred []*models.GameRecord

	replayMu sync.Mutex
}

// Option configures an Engine
type Option func(*Engine)

// WithTransactor makes both team updates of a game commit together
func WithTransactor(tx Transactor) Option {
	return func(e *Engine) { e.tx = tx }
}

// NewEngine creates a rating engine over the given repository
func NewEngine(repo repository.RatingRepository, hfa float64, log *logrus.Logger, opts ...Option) *Engine {
	e := &Engine{
		repo:  repo,
		hfa:   hfa,
		locks: newTeamLocks(),
		log:   logger.NewRatingLogger(log),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HomeFieldAdvantage returns the configured home-field constant
func (e *Engine) HomeFieldAdvantage() float64 {
	return e.hfa
}

// Seed creates the initial rating of a team. Seeding an existing team
// returns ErrDuplicateKey.
func (e *Engine) Seed(ctx context.Context, teamID, league string, value float64) error {
	unlock := e.locks.lock(teamID)
	defer unlock()

	err := e.repo.Create(ctx, &models.TeamRating{
		TeamID:  teamID,
		League:  league,
		Rating:  value,
		History: []models.RatingPoint{{Value: value, GameID: SeedGameID}},
	})
	if err != nil {
		return fmt.Errorf("failed to seed %s: %w", teamID, err)
	}
	e.log.WithFields(logrus.Fields{"team_id": teamID, "league": league, "rating": value}).Info("Rating seeded")
	return nil
}

// Get returns the current rating of a team
func (e *Engine) Get(ctx context.Context, teamID string) (*models.TeamRating, error) {
	return e.repo.Get(ctx, teamID)
}

// League returns the ratings of a league, highest first
func (e *Engine) League(ctx context.Context, league string) ([]*models.TeamRating, error) {
	return e.repo.ListByLeague(ctx, league)
}

// ApplyGame updates both teams of a completed game from their pre-game ratings.
// When a rating is missing, or either team already waits on a deferred game,
// the game is queued and an error wrapping ErrRatingDeferred is returned.
func (e *Engine) ApplyGame(ctx context.Context, game *models.GameRecord) (*Update, error) {
	if game == nil || !game.IsCompleted() {
		return nil, fmt.Errorf("game has no final score: %w", models.ErrDataUnavailable)
	}

	unlock := e.locks.lock(game.HomeTeamID, game.AwayTeamID)
	defer unlock()

	if e.hasPending(game) {
		e.enqueue(game, "team has an earlier deferred game")
		return nil, fmt.Errorf("game %s: %w", game.GameID, models.ErrRatingDeferred)
	}

	upd, err := e.apply(ctx, game)
	if errors.Is(err, models.ErrNotFound) {
		e.enqueue(game, "rating unavailable")
		return nil, fmt.Errorf("game %s: %w", game.GameID, models.ErrRatingDeferred)
	}
	if err != nil {
		metrics.RecordRatingUpdate(resultLabel(err))
		return nil, err
	}
	metrics.RecordRatingUpdate("applied")
	return upd, nil
}

// apply runs the recurrence for both teams. Callers hold both team locks.
func (e *Engine) apply(ctx context.Context, game *models.GameRecord) (*Update, error) {
	home, err := e.repo.Get(ctx, game.HomeTeamID)
	if err != nil {
		return nil, fmt.Errorf("home rating %s: %w", game.HomeTeamID, err)
	}
	away, err := e.repo.Get(ctx, game.AwayTeamID)
	if err != nil {
		return nil, fmt.Errorf("away rating %s: %w", game.AwayTeamID, err)
	}

	completed := game.CompletionTime()
	for _, r := range []*models.TeamRating{home, away} {
		for _, p := range r.History {
			if p.GameID == game.GameID {
				return nil, fmt.Errorf("game %s already applied to %s: %w", game.GameID, r.TeamID, models.ErrDuplicateKey)
			}
		}
		if completed.Before(r.LastUpdated) {
			return nil, fmt.Errorf("game %s completed %s before %s last update %s: %w",
				game.GameID, completed.Format(time.RFC3339), r.TeamID, r.LastUpdated.Format(time.RFC3339), models.ErrOutOfOrder)
		}
	}

	homeLoc, awayLoc := Home, Away
	if game.NeutralSite {
		homeLoc, awayLoc = Neutral, Neutral
	}
	margin := game.HomeMargin()

	upd := &Update{
		GameID: game.GameID,
		Home: TeamUpdate{
			TeamID:          home.TeamID,
			Old:             home.Rating,
			TruePerformance: TruePerformance(margin, away.Rating, game.InjuryDifferential, homeLoc, e.hfa),
		},
		Away: TeamUpdate{
			TeamID:          away.TeamID,
			Old:             away.Rating,
			TruePerformance: TruePerformance(-margin, home.Rating, -game.InjuryDifferential, awayLoc, e.hfa),
		},
	}
	upd.Home.New = UpdateRating(home.Rating, away.Rating, margin, game.InjuryDifferential, homeLoc, e.hfa)
	upd.Away.New = UpdateRating(away.Rating, home.Rating, -margin, -game.InjuryDifferential, awayLoc, e.hfa)

	write := func(txCtx context.Context) error {
		if _, err := e.repo.Append(txCtx, home.TeamID, home.Version,
			models.RatingPoint{Value: upd.Home.New, GameID: game.GameID, RecordedAt: completed}); err != nil {
			return fmt.Errorf("failed to append home rating: %w", err)
		}
		if _, err := e.repo.Append(txCtx, away.TeamID, away.Version,
			models.RatingPoint{Value: upd.Away.New, GameID: game.GameID, RecordedAt: completed}); err != nil {
			return fmt.Errorf("failed to append away rating: %w", err)
		}
		return nil
	}
	if e.tx != nil {
		err = e.tx.WithTransaction(ctx, write)
	} else {
		err = write(ctx)
	}
	if err != nil {
		return nil, err
	}

	e.log.LogRatingUpdate(home.TeamID, game.GameID, upd.Home.Old, upd.Home.New, upd.Home.TruePerformance)
	e.log.LogRatingUpdate(away.TeamID, game.GameID, upd.Away.Old, upd.Away.New, upd.Away.TruePerformance)
	return upd, nil
}

func (e *Engine) hasPending(game *models.GameRecord) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, g := range e.deferred {
		if g.GameID == game.GameID {
			return true
		}
		if involves(g, game.HomeTeamID) || involves(g, game.AwayTeamID) {
			return true
		}
	}
	return false
}

func (e *Engine) enqueue(game *models.GameRecord, reason string) {
	e.mu.Lock()
	queued := false
	for _, g := range e.deferred {
		if g.GameID == game.GameID {
			queued = true
			break
		}
	}
	if !queued {
		cp := *game
		e.deferred = append(e.deferred, &cp)
	}
	depth := len(e.deferred)
	e.mu.Unlock()

	metrics.RecordRatingUpdate("deferred")
	metrics.UpdateDeferredGames(depth)
	e.log.LogRatingDeferred(game.GameID, reason, depth)
}

// Deferred returns the ids of queued games in completion order
func (e *Engine) Deferred() []string {
	games := e.snapshotDeferred()
	ids := make([]string, len(games))
	for i, g := range games {
		ids[i] = g.GameID
	}
	return ids
}

func (e *Engine) snapshotDeferred() []*models.GameRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	games := append([]*models.GameRecord(nil), e.deferred...)
	sort.SliceStable(games, func(i, j int) bool {
		ti, tj := games[i].CompletionTime(), games[j].CompletionTime()
		if ti.Equal(tj) {
			return games[i].GameID < games[j].GameID
		}
		return ti.Before(tj)
	})
	return games
}

// ReplayDeferred applies queued games in chronological completion order. A game
// stays queued while a rating is still missing, and so does every later game of
// the same teams. Games that were already applied or can no longer be applied in
// order are dropped and logged. It returns the number of games applied.
func (e *Engine) ReplayDeferred(ctx context.Context) (int, error) {
	e.replayMu.Lock()
	defer e.replayMu.Unlock()

	games := e.snapshotDeferred()
	blocked := make(map[string]bool)
	done := make(map[string]bool)
	applied := 0

	var replayErr error
	for _, game := range games {
		if ctx.Err() != nil {
			replayErr = ctx.Err()
			break
		}
		if blocked[game.HomeTeamID] || blocked[game.AwayTeamID] {
			blocked[game.HomeTeamID], blocked[game.AwayTeamID] = true, true
			continue
		}

		unlock := e.locks.lock(game.HomeTeamID, game.AwayTeamID)
		_, err := e.apply(ctx, game)
		unlock()

		switch {
		case err == nil:
			applied++
			done[game.GameID] = true
			metrics.RecordRatingUpdate("applied")
		case errors.Is(err, models.ErrNotFound):
			blocked[game.HomeTeamID], blocked[game.AwayTeamID] = true, true
		case errors.Is(err, models.ErrDuplicateKey), errors.Is(err, models.ErrOutOfOrder):
			done[game.GameID] = true
			metrics.RecordRatingUpdate(resultLabel(err))
			e.log.WithError(err).WithField("game_id", game.GameID).Warn("Deferred game dropped")
		default:
			blocked[game.HomeTeamID], blocked[game.AwayTeamID] = true, true
			if replayErr == nil {
				replayErr = fmt.Errorf("failed to replay game %s: %w", game.GameID, err)
			}
		}
	}

	e.mu.Lock()
	remaining := e.deferred[:0]
	for _, g := range e.deferred {
		if !done[g.GameID] {
			remaining = append(remaining, g)
		}
	}
	e.deferred = remaining
	depth := len(e.deferred)
	e.mu.Unlock()

	metrics.UpdateDeferredGames(depth)
	e.log.LogDeferredReplay(applied, depth)
	return applied, replayErr
}

func involves(g *models.GameRecord, teamID string) bool {
	return g.HomeTeamID == teamID || g.AwayTeamID == teamID
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, models.ErrDuplicateKey):
		return "duplicate"
	case errors.Is(err, models.ErrOutOfOrder):
		return "out_of_order"
	case errors.Is(err, repository.ErrVersionConflict):
		return "conflict"
	default:
		return "error"
	}
}
