package models

import (
	"time"
)

// GameRecord represents a scheduled or completed matchup
type GameRecord struct {
	GameID           string     `db:"game_id" json:"game_id" validate:"required"`
	League           string     `db:"league" json:"league" validate:"required"`
	HomeTeamID       string     `db:"home_team_id" json:"home_team_id" validate:"required"`
	AwayTeamID       string     `db:"away_team_id" json:"away_team_id" validate:"required,nefield=HomeTeamID"`
	Kickoff          time.Time  `db:"kickoff" json:"kickoff" validate:"required"`
	Venue            string     `db:"venue" json:"venue"`
	NeutralSite      bool       `db:"neutral_site" json:"neutral_site"`
	Season           int        `db:"season" json:"season"`
	Week             int        `db:"week" json:"week"`
	HomeScore        *int       `db:"home_score" json:"home_score"`
	AwayScore        *int       `db:"away_score" json:"away_score"`
	CompletedAt      *time.Time `db:"completed_at" json:"completed_at"`
	// InjuryDifferential is in points, positive when injuries favour the home team
	InjuryDifferential float64 `db:"injury_differential" json:"injury_differential"`
}

// IsCompleted checks if final scores have been recorded
func (g *GameRecord) IsCompleted() bool {
	return g.HomeScore != nil && g.AwayScore != nil
}

// HomeMargin returns the final home score minus the away score
func (g *GameRecord) HomeMargin() float64 {
	if !g.IsCompleted() {
		return 0
	}
	return float64(*g.HomeScore - *g.AwayScore)
}

// CompletionTime returns when the game finished, falling back to kickoff
func (g *GameRecord) CompletionTime() time.Time {
	if g.CompletedAt != nil {
		return *g.CompletedAt
	}
	return g.Kickoff
}
