package models

import (
	"time"
)

// RatingPoint is one entry in a team's rating history
type RatingPoint struct {
	Value      float64   `db:"value" json:"value"`
	GameID     string    `db:"game_id" json:"game_id"`
	RecordedAt time.Time `db:"recorded_at" json:"recorded_at"`
}

// TeamRating is the persistent strength estimate for a team
type TeamRating struct {
	TeamID      string        `db:"team_id" json:"team_id" validate:"required"`
	League      string        `db:"league" json:"league" validate:"required"`
	Rating      float64       `db:"rating" json:"rating"`
	LastUpdated time.Time     `db:"last_updated" json:"last_updated"`
	Version     int           `db:"version" json:"version"`
	History     []RatingPoint `db:"-" json:"history,omitempty"`
}

// Clone returns a deep copy so callers never share the history slice
func (r *TeamRating) Clone() *TeamRating {
	if r == nil {
		return nil
	}
	cp := *r
	cp.History = append([]RatingPoint(nil), r.History...)
	return &cp
}

// PreviousRating returns the rating before the most recent update
func (r *TeamRating) PreviousRating() (float64, bool) {
	if len(r.History) < 2 {
		return 0, false
	}
	return r.History[len(r.History)-2].Value, true
}
