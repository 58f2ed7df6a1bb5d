package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates the situational signals tracked as E-Factors
type EventType string

const (
	EventKeyPlayerOut        EventType = "key_player_out"
	EventPositionGroupInjury EventType = "position_group_injury"
	EventCoachingChange      EventType = "coaching_change"
	EventTrade               EventType = "trade"
	EventRelease             EventType = "release"
	EventSigning             EventType = "signing"
	EventPlayoffImplication  EventType = "playoff_implication"
	EventRestAdvantage       EventType = "rest_advantage"
	EventTravelFatigue       EventType = "travel_fatigue"
	EventNewsSentiment       EventType = "news_sentiment"
)

// AllEventTypes lists every known event type
var AllEventTypes = []EventType{
	EventKeyPlayerOut,
	EventPositionGroupInjury,
	EventCoachingChange,
	EventTrade,
	EventRelease,
	EventSigning,
	EventPlayoffImplication,
	EventRestAdvantage,
	EventTravelFatigue,
	EventNewsSentiment,
}

// IsValid checks the event type against the known set
func (t EventType) IsValid() bool {
	for _, known := range AllEventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// EFactorEvent is an immutable situational event reported by a source
type EFactorEvent struct {
	EventID            uuid.UUID  `db:"event_id" json:"event_id" validate:"required"`
	TeamID             string     `db:"team_id" json:"team_id" validate:"required"`
	Type               EventType  `db:"event_type" json:"event_type" validate:"required"`
	Magnitude          float64    `db:"magnitude" json:"magnitude"`
	OccurredAt         time.Time  `db:"occurred_at" json:"occurred_at" validate:"required"`
	SourceID           string     `db:"source_id" json:"source_id" validate:"required"`
	ReporterConfidence float64    `db:"reporter_confidence" json:"reporter_confidence" validate:"gte=0,lte=1"`
	SupersedesID       *uuid.UUID `db:"supersedes_id" json:"supersedes_id,omitempty"`
	Description        string     `db:"description" json:"description"`
	RecordedAt         time.Time  `db:"recorded_at" json:"recorded_at"`
}

// Age returns the elapsed time since the event occurred
func (e *EFactorEvent) Age(asOf time.Time) time.Duration {
	return asOf.Sub(e.OccurredAt)
}
