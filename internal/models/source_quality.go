package models

import (
	"time"
)

// SourceType groups sources by the feed they contribute to
type SourceType string

const (
	SourceTypeOdds    SourceType = "odds"
	SourceTypeEvents  SourceType = "events"
	SourceTypeWeather SourceType = "weather"
	SourceTypeGames   SourceType = "games"
)

// SourceQualityRecord holds the rolling reliability scores of an upstream source
type SourceQualityRecord struct {
	SourceID         string        `db:"source_id" json:"source_id" validate:"required"`
	SourceType       SourceType    `db:"source_type" json:"source_type"`
	Accuracy         float64       `db:"accuracy" json:"accuracy" validate:"gte=0,lte=1"`
	Coverage         float64       `db:"coverage" json:"coverage" validate:"gte=0,lte=1"`
	AvgLatency       time.Duration `db:"avg_latency" json:"avg_latency"`
	Consistency      float64       `db:"consistency" json:"consistency" validate:"gte=0,lte=1"`
	Agreement        float64       `db:"agreement" json:"agreement" validate:"gte=0,lte=1"`
	OverallScore     float64       `db:"overall_score" json:"overall_score" validate:"gte=0,lte=1"`
	Observations     int           `db:"observations" json:"observations"`
	Suppressed       bool          `db:"suppressed" json:"suppressed"`
	SuppressedReason string        `db:"suppressed_reason" json:"suppressed_reason,omitempty"`
	UpdatedAt        time.Time     `db:"updated_at" json:"updated_at"`
}

// EffectiveScore returns zero for suppressed sources and the overall score otherwise
func (r *SourceQualityRecord) EffectiveScore() float64 {
	if r.Suppressed {
		return 0
	}
	return r.OverallScore
}
