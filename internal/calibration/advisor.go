package calibration

import (
	"fmt"
	"sort"
	"time"

	"github.com/yourusername/gridiron-edge/internal/efactor"
	"github.com/yourusername/gridiron-edge/internal/models"
)

// AdvisoryKind names a recalibration recommendation
type AdvisoryKind string

const (
	AdvisoryRetuneRating     AdvisoryKind = "retune_rating"
	AdvisoryRaiseThreshold   AdvisoryKind = "raise_threshold"
	AdvisoryDownweightSource AdvisoryKind = "downweight_source"
	AdvisoryShortenHalfLife  AdvisoryKind = "shorten_half_life"
	AdvisoryBetTiming        AdvisoryKind = "bet_timing"
)

// Advisory is a textual recommendation. Advisories are never applied automatically.
type Advisory struct {
	Kind    AdvisoryKind `json:"kind"`
	Subject string       `json:"subject,omitempty"`
	Message string       `json:"message"`
}

// DecaySuggestion proposes a shorter half-life for an event type whose
// signals have not held up
type DecaySuggestion struct {
	Type              models.EventType `json:"type"`
	CurrentHalfLife   time.Duration    `json:"current_half_life"`
	SuggestedHalfLife time.Duration    `json:"suggested_half_life"`
	Accuracy          float64          `json:"accuracy"`
}

// Thresholds drive the advisory rules
type Thresholds struct {
	RMSECeiling float64
	ATSFloor    float64
	SourceFloor float64
	MinSample   int
}

// DefaultThresholds returns the configured defaults
func DefaultThresholds() Thresholds {
	return Thresholds{RMSECeiling: 13.5, ATSFloor: 0.524, SourceFloor: 0.45, MinSample: 20}
}

// DecayLookup exposes the decay parameters currently in use
type DecayLookup interface {
	Decay(t models.EventType) (efactor.DecayParams, bool)
}

// Advise turns metrics into advisories and half-life suggestions
func Advise(m Metrics, th Thresholds, decay DecayLookup) ([]Advisory, []DecaySuggestion) {
	var advisories []Advisory
	var suggestions []DecaySuggestion

	if m.Predictions == 0 {
		return advisories, suggestions
	}

	if m.EdgeRMSE > th.RMSECeiling {
		advisories = append(advisories, Advisory{
			Kind:    AdvisoryRetuneRating,
			Message: fmt.Sprintf("edge RMSE %.2f exceeds %.2f; re-tune the rating recurrence", m.EdgeRMSE, th.RMSECeiling),
		})
	}

	if decided := m.Wins + m.Losses; decided >= th.MinSample && m.ATSWinRate < th.ATSFloor {
		advisories = append(advisories, Advisory{
			Kind:    AdvisoryRaiseThreshold,
			Message: fmt.Sprintf("ATS win rate %.3f over %d decided below %.3f; raise the minimum edge threshold", m.ATSWinRate, decided, th.ATSFloor),
		})
	}

	sources := make([]string, 0, len(m.SourceAccuracy))
	for id := range m.SourceAccuracy {
		sources = append(sources, id)
	}
	sort.Strings(sources)
	for _, id := range sources {
		acc := m.SourceAccuracy[id]
		if acc.Samples >= th.MinSample && acc.Rate < th.SourceFloor {
			advisories = append(advisories, Advisory{
				Kind:    AdvisoryDownweightSource,
				Subject: id,
				Message: fmt.Sprintf("source %s accuracy %.3f over %d below %.3f; down-weight it", id, acc.Rate, acc.Samples, th.SourceFloor),
			})
		}
	}

	types := make([]models.EventType, 0, len(m.EventTypeAccuracy))
	for t := range m.EventTypeAccuracy {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	for _, t := range types {
		acc := m.EventTypeAccuracy[t]
		if acc.Samples < th.MinSample || acc.Rate >= th.SourceFloor || decay == nil {
			continue
		}
		params, ok := decay.Decay(t)
		if !ok {
			continue
		}
		s := DecaySuggestion{
			Type:              t,
			CurrentHalfLife:   params.HalfLife,
			SuggestedHalfLife: SuggestHalfLife(params.HalfLife, acc.Rate, th.SourceFloor),
			Accuracy:          acc.Rate,
		}
		suggestions = append(suggestions, s)
		advisories = append(advisories, Advisory{
			Kind:    AdvisoryShortenHalfLife,
			Subject: string(t),
			Message: fmt.Sprintf("%s accuracy %.3f below %.3f; shorten half-life from %s to %s", t, acc.Rate, th.SourceFloor, s.CurrentHalfLife, s.SuggestedHalfLife),
		})
	}

	if m.MeanCLV < 0 {
		advisories = append(advisories, Advisory{
			Kind:    AdvisoryBetTiming,
			Message: fmt.Sprintf("mean closing line value %.2f is negative; bets are placed after the market moves", m.MeanCLV),
		})
	}

	return advisories, suggestions
}

// SuggestHalfLife scales the half-life by accuracy relative to the floor, never
// below half of the current value, rounded to the hour
func SuggestHalfLife(current time.Duration, accuracy, floor float64) time.Duration {
	if floor <= 0 {
		return current
	}
	ratio := accuracy / floor
	if ratio < 0.5 {
		ratio = 0.5
	}
	if ratio > 1 {
		ratio = 1
	}
	return time.Duration(float64(current) * ratio).Round(time.Hour)
}
