package efactor

import (
	"math"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/gridiron-edge/internal/models"
)

// Defaults for Config
const (
	DefaultPerTeamCap      = 7.0
	DefaultConfidenceBound = 0.20
)

// Config holds aggregation limits and the decay table
type Config struct {
	PerTeamCap      float64
	ConfidenceBound float64
	Decay           DecayTable
}

// DefaultConfig returns the default cap, confidence bound and decay table
func DefaultConfig() Config {
	return Config{
		PerTeamCap:      DefaultPerTeamCap,
		ConfidenceBound: DefaultConfidenceBound,
		Decay:           DefaultDecayTable(),
	}
}

// SourceScorer exposes source reliability to the aggregator
type SourceScorer interface {
	Score(sourceID string) float64
	IsSuppressed(sourceID string) bool
}

// TeamAdjustment is the aggregated E-Factor state of one team at a point in time
type TeamAdjustment struct {
	TeamID string
	// Points is the capped sum of current impacts, positive when it helps the team
	Points    float64
	RawPoints float64
	Capped    bool
	// Confidence shifts the recommendation confidence, never the points
	Confidence    float64
	Contributions []models.SourceContribution
	Sources       []string
	EventTypes    []models.EventType
	ActiveEvents  int
	Skipped       int
}

// Aggregator converts raw events into a TeamAdjustment
type Aggregator struct {
	cfg    Config
	scorer SourceScorer
	log    *logrus.Entry
}

// NewAggregator creates an aggregator. Missing config values fall back to defaults.
func NewAggregator(cfg Config, scorer SourceScorer, log *logrus.Logger) *Aggregator {
	if cfg.PerTeamCap <= 0 {
		cfg.PerTeamCap = DefaultPerTeamCap
	}
	if cfg.ConfidenceBound <= 0 {
		cfg.ConfidenceBound = DefaultConfidenceBound
	}
	if cfg.Decay == nil {
		cfg.Decay = DefaultDecayTable()
	}
	return &Aggregator{cfg: cfg, scorer: scorer, log: log.WithField("component", "efactor")}
}

// ConfidenceBound is the largest absolute confidence shift a team can carry
func (a *Aggregator) ConfidenceBound() float64 {
	return a.cfg.ConfidenceBound
}

// Decay returns the decay parameters of an event type
func (a *Aggregator) Decay(t models.EventType) (DecayParams, bool) {
	p, ok := a.cfg.Decay[t]
	return p, ok
}

// TeamAdjustment sums the current impacts of the team's active events as of asOf.
// Events after asOf, events superseded by a later report, events from
// suppressed sources and events past their max age contribute nothing.
// A nil or empty event slice yields a zero adjustment.
func (a *Aggregator) TeamAdjustment(teamID string, events []*models.EFactorEvent, asOf time.Time) TeamAdjustment {
	adj := TeamAdjustment{TeamID: teamID}

	visible := make([]*models.EFactorEvent, 0, len(events))
	for _, ev := range events {
		if ev == nil || ev.TeamID != teamID || ev.OccurredAt.After(asOf) {
			continue
		}
		visible = append(visible, ev)
	}

	superseded := make(map[string]bool)
	for _, ev := range visible {
		if ev.SupersedesID != nil {
			superseded[ev.SupersedesID.String()] = true
		}
	}

	// fixed order keeps float sums reproducible
	sort.Slice(visible, func(i, j int) bool {
		if visible[i].OccurredAt.Equal(visible[j].OccurredAt) {
			return visible[i].EventID.String() < visible[j].EventID.String()
		}
		return visible[i].OccurredAt.Before(visible[j].OccurredAt)
	})

	sources := make(map[string]bool)
	types := make(map[models.EventType]bool)
	for _, ev := range visible {
		if superseded[ev.EventID.String()] {
			continue
		}
		if a.scorer != nil && a.scorer.IsSuppressed(ev.SourceID) {
			adj.Skipped++
			continue
		}
		params, ok := a.cfg.Decay[ev.Type]
		if !ok {
			adj.Skipped++
			a.log.WithFields(logrus.Fields{"event_id": ev.EventID.String(), "event_type": ev.Type}).Warn("Unknown event type ignored")
			continue
		}

		age := ev.Age(asOf)
		fraction := Fraction(age, params)
		if fraction == 0 {
			continue
		}

		impact := ev.Magnitude * fraction
		adj.RawPoints += impact
		adj.ActiveEvents++
		adj.Contributions = append(adj.Contributions, models.SourceContribution{
			SourceID:  ev.SourceID,
			EventType: ev.Type,
			Points:    impact,
		})
		sources[ev.SourceID] = true
		types[ev.Type] = true

		adj.Confidence += signalStrength(math.Abs(ev.Magnitude)) * fraction * (2*a.quality(ev) - 1)
	}

	adj.Points = clamp(adj.RawPoints, -a.cfg.PerTeamCap, a.cfg.PerTeamCap)
	adj.Capped = adj.Points != adj.RawPoints
	adj.Confidence = clamp(adj.Confidence, -a.cfg.ConfidenceBound, a.cfg.ConfidenceBound)

	for s := range sources {
		adj.Sources = append(adj.Sources, s)
	}
	sort.Strings(adj.Sources)
	for t := range types {
		adj.EventTypes = append(adj.EventTypes, t)
	}
	sort.Slice(adj.EventTypes, func(i, j int) bool { return adj.EventTypes[i] < adj.EventTypes[j] })

	return adj
}

// quality is the reporter's confidence scaled by the source score, in [0, 1].
// A neutral source reported with full confidence sits at 0.5 and shifts nothing.
func (a *Aggregator) quality(ev *models.EFactorEvent) float64 {
	score := 0.5
	if a.scorer != nil {
		score = a.scorer.Score(ev.SourceID)
	}
	return clamp(ev.ReporterConfidence, 0, 1) * clamp(score, 0, 1)
}

// signalStrength classifies an event magnitude into a confidence weight
func signalStrength(absMagnitude float64) float64 {
	switch {
	case absMagnitude >= 3:
		return 0.10
	case absMagnitude >= 1:
		return 0.06
	default:
		return 0.03
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
