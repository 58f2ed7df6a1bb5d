package efactor

import (
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/gridiron-edge/internal/models"
)

var asOf = time.Date(2024, 11, 10, 17, 0, 0, 0, time.UTC)

type stubScorer struct {
	scores     map[string]float64
	suppressed map[string]bool
}

func (s stubScorer) Score(id string) float64 {
	if s.suppressed[id] {
		return 0
	}
	if v, ok := s.scores[id]; ok {
		return v
	}
	return 0.5
}

func (s stubScorer) IsSuppressed(id string) bool { return s.suppressed[id] }

func newAggregator(scorer SourceScorer) *Aggregator {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewAggregator(DefaultConfig(), scorer, log)
}

func event(team string, typ models.EventType, magnitude float64, age time.Duration, source string) *models.EFactorEvent {
	return &models.EFactorEvent{
		EventID:            uuid.New(),
		TeamID:             team,
		Type:               typ,
		Magnitude:          magnitude,
		OccurredAt:         asOf.Add(-age),
		SourceID:           source,
		ReporterConfidence: 0.8,
	}
}

func TestDefaultTableCoversEveryEventType(t *testing.T) {
	table := DefaultDecayTable()
	for _, typ := range models.AllEventTypes {
		p, ok := table[typ]
		require.True(t, ok, typ)
		assert.Greater(t, p.HalfLife, time.Duration(0))
		assert.GreaterOrEqual(t, p.Floor, 0.0)
		assert.Less(t, p.Floor, 1.0)
		assert.Greater(t, p.MaxAge, p.HalfLife)
	}
}

func TestImpactMonotoneAndFloored(t *testing.T) {
	for typ, p := range DefaultDecayTable() {
		prev := Impact(-4, 0, p)
		assert.Equal(t, -4.0, prev, typ)
		for age := time.Hour; age <= p.MaxAge; age += 6 * time.Hour {
			cur := Impact(-4, age, p)
			// magnitude is negative so |impact| must not grow
			assert.GreaterOrEqual(t, cur, prev, "%s at %s", typ, age)
			assert.LessOrEqual(t, cur, -4*p.Floor+1e-12, "%s at %s", typ, age)
			prev = cur
		}
	}
}

func TestImpactHalfLifeAndMaxAge(t *testing.T) {
	p := DefaultDecayTable()[models.EventRestAdvantage]
	assert.InDelta(t, 1.0, Impact(2, 2*day, p), 1e-12)
	assert.InDelta(t, 0.5, Impact(2, 4*day, p), 1e-12)

	key := DefaultDecayTable()[models.EventKeyPlayerOut]
	assert.InDelta(t, -3*0.60, Impact(-3, 100*day, key), 1e-12)
	assert.InDelta(t, -3*0.60, Impact(-3, key.MaxAge, key), 1e-12)
	assert.Equal(t, 0.0, Impact(-3, key.MaxAge+time.Second, key))
}

func TestWithOverridesDoesNotMutateDefault(t *testing.T) {
	base := DefaultDecayTable()
	custom := base.WithOverrides(map[models.EventType]DecayParams{
		models.EventTrade: {HalfLife: day, Floor: 0, MaxAge: 2 * day},
	})
	assert.Equal(t, day, custom[models.EventTrade].HalfLife)
	assert.Equal(t, 14*day, base[models.EventTrade].HalfLife)
}

func TestTeamAdjustmentEmpty(t *testing.T) {
	adj := newAggregator(nil).TeamAdjustment("BUF", nil, asOf)
	assert.Equal(t, 0.0, adj.Points)
	assert.Equal(t, 0.0, adj.Confidence)
	assert.Empty(t, adj.Contributions)
}

func TestTeamAdjustmentCap(t *testing.T) {
	events := []*models.EFactorEvent{
		event("BUF", models.EventKeyPlayerOut, -5, 0, "beat-wire"),
		event("BUF", models.EventPositionGroupInjury, -3, 0, "beat-wire"),
		event("BUF", models.EventTravelFatigue, -1, 0, "team-site"),
	}
	adj := newAggregator(nil).TeamAdjustment("BUF", events, asOf)
	assert.Equal(t, -9.0, adj.RawPoints)
	assert.Equal(t, -DefaultPerTeamCap, adj.Points)
	assert.True(t, adj.Capped)
	assert.Equal(t, 3, adj.ActiveEvents)
	assert.Equal(t, []string{"beat-wire", "team-site"}, adj.Sources)
}

func TestTeamAdjustmentExclusions(t *testing.T) {
	stale := event("BUF", models.EventNewsSentiment, 1, 4*day, "beat-wire")
	future := event("BUF", models.EventRestAdvantage, 1, -time.Hour, "beat-wire")
	other := event("MIA", models.EventRestAdvantage, 1, 0, "beat-wire")
	original := event("BUF", models.EventKeyPlayerOut, -4, 2*day, "beat-wire")
	correction := event("BUF", models.EventKeyPlayerOut, -1, day, "beat-wire")
	correction.SupersedesID = &original.EventID
	fromSuppressed := event("BUF", models.EventTrade, 2, 0, "rumor-mill")

	scorer := stubScorer{suppressed: map[string]bool{"rumor-mill": true}}
	adj := newAggregator(scorer).TeamAdjustment("BUF",
		[]*models.EFactorEvent{stale, future, other, original, correction, fromSuppressed}, asOf)

	p := DefaultDecayTable()[models.EventKeyPlayerOut]
	assert.InDelta(t, Impact(-1, day, p), adj.Points, 1e-12)
	assert.Equal(t, 1, adj.ActiveEvents)
	assert.Equal(t, 1, adj.Skipped)
}

func TestConfidenceFollowsSourceQuality(t *testing.T) {
	good := stubScorer{scores: map[string]float64{"sharp-wire": 0.9}}
	bad := stubScorer{scores: map[string]float64{"sharp-wire": 0.1}}
	events := []*models.EFactorEvent{event("BUF", models.EventKeyPlayerOut, -4, 0, "sharp-wire")}

	up := newAggregator(good).TeamAdjustment("BUF", events, asOf)
	down := newAggregator(bad).TeamAdjustment("BUF", events, asOf)

	assert.Greater(t, up.Confidence, 0.0)
	assert.Less(t, down.Confidence, 0.0)
	assert.Equal(t, up.Points, down.Points)
}

func TestConfidenceNeutralSourceShiftsNothing(t *testing.T) {
	certain := event("BUF", models.EventKeyPlayerOut, -4, 0, "new-wire")
	certain.ReporterConfidence = 1
	adj := newAggregator(nil).TeamAdjustment("BUF", []*models.EFactorEvent{certain}, asOf)
	assert.InDelta(t, 0.0, adj.Confidence, 1e-12)
	assert.InDelta(t, -4.0, adj.Points, 1e-12)

	hedged := event("BUF", models.EventKeyPlayerOut, -4, 0, "new-wire")
	hedged.ReporterConfidence = 0.5
	adj = newAggregator(nil).TeamAdjustment("BUF", []*models.EFactorEvent{hedged}, asOf)
	assert.InDelta(t, -0.05, adj.Confidence, 1e-12)
}

func TestConfidenceBounded(t *testing.T) {
	scorer := stubScorer{scores: map[string]float64{"sharp-wire": 1}}
	var events []*models.EFactorEvent
	for i := 0; i < 20; i++ {
		ev := event("BUF", models.EventCoachingChange, 4, 0, "sharp-wire")
		ev.ReporterConfidence = 1
		events = append(events, ev)
	}
	adj := newAggregator(scorer).TeamAdjustment("BUF", events, asOf)
	assert.Equal(t, DefaultConfidenceBound, adj.Confidence)
}

func TestTeamAdjustmentDeterministic(t *testing.T) {
	events := []*models.EFactorEvent{
		event("BUF", models.EventKeyPlayerOut, -2.3, 3*day, "a"),
		event("BUF", models.EventTrade, 1.7, 5*day, "b"),
		event("BUF", models.EventRestAdvantage, 0.9, day, "c"),
	}
	reversed := []*models.EFactorEvent{events[2], events[1], events[0]}
	agg := newAggregator(nil)
	assert.Equal(t, agg.TeamAdjustment("BUF", events, asOf), agg.TeamAdjustment("BUF", reversed, asOf))
}

func TestWeatherTotalAdjustment(t *testing.T) {
	tests := []struct {
		name     string
		forecast *models.WeatherForecast
		want     float64
	}{
		{"no forecast", nil, 0},
		{"indoor ignores everything", &models.WeatherForecast{Indoor: true, WindMPH: 30, TemperatureF: 5}, 0},
		{"calm", &models.WeatherForecast{WindMPH: 5, TemperatureF: 60, Precipitation: models.PrecipitationNone}, 0},
		{"moderate wind", &models.WeatherForecast{WindMPH: 15, TemperatureF: 60}, -2.0},
		{"strong wind and heavy rain", &models.WeatherForecast{WindMPH: 22, TemperatureF: 45, Precipitation: models.PrecipitationHeavy}, -5.0},
		{"cold light snow", &models.WeatherForecast{WindMPH: 8, TemperatureF: 18, Precipitation: models.PrecipitationLight}, -1.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adj := WeatherTotalAdjustment(tt.forecast)
			assert.InDelta(t, tt.want, adj.TotalPoints, 1e-12)
		})
	}
}
