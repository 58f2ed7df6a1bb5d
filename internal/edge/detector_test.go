package edge

import (
	"io"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/gridiron-edge/internal/models"
)

var asOf = time.Date(2024, 11, 10, 16, 0, 0, 0, time.UTC)

var crit = Criteria{MinEdgeThreshold: 1.5, KeyNumbers: []float64{3, 7, 10, 14}}

func newDetector(rule ConsensusRule, sharp ...string) *Detector {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewDetector(Config{HomeFieldAdvantage: 2.0, ConsensusRule: rule, SharpBooks: sharp, UnitsPerPoint: 5}, log)
}

func spread(book string, value float64, class models.BookClass, at time.Time) *models.MarketLine {
	return &models.MarketLine{GameID: "g1", BookID: book, MarketType: models.MarketTypeSpread, Value: value, ObservedAt: at, BookClass: class}
}

func total(book string, value float64, class models.BookClass) *models.MarketLine {
	return &models.MarketLine{GameID: "g1", BookID: book, MarketType: models.MarketTypeTotal, Value: value, ObservedAt: asOf.Add(-time.Hour), BookClass: class}
}

func TestModelLine(t *testing.T) {
	d := newDetector(RuleMedian)
	in := SpreadInput{HomeRating: 10, AwayRating: 4, HomeEFactor: -1, AwayEFactor: 0.5, Situational: 0.25, PercentageUnits: 5}
	// 6 + 2 + (-1.5 + 0.25 + 1)
	assert.InDelta(t, 7.75, d.ModelLine(in), 1e-12)

	in.NeutralSite = true
	assert.InDelta(t, 5.75, d.ModelLine(in), 1e-12)
}

func TestMedianPriceFromClosestBook(t *testing.T) {
	priced := func(book string, value float64, price int) *models.MarketLine {
		l := spread(book, value, models.BookClassPublic, asOf.Add(-time.Hour))
		l.Price = price
		return l
	}
	lines := []*models.MarketLine{priced("dk", -3, -105), priced("fd", -6, -120), priced("mgm", -3.5, -115)}

	c, ok := newDetector(RuleMedian).Consensus(lines, models.MarketTypeSpread, asOf)
	require.True(t, ok)
	assert.Equal(t, -3.5, c.Value)
	assert.Equal(t, -115, c.Price)
}

func TestLatestByBookIgnoresFutureAndOlder(t *testing.T) {
	lines := []*models.MarketLine{
		spread("dk", -3, models.BookClassPublic, asOf.Add(-3*time.Hour)),
		spread("dk", -3.5, models.BookClassPublic, asOf.Add(-time.Hour)),
		spread("dk", -6, models.BookClassPublic, asOf.Add(time.Hour)),
		spread("fd", -2.5, models.BookClassPublic, asOf.Add(-2*time.Hour)),
	}
	latest := LatestByBook(lines, models.MarketTypeSpread, asOf)
	require.Len(t, latest, 2)
	assert.Equal(t, -3.5, latest[0].Value)
	assert.Equal(t, "fd", latest[1].BookID)
}

func TestConsensusRules(t *testing.T) {
	lines := []*models.MarketLine{
		spread("dk", -3.5, models.BookClassPublic, asOf.Add(-time.Hour)),
		spread("fd", -4, models.BookClassPublic, asOf.Add(-time.Hour)),
		spread("mgm", -3, models.BookClassPublic, asOf.Add(-time.Hour)),
		spread("circa", -2.5, models.BookClassSharp, asOf.Add(-time.Hour)),
	}

	median, ok := newDetector(RuleMedian).Consensus(lines, models.MarketTypeSpread, asOf)
	require.True(t, ok)
	assert.Equal(t, -3.25, median.Value)
	assert.Equal(t, 4, median.Books)
	assert.Equal(t, models.DefaultPrice, median.Price)

	sharp, ok := newDetector(RuleSharp, "pinnacle", "circa").Consensus(lines, models.MarketTypeSpread, asOf)
	require.True(t, ok)
	assert.Equal(t, -2.5, sharp.Value)
	assert.Equal(t, "circa", sharp.SourceBook)

	fallback, ok := newDetector(RuleSharp, "pinnacle").Consensus(lines, models.MarketTypeSpread, asOf)
	require.True(t, ok)
	assert.Equal(t, -3.25, fallback.Value)

	_, ok = newDetector(RuleMedian).Consensus(lines, models.MarketTypeTotal, asOf)
	assert.False(t, ok)
}

func TestEvaluateSpreadFavoriteAndUnderdog(t *testing.T) {
	d := newDetector(RuleMedian)
	lines := []*models.MarketLine{spread("dk", -3, models.BookClassPublic, asOf.Add(-time.Hour))}

	// model home by 8 vs market home by 3: favourite side
	fav, err := d.EvaluateSpread(SpreadInput{GameID: "g1", HomeRating: 6, AwayRating: 0}, lines, asOf, crit)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, fav.Edge, 1e-12)
	assert.Equal(t, models.SideFavorite, fav.Side)
	assert.True(t, fav.FavoriteIsHome)
	assert.True(t, fav.Qualifies)
	assert.Equal(t, []float64{7}, fav.KeyNumbers)

	// model home by 0 vs market home by 3: underdog side
	dog, err := d.EvaluateSpread(SpreadInput{GameID: "g1", HomeRating: 0, AwayRating: 2}, lines, asOf, crit)
	require.NoError(t, err)
	assert.InDelta(t, -3.0, dog.Edge, 1e-12)
	assert.Equal(t, models.SideUnderdog, dog.Side)
	assert.Empty(t, dog.KeyNumbers)
}

func TestEvaluateSpreadAwayFavorite(t *testing.T) {
	d := newDetector(RuleMedian)
	lines := []*models.MarketLine{spread("dk", 6.5, models.BookClassPublic, asOf.Add(-time.Hour))}

	// market has away by 6.5; model has away by 9
	ev, err := d.EvaluateSpread(SpreadInput{GameID: "g1", HomeRating: 0, AwayRating: 11}, lines, asOf, crit)
	require.NoError(t, err)
	assert.False(t, ev.FavoriteIsHome)
	assert.InDelta(t, -6.5, ev.MarketLine, 1e-12)
	assert.InDelta(t, 2.5, ev.Edge, 1e-12)
	assert.Equal(t, models.SideFavorite, ev.Side)
	assert.Equal(t, []float64{7}, ev.KeyNumbers)
}

func TestEvaluateSpreadPickEmTreatsHomeAsFavorite(t *testing.T) {
	d := newDetector(RuleMedian)
	lines := []*models.MarketLine{spread("dk", 0, models.BookClassPublic, asOf.Add(-time.Hour))}
	ev, err := d.EvaluateSpread(SpreadInput{GameID: "g1", HomeRating: 0, AwayRating: 4}, lines, asOf, crit)
	require.NoError(t, err)
	assert.True(t, ev.FavoriteIsHome)
	assert.InDelta(t, -2.0, ev.Edge, 1e-12)
	assert.Equal(t, models.SideUnderdog, ev.Side)
}

func TestEvaluateSpreadNoLines(t *testing.T) {
	_, err := newDetector(RuleMedian).EvaluateSpread(SpreadInput{GameID: "g1"}, nil, asOf, crit)
	assert.ErrorIs(t, err, models.ErrDataUnavailable)
}

func TestEdgeSignProperty(t *testing.T) {
	d := newDetector(RuleMedian)
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 5000; i++ {
		posted := math.Round((rng.Float64()*30-15)*2) / 2
		lines := []*models.MarketLine{spread("dk", posted, models.BookClassPublic, asOf.Add(-time.Minute))}
		in := SpreadInput{GameID: "g", HomeRating: rng.Float64()*30 - 10, AwayRating: rng.Float64()*30 - 10, NeutralSite: rng.Intn(4) == 0}

		ev, err := d.EvaluateSpread(in, lines, asOf, crit)
		require.NoError(t, err)
		switch {
		case ev.Edge > 0:
			require.Equal(t, models.SideFavorite, ev.Side)
		case ev.Edge < 0:
			require.Equal(t, models.SideUnderdog, ev.Side)
		}
		require.Equal(t, math.Abs(ev.Edge) >= crit.MinEdgeThreshold, ev.Qualifies)
		require.InDelta(t, math.Abs(ev.ModelLine-ev.MarketLine), math.Abs(ev.Edge), 1e-9)
	}
}

func TestSharpAlignment(t *testing.T) {
	d := newDetector(RuleMedian)
	// sharps have home by 4, public home by 2.5: sharps moved toward home
	lines := []*models.MarketLine{
		spread("circa", -4, models.BookClassSharp, asOf.Add(-time.Hour)),
		spread("dk", -2.5, models.BookClassPublic, asOf.Add(-time.Hour)),
	}

	homeSide, err := d.EvaluateSpread(SpreadInput{GameID: "g1", HomeRating: 6, AwayRating: 0}, lines, asOf, crit)
	require.NoError(t, err)
	assert.True(t, homeSide.SharpAligned)

	awaySide, err := d.EvaluateSpread(SpreadInput{GameID: "g1", HomeRating: 0, AwayRating: 4}, lines, asOf, crit)
	require.NoError(t, err)
	assert.False(t, awaySide.SharpAligned)
}

func TestEvaluateTotal(t *testing.T) {
	d := newDetector(RuleMedian)
	lines := []*models.MarketLine{total("circa", 44.5, models.BookClassSharp), total("dk", 43.5, models.BookClassPublic)}

	over, err := d.EvaluateTotal("g1", 47, lines, asOf, crit)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, over.Edge, 1e-12)
	assert.Equal(t, models.SideOver, over.Side)
	assert.True(t, over.SharpAligned)

	under, err := d.EvaluateTotal("g1", 41, lines, asOf, crit)
	require.NoError(t, err)
	assert.Equal(t, models.SideUnder, under.Side)
	assert.True(t, under.Qualifies)
	assert.False(t, under.SharpAligned)

	_, err = d.EvaluateTotal("g1", 41, nil, asOf, crit)
	assert.ErrorIs(t, err, models.ErrDataUnavailable)
}

func TestKeyNumbersCrossed(t *testing.T) {
	keys := []float64{3, 7, 10, 14}
	assert.Equal(t, []float64{3}, KeyNumbersCrossed(2.5, 3.5, keys))
	assert.Equal(t, []float64{3, 7}, KeyNumbersCrossed(-1, -8, keys))
	assert.Empty(t, KeyNumbersCrossed(3, 6, keys))
	assert.Equal(t, []float64{3}, KeyNumbersCrossed(-3.5, 1, keys))
}
