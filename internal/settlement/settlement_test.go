package settlement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/gridiron-edge/internal/models"
)

func final(home, away int) *models.GameRecord {
	return &models.GameRecord{GameID: "g1", HomeTeamID: "KC", AwayTeamID: "DEN", HomeScore: &home, AwayScore: &away}
}

func TestGradeSpread(t *testing.T) {
	tests := []struct {
		name   string
		side   models.Side
		line   float64
		home   int
		away   int
		expect models.GameResult
	}{
		{"home favourite covers", models.SideFavorite, 3, 24, 17, models.ResultWin},
		{"home favourite fails", models.SideFavorite, 7.5, 24, 17, models.ResultLoss},
		{"home favourite push", models.SideFavorite, 7, 24, 17, models.ResultPush},
		{"underdog against home favourite", models.SideUnderdog, 7.5, 24, 17, models.ResultWin},
		{"away favourite covers", models.SideFavorite, -3, 14, 21, models.ResultWin},
		{"away favourite fails", models.SideFavorite, -10, 14, 21, models.ResultLoss},
		{"home underdog covers", models.SideUnderdog, -10, 14, 21, models.ResultWin},
		{"pick'em home wins", models.SideFavorite, 0, 20, 17, models.ResultWin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Grade(models.MarketTypeSpread, tt.side, tt.line, final(tt.home, tt.away))
			require.NoError(t, err)
			assert.Equal(t, tt.expect, got)
		})
	}
}

func TestGradeTotal(t *testing.T) {
	g := final(24, 20)

	got, err := Grade(models.MarketTypeTotal, models.SideOver, 43.5, g)
	require.NoError(t, err)
	assert.Equal(t, models.ResultWin, got)

	got, err = Grade(models.MarketTypeTotal, models.SideUnder, 43.5, g)
	require.NoError(t, err)
	assert.Equal(t, models.ResultLoss, got)

	got, err = Grade(models.MarketTypeTotal, models.SideUnder, 44, g)
	require.NoError(t, err)
	assert.Equal(t, models.ResultPush, got)
}

func TestGradeErrors(t *testing.T) {
	_, err := Grade(models.MarketTypeSpread, models.SideFavorite, 3, &models.GameRecord{GameID: "g1"})
	assert.ErrorIs(t, err, models.ErrDataUnavailable)

	_, err = Grade(models.MarketTypeSpread, models.SideOver, 3, final(1, 0))
	assert.Error(t, err)

	_, err = Grade(models.MarketTypeTotal, models.SideFavorite, 40, final(1, 0))
	assert.Error(t, err)

	_, err = Grade(models.MarketTypeMoneyline, models.SideFavorite, 0, final(1, 0))
	assert.Error(t, err)
}

func TestRealized(t *testing.T) {
	g := final(24, 17)
	assert.InDelta(t, 7.0, Realized(models.MarketTypeSpread, g), 1e-9)
	assert.InDelta(t, 41.0, Realized(models.MarketTypeTotal, g), 1e-9)
	assert.Zero(t, Realized(models.MarketTypeSpread, &models.GameRecord{}))
}

func TestClosingLineValue(t *testing.T) {
	// laid 3 with the home team, closed at 4.5
	assert.InDelta(t, 1.5, ClosingLineValue(models.MarketTypeSpread, models.SideFavorite, 3, 4.5), 1e-9)
	assert.InDelta(t, -1.5, ClosingLineValue(models.MarketTypeSpread, models.SideUnderdog, 3, 4.5), 1e-9)
	// laid 3 with the away team, closed at 2
	assert.InDelta(t, -1.0, ClosingLineValue(models.MarketTypeSpread, models.SideFavorite, -3, -2), 1e-9)
	assert.InDelta(t, 1.0, ClosingLineValue(models.MarketTypeSpread, models.SideUnderdog, -3, -2), 1e-9)

	assert.InDelta(t, 2.0, ClosingLineValue(models.MarketTypeTotal, models.SideOver, 44, 46), 1e-9)
	assert.InDelta(t, -2.0, ClosingLineValue(models.MarketTypeTotal, models.SideUnder, 44, 46), 1e-9)
	assert.Zero(t, ClosingLineValue(models.MarketTypeMoneyline, models.SideFavorite, 0, 0))
}

func TestProfit(t *testing.T) {
	won, err := Profit(models.ResultWin, 110, -110)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, won, 1e-9)

	won, err = Profit(models.ResultWin, 100, 150)
	require.NoError(t, err)
	assert.InDelta(t, 150.0, won, 1e-9)

	lost, err := Profit(models.ResultLoss, 100, -110)
	require.NoError(t, err)
	assert.InDelta(t, -100.0, lost, 1e-9)

	pushed, err := Profit(models.ResultPush, 100, -110)
	require.NoError(t, err)
	assert.Zero(t, pushed)

	_, err = Profit(models.ResultWin, 100, 50)
	assert.Error(t, err)
}
