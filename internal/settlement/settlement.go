// Package settlement grades spread and total positions against final scores.
package settlement

import (
	"fmt"

	"github.com/yourusername/gridiron-edge/internal/models"
	"github.com/yourusername/gridiron-edge/internal/oddsmath"
)

// Grade settles a side taken at marketLine. Spread lines are home margins
// (positive when the home team is favoured); total lines are points.
func Grade(market models.MarketType, side models.Side, marketLine float64, game *models.GameRecord) (models.GameResult, error) {
	if game == nil || !game.IsCompleted() {
		return "", fmt.Errorf("game has no final score: %w", models.ErrDataUnavailable)
	}

	var cover float64
	switch market {
	case models.MarketTypeSpread:
		favCover := (game.HomeMargin() - marketLine) * favoriteSign(marketLine)
		switch side {
		case models.SideFavorite:
			cover = favCover
		case models.SideUnderdog:
			cover = -favCover
		default:
			return "", fmt.Errorf("side %s cannot be graded on a spread", side)
		}
	case models.MarketTypeTotal:
		total := float64(*game.HomeScore + *game.AwayScore)
		switch side {
		case models.SideOver:
			cover = total - marketLine
		case models.SideUnder:
			cover = marketLine - total
		default:
			return "", fmt.Errorf("side %s cannot be graded on a total", side)
		}
	default:
		return "", fmt.Errorf("market %s is not graded", market)
	}

	switch {
	case cover > 0:
		return models.ResultWin, nil
	case cover < 0:
		return models.ResultLoss, nil
	default:
		return models.ResultPush, nil
	}
}

// Realized is the figure an outcome is recorded with: the home margin for
// spreads, combined points for totals
func Realized(market models.MarketType, game *models.GameRecord) float64 {
	if game == nil || !game.IsCompleted() {
		return 0
	}
	if market == models.MarketTypeTotal {
		return float64(*game.HomeScore + *game.AwayScore)
	}
	return game.HomeMargin()
}

// ClosingLineValue is how many points the closing line moved toward the side
// taken. Lines are oriented as in Grade.
func ClosingLineValue(market models.MarketType, side models.Side, betLine, closingLine float64) float64 {
	switch market {
	case models.MarketTypeSpread:
		s := favoriteSign(betLine)
		moved := s*closingLine - s*betLine
		if side == models.SideUnderdog {
			return -moved
		}
		return moved
	case models.MarketTypeTotal:
		if side == models.SideUnder {
			return betLine - closingLine
		}
		return closingLine - betLine
	}
	return 0
}

// Profit returns the net result of a stake at an American price
func Profit(result models.GameResult, stake float64, price int) (float64, error) {
	switch result {
	case models.ResultWin:
		b, err := oddsmath.NetOdds(price)
		if err != nil {
			return 0, err
		}
		return stake * b, nil
	case models.ResultLoss:
		return -stake, nil
	default:
		return 0, nil
	}
}

// pick'em counts the home team as favourite
func favoriteSign(homeMargin float64) float64 {
	if homeMargin >= 0 {
		return 1
	}
	return -1
}
