package models

import (
	"time"
)

// MarketType represents the type of betting market
type MarketType string

const (
	MarketTypeSpread    MarketType = "spread"
	MarketTypeTotal     MarketType = "total"
	MarketTypeMoneyline MarketType = "moneyline"
)

// BookClass classifies a sportsbook as sharp or public
type BookClass string

const (
	BookClassSharp  BookClass = "sharp"
	BookClassPublic BookClass = "public"
)

// DefaultPrice is assumed when a line arrives without a price
const DefaultPrice = -110

// MarketLine is a single append-only line observation from one book
type MarketLine struct {
	GameID     string     `db:"game_id" json:"game_id" validate:"required"`
	BookID     string     `db:"book_id" json:"book_id" validate:"required"`
	MarketType MarketType `db:"market_type" json:"market_type" validate:"required,oneof=spread total moneyline"`
	// Value is the posted home spread for spreads (home -3.5 means home favoured by 3.5)
	// and the points line for totals.
	Value      float64   `db:"value" json:"value"`
	Price      int       `db:"price" json:"price"`
	ObservedAt time.Time `db:"observed_at" json:"observed_at" validate:"required"`
	BookClass  BookClass `db:"book_class" json:"book_class" validate:"omitempty,oneof=sharp public"`
}

// IsSharp checks if the line came from a sharp book
func (l *MarketLine) IsSharp() bool {
	return l.BookClass == BookClassSharp
}

// PriceOrDefault returns the observed price or the standard -110
func (l *MarketLine) PriceOrDefault() int {
	if l.Price == 0 {
		return DefaultPrice
	}
	return l.Price
}

// HomeMargin converts a spread to the expected home margin in points
func (l *MarketLine) HomeMargin() float64 {
	return -l.Value
}
