package acquisition

import (
	"context"
	"sort"
	"time"

	"github.com/yourusername/gridiron-edge/internal/models"
)

// LineMove is the movement of one book's line over a monitoring window
type LineMove struct {
	BookID     string            `json:"book_id"`
	BookClass  models.BookClass  `json:"book_class"`
	MarketType models.MarketType `json:"market_type"`
	Open       float64           `json:"open"`
	Latest     float64           `json:"latest"`
	Delta      float64           `json:"delta"`
	Updates    int               `json:"updates"`
}

// Movement is what a monitoring window observed. Complete is false when the
// window was cut short by cancellation or the stream closing.
type Movement struct {
	GameID       string               `json:"game_id"`
	Start        time.Time            `json:"start"`
	End          time.Time            `json:"end"`
	Complete     bool                 `json:"complete"`
	Observations []*models.MarketLine `json:"observations"`
}

// Moves summarizes observations per book and market, ordered by market then book
func (m *Movement) Moves() []LineMove {
	type key struct {
		book   string
		market models.MarketType
	}
	idx := make(map[key]int)
	var out []LineMove
	for _, l := range m.Observations {
		k := key{l.BookID, l.MarketType}
		i, ok := idx[k]
		if !ok {
			idx[k] = len(out)
			out = append(out, LineMove{BookID: l.BookID, BookClass: l.BookClass, MarketType: l.MarketType, Open: l.Value, Latest: l.Value, Updates: 1})
			continue
		}
		out[i].Latest = l.Value
		out[i].Delta = out[i].Latest - out[i].Open
		out[i].Updates++
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MarketType != out[j].MarketType {
			return out[i].MarketType < out[j].MarketType
		}
		return out[i].BookID < out[j].BookID
	})
	return out
}

// MonitorLineMovement collects line observations for a game until window
// elapses or ctx is done. Cancellation is not an error: whatever was
// collected is returned with Complete set to false.
func MonitorLineMovement(ctx context.Context, src LineSource, gameID string, window time.Duration) *Movement {
	lines, cancel := src.Lines(gameID)
	defer cancel()

	m := &Movement{GameID: gameID, Start: time.Now()}
	timer := time.NewTimer(window)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			m.Complete = true
			m.End = time.Now()
			return m
		case <-ctx.Done():
			m.End = time.Now()
			return m
		case l, ok := <-lines:
			if !ok {
				m.End = time.Now()
				return m
			}
			m.Observations = append(m.Observations, l)
		}
	}
}
