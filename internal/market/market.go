package market

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/updown/internal/model"
)

// Market is one independently simulated price series.
type Market struct {
	ID         string
	Multiplier decimal.Decimal
	Volatility float64

	price    decimal.Decimal
	history  []model.PricePoint
	capacity int
}

func newMarket(def Definition, capacity int, now time.Time) *Market {
	start := decimal.NewFromFloat(def.StartPrice).Round(2)
	m := &Market{
		ID:         def.Name,
		Multiplier: decimal.NewFromFloat(def.Multiplier),
		Volatility: def.Volatility,
		price:      start,
		history:    make([]model.PricePoint, 0, capacity),
		capacity:   capacity,
	}
	m.record(model.PricePoint{Time: now, Price: start})
	return m
}

// Price returns the current price.
func (m *Market) Price() decimal.Decimal {
	return m.price
}

// History returns a copy of the price history, oldest first.
func (m *Market) History() []model.PricePoint {
	out := make([]model.PricePoint, len(m.history))
	copy(out, m.history)
	return out
}

// Snapshot returns the market as sent in initialData.
func (m *Market) Snapshot() model.MarketSnapshot {
	history := make([]model.HistoryPoint, len(m.history))
	for i, p := range m.history {
		history[i] = model.NewHistoryPoint(p)
	}
	return model.MarketSnapshot{
		Multiplier: m.Multiplier.InexactFloat64(),
		Volatility: m.Volatility,
		History:    history,
	}
}

// record sets the current price and appends it to history, evicting the
// oldest point once capacity is exceeded.
func (m *Market) record(p model.PricePoint) {
	m.price = p.Price
	m.history = append(m.history, p)
	if len(m.history) > m.capacity {
		// Shift in place so the backing array does not grow without bound.
		n := copy(m.history, m.history[len(m.history)-m.capacity:])
		clear(m.history[n:])
		m.history = m.history[:n]
	}
}
