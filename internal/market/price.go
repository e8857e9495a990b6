package market

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/updown/internal/model"
)

// Source yields uniform draws in [0, 1). *rand.Rand from math/rand/v2
// satisfies it.
type Source interface {
	Float64() float64
}

// stepScale turns a uniform(-0.5, 0.5) draw into a step of up to ±5 per unit
// of volatility.
const stepScale = 10

// PriceEngine produces the next price of a market.
type PriceEngine struct {
	src   Source
	floor decimal.Decimal
}

// NewPriceEngine creates a PriceEngine drawing from src and clamping at floor.
func NewPriceEngine(src Source, floor decimal.Decimal) *PriceEngine {
	return &PriceEngine{src: src, floor: floor}
}

// Floor returns the minimum price.
func (e *PriceEngine) Floor() decimal.Decimal {
	return e.floor
}

// Advance moves m one step and records the new price in its history.
func (e *PriceEngine) Advance(m *Market, now time.Time) decimal.Decimal {
	delta := (e.src.Float64() - 0.5) * stepScale * m.Volatility
	candidate := m.price.Add(decimal.NewFromFloat(delta))
	next := decimal.Max(candidate, e.floor).Round(2)

	m.record(model.PricePoint{Time: now, Price: next})
	return next
}
