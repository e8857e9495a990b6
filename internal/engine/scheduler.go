package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/updown/internal/model"
)

// tick advances every market, then settles everything placed before it.
func (e *Engine) tick(now time.Time) {
	start := time.Now()
	e.stats.Ticks++

	for _, m := range e.markets.All() {
		price := e.prices.Advance(m, now)
		e.out.Broadcast(model.Event{
			Name: model.EventPriceUpdate,
			Data: model.PriceUpdate{
				MarketID: m.ID,
				Time:     now.UnixMilli(),
				Price:    price.InexactFloat64(),
			},
		})
		e.metrics.ObservePrice(m.ID, price.InexactFloat64())
	}

	wagers := e.ledger.Drain()
	for _, w := range wagers {
		e.settle(w, now)
	}

	elapsed := time.Since(start)
	e.metrics.SetPending(0)
	e.metrics.ObserveTick(elapsed.Seconds())
	e.logger.Debug("tick complete",
		"tick", e.stats.Ticks,
		"settled", len(wagers),
		"sessions", e.sessions.Len(),
		"duration", elapsed,
	)
}

// settle resolves w against its market's current price.
func (e *Engine) settle(w model.Wager, now time.Time) {
	m, ok := e.markets.Get(w.MarketID)
	if !ok {
		e.logger.Error("wager references unknown market", "wager", w.ID, "market", w.MarketID)
		return
	}

	current := m.Price()
	up := current.GreaterThan(w.PriceAtPlacement)
	won := (w.Direction == model.Up && up) || (w.Direction == model.Down && !up)

	outcome := model.OutcomeLost
	winnings := decimal.Zero
	if won {
		outcome = model.OutcomeWon
		winnings = w.Amount.Mul(m.Multiplier)
	}

	balance, ok := e.sessions.Credit(w.SessionID, winnings)
	if !ok {
		// Disconnect removes a session's wagers, so this means the ledger and
		// registry disagree.
		e.logger.Error("settled wager has no session", "wager", w.ID, "session", w.SessionID)
		return
	}

	s := model.Settlement{
		Wager:           w,
		Outcome:         outcome,
		Winnings:        winnings,
		SettlementPrice: current,
		Balance:         balance,
		Tick:            e.stats.Ticks,
		SettledAt:       now,
	}
	e.out.Send(w.SessionID, model.Event{Name: model.EventBetResolved, Data: model.NewBetResolved(s)})
	e.record(s)
	e.stats.Settled++

	e.logger.Debug("wager settled",
		"session", w.SessionID,
		"wager", w.ID,
		"market", w.MarketID,
		"direction", w.Direction,
		"outcome", outcome,
		"winnings", winnings.String(),
		"previous", w.PriceAtPlacement.String(),
		"current", current.String(),
	)
}
