package engine

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rickgao/updown/internal/model"
)

// minStake is the smallest accepted wager, one cent.
var minStake = decimal.New(1, -2)

func (e *Engine) handlePlacement(id string, req model.PlaceBet) model.BetResult {
	w, balance, err := e.place(id, req)
	if err != nil {
		e.stats.Rejected++
		e.metrics.IncPlacement(rejectionLabel(err))
		e.logger.Debug("bet rejected",
			"session", id,
			"market", req.MarketID,
			"direction", req.Direction,
			"amount", req.Amount,
			"reason", err,
		)
		return model.BetResult{Success: false, Message: rejectionMessage(err)}
	}

	e.stats.Accepted++
	e.metrics.IncPlacement("accepted")
	e.metrics.SetPending(e.ledger.Len())
	e.logger.Debug("bet placed",
		"session", id,
		"wager", w.ID,
		"market", w.MarketID,
		"direction", w.Direction,
		"amount", w.Amount.String(),
		"price", w.PriceAtPlacement.String(),
	)

	nb := balance.InexactFloat64()
	return model.BetResult{
		Success:    true,
		Message:    fmt.Sprintf("Bet placed: %s on %s with %s", w.Direction, w.MarketID, w.Amount),
		NewBalance: &nb,
	}
}

// place validates req and, on success, debits the stake and records the
// wager. Nothing is mutated when an error is returned.
func (e *Engine) place(id string, req model.PlaceBet) (model.Wager, decimal.Decimal, error) {
	m, ok := e.markets.Get(req.MarketID)
	if !ok {
		return model.Wager{}, decimal.Zero, fmt.Errorf("%w: %q", ErrUnknownMarket, req.MarketID)
	}
	dir, err := model.ParseDirection(req.Direction)
	if err != nil {
		return model.Wager{}, decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidDirection, req.Direction)
	}
	if math.IsNaN(req.Amount) || math.IsInf(req.Amount, 0) || req.Amount <= 0 {
		return model.Wager{}, decimal.Zero, fmt.Errorf("%w: %v", ErrInvalidAmount, req.Amount)
	}
	amount := decimal.NewFromFloat(req.Amount)
	if amount.LessThan(minStake) {
		return model.Wager{}, decimal.Zero, fmt.Errorf("%w: %v is below %s", ErrInvalidAmount, req.Amount, minStake)
	}

	balance, ok := e.sessions.Balance(id)
	if !ok {
		return model.Wager{}, decimal.Zero, ErrUnknownSession
	}
	if amount.GreaterThan(balance) {
		return model.Wager{}, balance, ErrInsufficientBalance
	}

	balance, err = e.sessions.Debit(id, amount)
	if err != nil {
		return model.Wager{}, balance, fmt.Errorf("%w: %v", ErrInsufficientBalance, err)
	}

	e.seq++
	w := model.Wager{
		ID:               uuid.New(),
		Seq:              e.seq,
		SessionID:        id,
		MarketID:         m.ID,
		Direction:        dir,
		Amount:           amount,
		PriceAtPlacement: m.Price(),
		PlacedAt:         e.clock.Now(),
	}
	e.ledger.Add(w)
	return w, balance, nil
}
