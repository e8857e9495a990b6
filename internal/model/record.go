package model

import (
	"github.com/shopspring/decimal"
)

// Record is a Settlement flattened for the audit store. Timestamps are Unix
// microseconds.
type Record struct {
	WagerID          string
	Seq              int64
	SessionID        string
	MarketID         string
	Direction        string
	Amount           decimal.Decimal
	PriceAtPlacement decimal.Decimal
	SettlementPrice  decimal.NullDecimal // Null for forfeited wagers
	Outcome          string
	Winnings         decimal.Decimal
	Balance          decimal.NullDecimal // Null for forfeited wagers
	Tick             int64
	PlacedAt         int64
	SettledAt        int64
}

// NewRecord flattens s.
func NewRecord(s Settlement) Record {
	r := Record{
		WagerID:          s.Wager.ID.String(),
		Seq:              s.Wager.Seq,
		SessionID:        s.Wager.SessionID,
		MarketID:         s.Wager.MarketID,
		Direction:        string(s.Wager.Direction),
		Amount:           s.Wager.Amount,
		PriceAtPlacement: s.Wager.PriceAtPlacement,
		Outcome:          string(s.Outcome),
		Winnings:         s.Winnings,
		Tick:             s.Tick,
		PlacedAt:         s.Wager.PlacedAt.UnixMicro(),
		SettledAt:        s.SettledAt.UnixMicro(),
	}
	if s.Outcome != OutcomeForfeited {
		r.SettlementPrice = decimal.NewNullDecimal(s.SettlementPrice)
		r.Balance = decimal.NewNullDecimal(s.Balance)
	}
	return r
}
