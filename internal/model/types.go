package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// -----------------------------------------------------------------------------
// Domain Types
// -----------------------------------------------------------------------------

// Direction is the side of a wager.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// ErrInvalidDirection is returned by ParseDirection for anything but up/down.
var ErrInvalidDirection = errors.New("invalid direction")

// ParseDirection converts a wire string to a Direction.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case Up, Down:
		return Direction(s), nil
	default:
		return "", ErrInvalidDirection
	}
}

// PricePoint is one entry of a market's price history.
type PricePoint struct {
	Time  time.Time
	Price decimal.Decimal
}

// Wager is a pending directional stake. Values are copied, never mutated.
type Wager struct {
	ID               uuid.UUID
	Seq              int64 // Placement order within the process
	SessionID        string
	MarketID         string
	Direction        Direction
	Amount           decimal.Decimal
	PriceAtPlacement decimal.Decimal
	PlacedAt         time.Time
}

// Outcome is how a wager left the ledger.
type Outcome string

const (
	OutcomeWon       Outcome = "won"
	OutcomeLost      Outcome = "lost"
	OutcomeForfeited Outcome = "forfeited" // Owner disconnected before settlement
)

// Settlement is the audit record for a wager leaving the ledger.
type Settlement struct {
	Wager           Wager
	Outcome         Outcome
	Winnings        decimal.Decimal
	SettlementPrice decimal.Decimal // Zero for forfeited wagers
	Balance         decimal.Decimal // Owner balance after crediting
	Tick            int64           // Zero for forfeited wagers
	SettledAt       time.Time
}

// Won reports whether the wager paid out.
func (s Settlement) Won() bool {
	return s.Outcome == OutcomeWon
}

// -----------------------------------------------------------------------------
// Wire Types
// -----------------------------------------------------------------------------

// Event names on the session channel.
const (
	EventPlaceBet    = "placeBet"
	EventInitialData = "initialData"
	EventPriceUpdate = "priceUpdate"
	EventBetResult   = "betResult"
	EventBetResolved = "betResolved"
)

// Event is one outbound frame: {"event": Name, "data": Data}.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data"`
}

// PlaceBet is the decoded inbound placement request. Amount is NaN when the
// client sent something that is not a number.
type PlaceBet struct {
	MarketID  string
	Direction string
	Amount    float64
}

// HistoryPoint is a PricePoint on the wire.
type HistoryPoint struct {
	Time  int64   `json:"time"`
	Price float64 `json:"price"`
}

// MarketSnapshot describes one market in initialData.
type MarketSnapshot struct {
	Multiplier float64        `json:"multiplier"`
	Volatility float64        `json:"volatility"`
	History    []HistoryPoint `json:"history"`
}

// InitialData is sent once to a session when it connects.
type InitialData struct {
	Markets map[string]MarketSnapshot `json:"markets"`
	Balance float64                   `json:"balance"`
}

// PriceUpdate is broadcast to all sessions once per market per tick.
type PriceUpdate struct {
	MarketID string  `json:"marketId"`
	Time     int64   `json:"time"`
	Price    float64 `json:"price"`
}

// BetResult acknowledges a placement request.
type BetResult struct {
	Success    bool     `json:"success"`
	Message    string   `json:"message"`
	NewBalance *float64 `json:"newBalance,omitempty"`
}

// BetResolved reports a settlement to the wager's owner.
type BetResolved struct {
	MarketID      string    `json:"marketId"`
	Direction     Direction `json:"direction"`
	BetAmount     float64   `json:"betAmount"`
	Success       bool      `json:"success"`
	Winnings      float64   `json:"winnings"`
	NewBalance    float64   `json:"newBalance"`
	PreviousPrice float64   `json:"previousPrice"`
	CurrentPrice  float64   `json:"currentPrice"`
}

// NewHistoryPoint converts a PricePoint to its wire form.
func NewHistoryPoint(p PricePoint) HistoryPoint {
	return HistoryPoint{Time: p.Time.UnixMilli(), Price: p.Price.InexactFloat64()}
}

// NewBetResolved builds the owner notification for a settlement.
func NewBetResolved(s Settlement) BetResolved {
	return BetResolved{
		MarketID:      s.Wager.MarketID,
		Direction:     s.Wager.Direction,
		BetAmount:     s.Wager.Amount.InexactFloat64(),
		Success:       s.Won(),
		Winnings:      s.Winnings.InexactFloat64(),
		NewBalance:    s.Balance.InexactFloat64(),
		PreviousPrice: s.Wager.PriceAtPlacement.InexactFloat64(),
		CurrentPrice:  s.SettlementPrice.InexactFloat64(),
	}
}
