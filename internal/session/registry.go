// Package session tracks per-session balances.
//
// A Registry is not safe for concurrent use; the engine goroutine owns it.
package session

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrUnknownSession    = errors.New("unknown session")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("amount must be positive")
)

// Registry maps session ids to balances.
type Registry struct {
	starting decimal.Decimal
	balances map[string]decimal.Decimal
}

// NewRegistry creates a Registry that opens sessions with startingBalance.
func NewRegistry(startingBalance decimal.Decimal) *Registry {
	return &Registry{
		starting: startingBalance,
		balances: make(map[string]decimal.Decimal),
	}
}

// GetOrCreate returns the balance of id, opening the session if needed.
func (r *Registry) GetOrCreate(id string) decimal.Decimal {
	if b, ok := r.balances[id]; ok {
		return b
	}
	r.balances[id] = r.starting
	return r.starting
}

// Balance returns the balance of id.
func (r *Registry) Balance(id string) (decimal.Decimal, bool) {
	b, ok := r.balances[id]
	return b, ok
}

// Debit subtracts amount and returns the new balance. It refuses to take a
// balance below zero.
func (r *Registry) Debit(id string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	b, ok := r.balances[id]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	if amount.GreaterThan(b) {
		return b, ErrInsufficientFunds
	}
	b = b.Sub(amount)
	r.balances[id] = b
	return b, nil
}

// Credit adds amount and returns the new balance. ok is false if the session
// is gone.
func (r *Registry) Credit(id string, amount decimal.Decimal) (decimal.Decimal, bool) {
	b, ok := r.balances[id]
	if !ok {
		return decimal.Zero, false
	}
	b = b.Add(amount)
	r.balances[id] = b
	return b, true
}

// Remove forgets id. It reports whether the session existed.
func (r *Registry) Remove(id string) bool {
	if _, ok := r.balances[id]; !ok {
		return false
	}
	delete(r.balances, id)
	return true
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	return len(r.balances)
}

// Total returns the sum of all balances.
func (r *Registry) Total() decimal.Decimal {
	total := decimal.Zero
	for _, b := range r.balances {
		total = total.Add(b)
	}
	return total
}
