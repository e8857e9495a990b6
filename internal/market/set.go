package market

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrNoMarkets         = errors.New("no markets configured")
	ErrDuplicateMarket   = errors.New("duplicate market")
	ErrInvalidDefinition = errors.New("invalid market definition")
)

// Definition is the startup configuration of one market.
type Definition struct {
	Name       string
	Multiplier float64
	Volatility float64
	StartPrice float64
}

func (d Definition) validate() error {
	switch {
	case d.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidDefinition)
	case !(d.Multiplier > 0) || math.IsInf(d.Multiplier, 0):
		return fmt.Errorf("%w: %s: multiplier must be > 0", ErrInvalidDefinition, d.Name)
	case !(d.Volatility >= 0) || math.IsInf(d.Volatility, 0):
		return fmt.Errorf("%w: %s: volatility must be >= 0", ErrInvalidDefinition, d.Name)
	case !(d.StartPrice > 0) || math.IsInf(d.StartPrice, 0):
		return fmt.Errorf("%w: %s: start price must be > 0", ErrInvalidDefinition, d.Name)
	}
	return nil
}

// Set is the closed collection of markets, in configuration order.
type Set struct {
	markets []*Market
	byID    map[string]*Market
}

// NewSet validates defs and creates one Market per definition, each with a
// history seeded by its start price at now.
func NewSet(defs []Definition, historyCapacity int, now time.Time) (*Set, error) {
	if len(defs) == 0 {
		return nil, ErrNoMarkets
	}
	if historyCapacity < 1 {
		return nil, fmt.Errorf("%w: history capacity must be >= 1", ErrInvalidDefinition)
	}

	s := &Set{
		markets: make([]*Market, 0, len(defs)),
		byID:    make(map[string]*Market, len(defs)),
	}
	for _, def := range defs {
		if err := def.validate(); err != nil {
			return nil, err
		}
		if _, exists := s.byID[def.Name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateMarket, def.Name)
		}
		m := newMarket(def, historyCapacity, now)
		s.markets = append(s.markets, m)
		s.byID[def.Name] = m
	}
	return s, nil
}

// Get returns the market with the given id.
func (s *Set) Get(id string) (*Market, bool) {
	m, ok := s.byID[id]
	return m, ok
}

// All returns the markets in configuration order.
func (s *Set) All() []*Market {
	return s.markets
}

// IDs returns market ids in configuration order.
func (s *Set) IDs() []string {
	ids := make([]string, len(s.markets))
	for i, m := range s.markets {
		ids[i] = m.ID
	}
	return ids
}

// Len returns the number of markets.
func (s *Set) Len() int {
	return len(s.markets)
}
