// Package market implements the simulated price series.
//
// A Set is the closed collection of markets configured at startup. Each
// Market holds its current price and a bounded, oldest-first history.
// PriceEngine advances a market by one random step, never letting the price
// fall below the configured floor.
//
// Nothing in this package is safe for concurrent use. Markets are owned by
// the engine goroutine.
package market
