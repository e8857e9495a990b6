// Package engine implements the simulation and settlement core.
//
// One goroutine owns the market set, the session registry and the wager
// ledger. Connect, disconnect, placement and query requests are closures
// executed on that goroutine one at a time; the scheduler tick runs on the
// same goroutine as one indivisible step:
//
//  1. advance every market and broadcast priceUpdate
//  2. drain the ledger
//  3. settle each wager against the new price and unicast betResolved
//
// A wager is therefore settled exactly once, on the first tick after it was
// placed, or forfeited if its session disconnects first.
package engine
