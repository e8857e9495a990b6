// Package writer implements the batched settlement audit writer.
//
// The engine hands every wager leaving the ledger (won, lost or forfeited)
// to SettlementWriter.Record, which queues it without blocking. A consumer
// goroutine accumulates batches and flushes them to a Store when the batch
// is full or the flush interval elapses. Stores use insert-only semantics
// keyed by wager id, so a replayed batch is harmless.
package writer
