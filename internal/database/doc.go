// Package database stores settlement audit records in PostgreSQL.
//
// Rows are keyed by wager id. Inserts use ON CONFLICT DO NOTHING so a batch
// replayed after a failed flush never duplicates a settlement.
package database
