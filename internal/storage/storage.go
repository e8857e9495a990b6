// Package storage provides SQLite-backed persistence for settlement audit records.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/rickgao/updown/internal/model"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Storage wraps a SQLite database holding settlements.
type Storage struct {
	db *sql.DB
}

// Open opens or creates the SQLite database at path.
func Open(path string) (*Storage, error) {
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	s := &Storage{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS settlements (
			wager_id           TEXT PRIMARY KEY,
			seq                INTEGER NOT NULL,
			session_id         TEXT NOT NULL,
			market_id          TEXT NOT NULL,
			direction          TEXT NOT NULL,
			amount             TEXT NOT NULL,
			price_at_placement TEXT NOT NULL,
			settlement_price   TEXT,
			outcome            TEXT NOT NULL,
			winnings           TEXT NOT NULL,
			balance            TEXT,
			tick               INTEGER NOT NULL,
			placed_at          INTEGER NOT NULL,
			settled_at         INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_settlements_session ON settlements(session_id, seq)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertSettlements writes rows in one transaction. Rows whose wager id is
// already stored are skipped and counted as conflicts.
func (s *Storage) InsertSettlements(ctx context.Context, rows []model.Record) (conflicts int, err error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO settlements
			(wager_id, seq, session_id, market_id, direction, amount, price_at_placement,
			 settlement_price, outcome, winnings, balance, tick, placed_at, settled_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		res, err := stmt.ExecContext(ctx,
			r.WagerID, r.Seq, r.SessionID, r.MarketID, r.Direction,
			r.Amount.String(), r.PriceAtPlacement.String(), r.SettlementPrice,
			r.Outcome, r.Winnings.String(), r.Balance,
			r.Tick, r.PlacedAt, r.SettledAt,
		)
		if err != nil {
			return 0, fmt.Errorf("insert settlement %s: %w", r.WagerID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			conflicts++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return conflicts, nil
}

// Settlements returns the stored records for a session in placement order.
func (s *Storage) Settlements(ctx context.Context, sessionID string) ([]model.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT wager_id, seq, session_id, market_id, direction, amount, price_at_placement,
			settlement_price, outcome, winnings, balance, tick, placed_at, settled_at
		FROM settlements WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query settlements: %w", err)
	}
	defer rows.Close()

	var out []model.Record
	for rows.Next() {
		var r model.Record
		if err := rows.Scan(
			&r.WagerID, &r.Seq, &r.SessionID, &r.MarketID, &r.Direction,
			&r.Amount, &r.PriceAtPlacement, &r.SettlementPrice,
			&r.Outcome, &r.Winnings, &r.Balance,
			&r.Tick, &r.PlacedAt, &r.SettledAt,
		); err != nil {
			return nil, fmt.Errorf("scan settlement: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Count returns the number of stored settlements.
func (s *Storage) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM settlements`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count settlements: %w", err)
	}
	return n, nil
}
