package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/updown/internal/config"
	"github.com/rickgao/updown/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS settlements (
	wager_id           UUID PRIMARY KEY,
	seq                BIGINT NOT NULL,
	session_id         TEXT NOT NULL,
	market_id          TEXT NOT NULL,
	direction          TEXT NOT NULL,
	amount             NUMERIC NOT NULL,
	price_at_placement NUMERIC NOT NULL,
	settlement_price   NUMERIC,
	outcome            TEXT NOT NULL,
	winnings           NUMERIC NOT NULL,
	balance            NUMERIC,
	tick               BIGINT NOT NULL,
	placed_at          BIGINT NOT NULL,
	settled_at         BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS settlements_session_idx ON settlements (session_id, seq);
`

const insertSettlement = `
	INSERT INTO settlements (wager_id, seq, session_id, market_id, direction, amount,
		price_at_placement, settlement_price, outcome, winnings, balance, tick, placed_at, settled_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	ON CONFLICT (wager_id) DO NOTHING
`

// SettlementStore writes settlement records to a pgx pool.
type SettlementStore struct {
	pool *pgxpool.Pool
}

// Connect creates a connection pool and verifies it with a ping.
func Connect(ctx context.Context, cfg config.DBConfig) (*pgxpool.Pool, error) {
	connStr := BuildConnString(cfg)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// Open connects to PostgreSQL and ensures the settlements table exists.
func Open(ctx context.Context, cfg config.DBConfig) (*SettlementStore, error) {
	pool, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s := NewSettlementStore(pool)
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewSettlementStore wraps an existing pool.
func NewSettlementStore(pool *pgxpool.Pool) *SettlementStore {
	return &SettlementStore{pool: pool}
}

// EnsureSchema creates the settlements table if missing.
func (s *SettlementStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create settlements schema: %w", err)
	}
	return nil
}

// InsertSettlements inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (s *SettlementStore) InsertSettlements(ctx context.Context, rows []model.Record) (conflicts int, err error) {
	if len(rows) == 0 {
		return 0, nil
	}

	results := s.pool.SendBatch(ctx, settlementBatch(rows))
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}

// Ping verifies the pool is healthy.
func (s *SettlementStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close closes the pool.
func (s *SettlementStore) Close() error {
	s.pool.Close()
	return nil
}

func settlementBatch(rows []model.Record) *pgx.Batch {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(insertSettlement,
			r.WagerID, r.Seq, r.SessionID, r.MarketID, r.Direction, r.Amount,
			r.PriceAtPlacement, r.SettlementPrice, r.Outcome, r.Winnings, r.Balance,
			r.Tick, r.PlacedAt, r.SettledAt,
		)
	}
	return batch
}
