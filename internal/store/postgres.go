package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgGet    = `SELECT value FROM game_state WHERE key = $1`
	pgUpsert = `INSERT INTO game_state (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`
)

// Postgres stores state in the game_state table created by the database
// migrations.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an open pool. The pool is owned by the caller.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	err := p.pool.QueryRow(ctx, pgGet, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", key, err)
	}
	return v, nil
}

func (p *Postgres) Apply(ctx context.Context, batch []Write) error {
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		b := &pgx.Batch{}
		for _, w := range batch {
			b.Queue(pgUpsert, w.Key, w.Value)
		}
		if err := tx.SendBatch(ctx, b).Close(); err != nil {
			return fmt.Errorf("upsert batch: %w", err)
		}
		return nil
	})
}

func (p *Postgres) Close() error { return nil }
