package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStorage keeps keys in the storefront_kv table, namespaced by
// prefix so several clients can share one database.
type PostgresStorage struct {
	pool   *pgxpool.Pool
	prefix string
}

func NewPostgresStorage(pool *pgxpool.Pool, prefix string) *PostgresStorage {
	return &PostgresStorage{pool: pool, prefix: prefix}
}

func (p *PostgresStorage) Get(ctx context.Context, key string) ([]byte, error) {
	const query = `SELECT value FROM storefront_kv WHERE key = $1`

	var value []byte
	if err := p.pool.QueryRow(ctx, query, p.prefix+key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}
	return value, nil
}

func (p *PostgresStorage) Set(ctx context.Context, key string, value []byte) error {
	const query = `
		INSERT INTO storefront_kv (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`
	_, err := p.pool.Exec(ctx, query, p.prefix+key, value)
	return err
}

func (p *PostgresStorage) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, key := range keys {
		full = append(full, p.prefix+key)
	}
	const query = `DELETE FROM storefront_kv WHERE key = ANY($1)`
	_, err := p.pool.Exec(ctx, query, full)
	return err
}

func (p *PostgresStorage) Close() error {
	p.pool.Close()
	return nil
}
