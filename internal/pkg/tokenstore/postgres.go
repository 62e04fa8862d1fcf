// internal/pkg/tokenstore/postgres.go
package tokenstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS client_tokens (
	key        TEXT PRIMARY KEY,
	token      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// PgxPool is the subset of *pgxpool.Pool used by the store.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres is durable keyed token storage for hosts that already run Postgres.
type Postgres struct {
	pool PgxPool
}

func NewPostgres(ctx context.Context, pool PgxPool) (*Postgres, error) {
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("failed to create client_tokens table: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Get(ctx context.Context, key string) (string, bool, error) {
	var token string
	err := p.pool.QueryRow(ctx, `SELECT token FROM client_tokens WHERE key = $1`, key).Scan(&token)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read token: %w", err)
	}
	return token, true, nil
}

func (p *Postgres) Set(ctx context.Context, key, token string) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO client_tokens (key, token, updated_at) VALUES ($1, $2, NOW())
		 ON CONFLICT (key) DO UPDATE SET token = EXCLUDED.token, updated_at = NOW()`,
		key, token,
	)
	if err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}

func (p *Postgres) Remove(ctx context.Context, key string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM client_tokens WHERE key = $1`, key); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}
