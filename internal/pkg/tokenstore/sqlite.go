// internal/pkg/tokenstore/sqlite.go
package tokenstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS tokens (
	key        TEXT PRIMARY KEY,
	token      TEXT NOT NULL,
	updated_at INTEGER NOT NULL
)`

// SQLite is durable keyed token storage in a single table.
type SQLite struct {
	db *sql.DB
}

// NewSQLite creates the tokens table when missing.
func NewSQLite(ctx context.Context, db *sql.DB) (*SQLite, error) {
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("failed to create tokens table: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Get(ctx context.Context, key string) (string, bool, error) {
	var token string
	err := s.db.QueryRowContext(ctx, `SELECT token FROM tokens WHERE key = ?`, key).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read token: %w", err)
	}
	return token, true, nil
}

func (s *SQLite) Set(ctx context.Context, key, token string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tokens (key, token, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET token = excluded.token, updated_at = excluded.updated_at`,
		key, token, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}

func (s *SQLite) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tokens WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}
