// internal/db/store.go
package db

import (
	"context"
	"fmt"
	"time"

	"authbridge/internal/pkg/tokenstore"

	"go.uber.org/zap"
)

// StoreConfig selects and configures the durable token backend.
type StoreConfig struct {
	Backend     string // memory | redis | sqlite | postgres
	Redis       RedisConfig
	TokenTTL    time.Duration
	SQLitePath  string
	PostgresDSN string
}

// OpenTokenStore connects the configured backend. The returned close func is never nil.
func OpenTokenStore(ctx context.Context, cfg StoreConfig, logger *zap.Logger) (tokenstore.Store, func(), error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	noop := func() {}

	switch cfg.Backend {
	case "", "memory":
		logger.Info("[STORE] using in-process token map")
		return tokenstore.NewMap(), noop, nil

	case "redis":
		client, err := NewRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, noop, err
		}
		logger.Info("[REDIS] connected",
			zap.Strings("addrs", cfg.Redis.Addresses),
			zap.Bool("cluster", cfg.Redis.ClusterMode),
		)
		return tokenstore.NewRedis(client, "", cfg.TokenTTL), func() { _ = client.Close() }, nil

	case "sqlite":
		sqlDB, err := OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, noop, err
		}
		store, err := tokenstore.NewSQLite(ctx, sqlDB)
		if err != nil {
			_ = sqlDB.Close()
			return nil, noop, err
		}
		logger.Info("[SQLITE] token store ready", zap.String("path", cfg.SQLitePath))
		return store, func() { _ = sqlDB.Close() }, nil

	case "postgres":
		pool, err := ConnectPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, noop, err
		}
		store, err := tokenstore.NewPostgres(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, noop, err
		}
		logger.Info("[POSTGRES] token store ready")
		return store, pool.Close, nil
	}

	return nil, noop, fmt.Errorf("unknown token store backend %q", cfg.Backend)
}
