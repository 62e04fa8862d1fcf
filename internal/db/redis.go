// internal/db/redis.go
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const pingTimeout = 5 * time.Second

type RedisConfig struct {
	ClusterMode bool
	Addresses   []string
	Password    string
	DB          int
	PoolSize    int
}

// NewRedis returns a cluster client when ClusterMode is set and a single node
// client otherwise. The connection is checked before returning.
func NewRedis(ctx context.Context, cfg RedisConfig) (redis.UniversalClient, error) {
	if len(cfg.Addresses) == 0 {
		return nil, fmt.Errorf("no Redis address provided")
	}

	var client redis.UniversalClient
	if cfg.ClusterMode {
		client = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:    cfg.Addresses,
			Password: cfg.Password,
			PoolSize: cfg.PoolSize,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr:     cfg.Addresses[0],
			Password: cfg.Password,
			DB:       cfg.DB,
			PoolSize: cfg.PoolSize,
		})
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis (cluster=%t): %w", cfg.ClusterMode, err)
	}
	return client, nil
}
