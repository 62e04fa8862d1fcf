// internal/pkg/tokenstore/redis.go
package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the subset of go-redis used by the store.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Redis is durable keyed token storage. A nil client turns every call into a
// no-op that reports "absent".
type Redis struct {
	client RedisClient
	prefix string
	ttl    time.Duration
}

// NewRedis stores tokens under "<prefix>:<key>". A zero ttl keeps tokens until removed.
func NewRedis(client RedisClient, prefix string, ttl time.Duration) *Redis {
	if prefix == "" {
		prefix = "authbridge:token"
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	if r.client == nil {
		return "", false, nil
	}

	token, err := r.client.Get(ctx, r.tokenKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read token from redis: %w", err)
	}
	return token, true, nil
}

func (r *Redis) Set(ctx context.Context, key, token string) error {
	if r.client == nil {
		return nil
	}
	if err := r.client.Set(ctx, r.tokenKey(key), token, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store token in redis: %w", err)
	}
	return nil
}

func (r *Redis) Remove(ctx context.Context, key string) error {
	if r.client == nil {
		return nil
	}
	if err := r.client.Del(ctx, r.tokenKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete token from redis: %w", err)
	}
	return nil
}

func (r *Redis) tokenKey(key string) string {
	return fmt.Sprintf("%s:%s", r.prefix, key)
}
