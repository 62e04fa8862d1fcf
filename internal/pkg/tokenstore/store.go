// internal/pkg/tokenstore/store.go
package tokenstore

import (
	"context"
)

// Store persists a bearer token under a key.
// Get reports ok=false when nothing is stored; backend failures return an error.
type Store interface {
	Get(ctx context.Context, key string) (token string, ok bool, err error)
	Set(ctx context.Context, key, token string) error
	Remove(ctx context.Context, key string) error
}

// Scoped namespaces every key with a prefix, so one durable backend can serve
// many devices the way a browser scopes local storage per origin.
type Scoped struct {
	inner  Store
	prefix string
}

func NewScoped(inner Store, scope string) *Scoped {
	return &Scoped{inner: inner, prefix: scope + ":"}
}

func (s *Scoped) Get(ctx context.Context, key string) (string, bool, error) {
	return s.inner.Get(ctx, s.prefix+key)
}

func (s *Scoped) Set(ctx context.Context, key, token string) error {
	return s.inner.Set(ctx, s.prefix+key, token)
}

func (s *Scoped) Remove(ctx context.Context, key string) error {
	return s.inner.Remove(ctx, s.prefix+key)
}
