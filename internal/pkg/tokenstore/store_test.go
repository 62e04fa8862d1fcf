package tokenstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// exerciseKeyed runs the contract shared by every keyed store.
func exerciseKeyed(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "token")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "token", "abc"))
	require.NoError(t, s.Set(ctx, "other", "xyz"))

	got, ok, err := s.Get(ctx, "token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc", got)

	require.NoError(t, s.Set(ctx, "token", "def"))
	got, _, _ = s.Get(ctx, "token")
	assert.Equal(t, "def", got)

	require.NoError(t, s.Remove(ctx, "token"))
	_, ok, err = s.Get(ctx, "token")
	require.NoError(t, err)
	assert.False(t, ok)

	got, ok, _ = s.Get(ctx, "other")
	assert.True(t, ok)
	assert.Equal(t, "xyz", got)

	require.NoError(t, s.Remove(ctx, "missing"))
}

func TestMemory_SingleSlotIgnoresKey(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Set(ctx, "a", "one"))
	require.NoError(t, m.Set(ctx, "b", "two"))

	got, ok, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "two", got)

	require.NoError(t, m.Remove(ctx, "zzz"))
	_, ok, _ = m.Get(ctx, "b")
	assert.False(t, ok)
}

func TestMap(t *testing.T) {
	exerciseKeyed(t, NewMap())
}

func TestScoped_IsolatesScopes(t *testing.T) {
	ctx := context.Background()
	backend := NewMap()
	a := NewScoped(backend, "device-a")
	b := NewScoped(backend, "device-b")

	require.NoError(t, a.Set(ctx, "token", "for-a"))

	_, ok, _ := b.Get(ctx, "token")
	assert.False(t, ok)

	raw, ok, _ := backend.Get(ctx, "device-a:token")
	assert.True(t, ok)
	assert.Equal(t, "for-a", raw)

	exerciseKeyed(t, b)
}

type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
	err  error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	f.data[key] = value.(string)
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestRedis(t *testing.T) {
	client := newFakeRedis()
	exerciseKeyed(t, NewRedis(client, "app", time.Hour))

	assert.Contains(t, client.data, "app:other")
	assert.Equal(t, time.Hour, client.ttls["app:other"])
}

func TestRedis_NilClientIsNoop(t *testing.T) {
	ctx := context.Background()
	s := NewRedis(nil, "", 0)

	require.NoError(t, s.Set(ctx, "token", "abc"))
	_, ok, err := s.Get(ctx, "token")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, s.Remove(ctx, "token"))
}

func TestRedis_BackendError(t *testing.T) {
	client := newFakeRedis()
	client.err = errors.New("connection refused")
	s := NewRedis(client, "", 0)

	_, _, err := s.Get(context.Background(), "token")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Error(t, s.Set(context.Background(), "token", "x"))
}

func TestSQLite(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	s, err := NewSQLite(context.Background(), db)
	require.NoError(t, err)

	exerciseKeyed(t, s)
}

type fakeRow struct {
	value string
	err   error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*string)) = r.value
	return nil
}

type fakePool struct {
	mu   sync.Mutex
	data map[string]string
}

func (p *fakePool) Exec(_ context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case strings.HasPrefix(query, "CREATE TABLE"):
		return pgconn.NewCommandTag("CREATE TABLE"), nil
	case strings.HasPrefix(query, "INSERT"):
		p.data[args[0].(string)] = args[1].(string)
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	case strings.HasPrefix(query, "DELETE"):
		delete(p.data, args[0].(string))
		return pgconn.NewCommandTag("DELETE 1"), nil
	}
	return pgconn.CommandTag{}, errors.New("unexpected query")
}

func (p *fakePool) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.data[args[0].(string)]
	if !ok {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{value: v}
}

func TestPostgres(t *testing.T) {
	s, err := NewPostgres(context.Background(), &fakePool{data: map[string]string{}})
	require.NoError(t, err)

	exerciseKeyed(t, s)
}
