package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStoreWithClient(client, "test:block:")
	t.Cleanup(func() { _ = s.Close() })

	return s, mr
}

func TestRedisStore_PutGet(t *testing.T) {
	s, _ := testRedisStore(t)
	ctx := context.Background()

	until := time.Now().Add(time.Minute)
	require.NoError(t, s.Put(ctx, "192.0.2.1", until))

	got, ok, err := s.Get(ctx, "192.0.2.1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.WithinDuration(t, until, got, time.Millisecond)
}

func TestRedisStore_Get_Missing(t *testing.T) {
	s, _ := testRedisStore(t)

	_, ok, err := s.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore_Put_PastExpiryDeletes(t *testing.T) {
	s, _ := testRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "192.0.2.1", time.Now().Add(time.Minute)))
	require.NoError(t, s.Put(ctx, "192.0.2.1", time.Now().Add(-time.Second)))

	_, ok, err := s.Get(ctx, "192.0.2.1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore_TTLExpiry(t *testing.T) {
	s, mr := testRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "192.0.2.1", time.Now().Add(50*time.Millisecond)))

	mr.FastForward(100 * time.Millisecond)

	_, ok, err := s.Get(ctx, "192.0.2.1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore_Delete(t *testing.T) {
	s, _ := testRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "192.0.2.1", time.Now().Add(time.Minute)))
	require.NoError(t, s.Delete(ctx, "192.0.2.1"))

	_, ok, err := s.Get(ctx, "192.0.2.1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore_List(t *testing.T) {
	s, _ := testRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "192.0.2.1", time.Now().Add(time.Minute)))
	require.NoError(t, s.Put(ctx, "192.0.2.2", time.Now().Add(time.Hour)))

	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Contains(t, list, "192.0.2.1")
	assert.Contains(t, list, "192.0.2.2")
}

func TestRedisStore_Close_Idempotent(t *testing.T) {
	s, _ := testRedisStore(t)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}
