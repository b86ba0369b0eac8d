package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s, err := NewMemoryStore(10, time.Minute)
	require.NoError(t, err)

	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)

	value := []byte("vector")
	require.NoError(t, s.Set(ctx, "k", value, 0))
	value[0] = 'X'

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("vector"), got, "store keeps its own copy")

	require.NoError(t, s.Delete(ctx, "k"))
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)

	_, err = NewMemoryStore(0, time.Minute)
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store, err := NewRedisStore(client, "pqa:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t)

	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
	assert.True(t, mr.Exists("pqa:k"), "keys are namespaced")

	mr.FastForward(2 * time.Minute)
	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, store.Set(ctx, "k2", []byte("v2"), 0))
	require.NoError(t, store.Delete(ctx, "k2"))
	_, err = store.Get(ctx, "k2")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedisStore_Unavailable(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t)
	mr.Close()

	_, err := store.Get(ctx, "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMiss)
}

func TestDialRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := DialRedis(context.Background(), mr.Addr(), "")
	require.NoError(t, err)
	defer store.Close()

	_, err = DialRedis(context.Background(), "127.0.0.1:1", "")
	assert.Error(t, err)
}

func TestNewRedisStore_NilClient(t *testing.T) {
	_, err := NewRedisStore(nil, "")
	assert.Error(t, err)
}
