package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestCache(t *testing.T, ttl time.Duration) (*Cache, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	cache := NewWithClient(client, ttl, zerolog.Nop())
	t.Cleanup(func() { cache.Close() })

	return cache, mr
}

func TestCacheRoundTrip(t *testing.T) {
	cache, _ := setupTestCache(t, time.Minute)
	ctx := context.Background()

	_, ok := cache.Get(ctx, "a@x.io, group:admin")
	assert.False(t, ok, "fresh cache must miss")

	cache.Set(ctx, "a@x.io, group:admin", []string{"a@x.io", "ops@x.io"})

	emails, ok := cache.Get(ctx, "a@x.io, group:admin")
	require.True(t, ok)
	assert.Equal(t, []string{"a@x.io", "ops@x.io"}, emails)
}

func TestCacheEmptyListIsAHit(t *testing.T) {
	cache, _ := setupTestCache(t, time.Minute)
	ctx := context.Background()

	cache.Set(ctx, "nobody:anywhere", []string{})

	emails, ok := cache.Get(ctx, "nobody:anywhere")
	assert.True(t, ok, "a resolved empty list is still a cached result")
	assert.Empty(t, emails)
}

func TestCacheEntriesExpire(t *testing.T) {
	cache, mr := setupTestCache(t, time.Minute)
	ctx := context.Background()

	cache.Set(ctx, "group:admin", []string{"ops@x.io"})
	mr.FastForward(2 * time.Minute)

	_, ok := cache.Get(ctx, "group:admin")
	assert.False(t, ok, "entry must expire after the ttl")
}

func TestCacheDefaultTTL(t *testing.T) {
	cache, mr := setupTestCache(t, 0)
	ctx := context.Background()

	cache.Set(ctx, "group:admin", []string{"ops@x.io"})

	ttl := mr.TTL(keyPrefix + "group:admin")
	assert.InDelta(t, (5 * time.Minute).Seconds(), ttl.Seconds(), 5)
}

func TestCacheCorruptEntryIsAMiss(t *testing.T) {
	cache, mr := setupTestCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, mr.Set(keyPrefix+"group:admin", "{not json"))

	_, ok := cache.Get(ctx, "group:admin")
	assert.False(t, ok)
}

func TestCacheUnreachableRedisIsAMiss(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{Addr: "invalid-address:6379"})
	defer client.Close()

	cache := NewWithClient(client, time.Minute, zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, ok := cache.Get(ctx, "group:admin")
	assert.False(t, ok)

	// Set must not panic either; failures are logged and dropped.
	cache.Set(ctx, "group:admin", []string{"ops@x.io"})
}

func TestNewPingsTheServer(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()

	c, err := New(addr, "", 0, time.Minute, zerolog.Nop())
	require.NoError(t, err)
	defer c.Close()

	mr.Close()

	_, err = New(addr, "", 0, time.Minute, zerolog.Nop())
	assert.Error(t, err)
}
