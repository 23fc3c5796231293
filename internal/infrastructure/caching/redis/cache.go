package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const keyPrefix = "notify:subscribers:"

// Cache memoizes resolved subscriber lists in Redis. Lookups are best
// effort: a Redis failure reads as a miss so dispatch never depends on
// the cache being up.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
	lg  zerolog.Logger
}

func New(addr, password string, db int, ttl time.Duration, lg zerolog.Logger) (*Cache, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return NewWithClient(rdb, ttl, lg), nil
}

// NewWithClient wraps an already-connected client.
func NewWithClient(rdb *redis.Client, ttl time.Duration, lg zerolog.Logger) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{
		rdb: rdb,
		ttl: ttl,
		lg:  lg.With().Str("component", "subscriber_cache").Logger(),
	}
}

func (c *Cache) Close() error {
	return c.rdb.Close()
}

// Get implements notify.SubscriberCache.
func (c *Cache) Get(ctx context.Context, key string) ([]string, bool) {
	val, err := c.rdb.Get(ctx, keyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.lg.Warn().Err(err).Msg("subscriber cache read failed")
		return nil, false
	}
	var emails []string
	if err := json.Unmarshal(val, &emails); err != nil {
		c.lg.Warn().Err(err).Msg("subscriber cache entry is not valid json")
		return nil, false
	}
	return emails, true
}

// Set implements notify.SubscriberCache.
func (c *Cache) Set(ctx context.Context, key string, emails []string) {
	bytes, err := json.Marshal(emails)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, keyPrefix+key, bytes, c.ttl).Err(); err != nil {
		c.lg.Warn().Err(err).Msg("subscriber cache write failed")
	}
}
