// Package cache wraps Redis for two jobs: short-lived caching of
// flight search responses and advisory seat locks that shed doomed
// checkout attempts before they reach the database.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Domenick1991/flightbooking/config"
)

type RedisCache struct {
	client     *redis.Client
	flightsTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, flightsTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:     redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		flightsTTL: flightsTTL,
	}
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// GetSearch returns the cached response for a search key, or (nil, nil)
// on a miss.
func (c *RedisCache) GetSearch(ctx context.Context, key string, out interface{}) (bool, error) {
	data, err := c.client.Get(ctx, c.searchKey(ctx, key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, err
	}
	return true, nil
}

func (c *RedisCache) SetSearch(ctx context.Context, key string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.searchKey(ctx, key), payload, c.flightsTTL).Err()
}

// InvalidateSearches bumps the generation counter baked into every
// search key, orphaning all cached responses at once. The orphans age
// out via their TTL.
func (c *RedisCache) InvalidateSearches(ctx context.Context) error {
	return c.client.Incr(ctx, "cache:flights:gen").Err()
}

func (c *RedisCache) searchKey(ctx context.Context, key string) string {
	gen, err := c.client.Get(ctx, "cache:flights:gen").Int64()
	if err != nil {
		gen = 0
	}
	return fmt.Sprintf("cache:flights:%d:%s", gen, key)
}

// AcquireSeatLock takes a short advisory lock on a (flight, seat) pair.
// The database unique index stays authoritative; the lock only turns
// most seat races into a fast rejection.
func (c *RedisCache) AcquireSeatLock(ctx context.Context, flightID int64, seat string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, seatLockKey(flightID, seat), "locked", ttl).Result()
}

func (c *RedisCache) ReleaseSeatLock(ctx context.Context, flightID int64, seat string) error {
	return c.client.Del(ctx, seatLockKey(flightID, seat)).Err()
}

func seatLockKey(flightID int64, seat string) string {
	return fmt.Sprintf("lock:flight:%d:seat:%s", flightID, seat)
}
