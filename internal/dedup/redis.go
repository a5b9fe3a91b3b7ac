package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache backs the recency set with Redis so dedup state survives
// process restarts. SET NX makes the duplicate check and the insert one
// atomic step; the TTL plays the role of the in-memory eviction.
type RedisCache struct {
	rdb         *redis.Client
	keyPrefix   string
	ttl         time.Duration
	minNotional float64
}

// NewRedisCache creates a RedisCache. ttl <= 0 defaults to 24h.
func NewRedisCache(rdb *redis.Client, keyPrefix string, ttl time.Duration, minNotional float64) *RedisCache {
	if keyPrefix == "" {
		keyPrefix = "dedup"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisCache{
		rdb:         rdb,
		keyPrefix:   keyPrefix,
		ttl:         ttl,
		minNotional: minNotional,
	}
}

// Admit offers an event reference; see dedup.Cache.
func (c *RedisCache) Admit(ctx context.Context, externalRef string, notional float64) (Verdict, error) {
	if c.minNotional > 0 && notional < c.minNotional {
		return Immaterial, nil
	}

	set, err := c.rdb.SetNX(ctx, c.key(externalRef), 1, c.ttl).Result()
	if err != nil {
		return Admitted, fmt.Errorf("dedup setnx: %w", err)
	}
	if !set {
		return Duplicate, nil
	}
	return Admitted, nil
}

// Len reports the number of tracked references currently in Redis.
func (c *RedisCache) Len(ctx context.Context) (int, error) {
	var count int
	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, c.keyPrefix+":*", 1000).Result()
		if err != nil {
			return 0, fmt.Errorf("dedup scan: %w", err)
		}
		count += len(keys)
		if next == 0 {
			return count, nil
		}
		cursor = next
	}
}

func (c *RedisCache) key(externalRef string) string {
	return c.keyPrefix + ":" + externalRef
}

// Verify interface compliance at compile time.
var _ Cache = (*RedisCache)(nil)
