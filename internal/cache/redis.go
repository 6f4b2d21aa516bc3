package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/imagefork/redirect/internal/metrics"
)

// RedisCache is a Redis-based implementation of TokenCache
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache creates a new Redis-based coherency token cache
func NewRedisCache(address, password string, db int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{
		client: client,
		prefix: "imagefork:token:",
	}, nil
}

// Resolve returns the poster id bound to key, populating it on a miss.
//
// The hit path is GETEX with EX, a single atomic get-and-refresh. The miss
// path binds populate's value with SET NX GET EX: the GET flag makes Redis
// return the value stored *before* the SET, so a caller that lost a
// populate race reads back the winner's id in the same round trip. go-redis
// surfaces the absent-key case of that command as redis.Nil, which is the
// "our value was stored" branch.
func (c *RedisCache) Resolve(ctx context.Context, key string, ttl time.Duration, populate PopulateFunc) (int64, bool, error) {
	k := c.prefix + key

	id, err := c.client.GetEx(ctx, k, ttl).Int64()
	if err == nil {
		metrics.RecordCoherencyAction("hit")
		return id, true, nil
	}
	if !errors.Is(err, redis.Nil) {
		return 0, false, fmt.Errorf("coherency cache read: %w", err)
	}

	id, ok, err := populate(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("populate poster for token: %w", err)
	}
	if !ok {
		// Absence is never cached, so a poster becoming servable later is
		// picked up by the next request.
		metrics.RecordCoherencyAction("none_found")
		return 0, false, nil
	}

	prev, err := c.client.SetArgs(ctx, k, id, redis.SetArgs{
		Mode: "NX",
		Get:  true,
		TTL:  ttl,
	}).Result()
	if errors.Is(err, redis.Nil) {
		// Key was still absent; our value won.
		metrics.RecordCoherencyAction("update")
		return id, true, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("coherency cache write: %w", err)
	}

	winner, perr := strconv.ParseInt(prev, 10, 64)
	if perr != nil {
		return 0, false, fmt.Errorf("coherency cache holds non-numeric value %q: %w", prev, perr)
	}
	metrics.RecordCoherencyAction("update_discarded")
	return winner, true, nil
}

// Ping verifies the Redis connection
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}
