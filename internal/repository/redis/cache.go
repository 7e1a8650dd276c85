package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Cache is a read-through JSON cache in front of the ledger. Concurrent
// misses on one key share a single load.
type Cache struct {
	rdb *redis.Client
	sf  singleflight.Group
}

func New(client *redis.Client) *Cache {
	return &Cache{rdb: client}
}

func (c *Cache) lookup(ctx context.Context, key string, out any) bool {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		// redis.Nil and an unreachable server look the same to callers: a miss.
		return false
	}

	return json.Unmarshal(b, out) == nil
}

func (c *Cache) store(ctx context.Context, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	return c.rdb.Set(ctx, key, b, ttl).Err()
}

// GetOrSetJSON returns the cached value for key or loads, stores and
// returns it. A nil cache calls loader directly. Loader errors are not
// cached.
func GetOrSetJSON[T any](
	ctx context.Context,
	c *Cache,
	key string,
	ttl time.Duration,
	loader func(ctx context.Context) (T, error),
) (T, error) {
	if c == nil {
		return loader(ctx)
	}

	var cached T
	if c.lookup(ctx, key, &cached) {
		return cached, nil
	}

	// The shared load outlives any single caller's cancellation.
	loadCtx := context.WithoutCancel(ctx)

	v, err, _ := c.sf.Do(key, func() (any, error) {
		var again T
		if c.lookup(loadCtx, key, &again) {
			return again, nil
		}

		loaded, err := loader(loadCtx)
		if err != nil {
			return nil, err
		}

		_ = c.store(loadCtx, key, loaded, ttl)

		return loaded, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}

	out, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("redis.GetOrSetJSON: cached %T for %s", v, key)
	}

	return out, nil
}

// InvalidateFlight drops the cached summary of a flight. A load already in
// flight may still write the old value back; the TTL bounds how long it
// survives.
func (c *Cache) InvalidateFlight(ctx context.Context, flightID int64) error {
	key := KeyFlightSummary(flightID)
	c.sf.Forget(key)

	return c.rdb.Del(ctx, key).Err()
}
