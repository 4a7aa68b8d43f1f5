package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/amoria/matchcore/internal/config"
)

// CounterTTL bounds how stale a mirrored activity counter may be.
const CounterTTL = 10 * time.Minute

type RedisCache struct {
	Client *redis.Client
}

// NewRedisCache initializes Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return &RedisCache{Client: redis.NewClient(opts)}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.Client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	return c.Client.Get(ctx, key).Result()
}

func (c *RedisCache) Del(ctx context.Context, key string) error {
	return c.Client.Del(ctx, key).Err()
}

// KeyForActivity mirrors one durable daily counter row.
func (c *RedisCache) KeyForActivity(userID uint64, activityType, date string) string {
	return fmt.Sprintf("activity:%d:%s:%s", userID, activityType, date)
}

// GetActivityCount reads a mirrored counter. Returns (value, true) on a hit;
// any Redis error counts as a miss — the durable store stays authoritative.
func (c *RedisCache) GetActivityCount(ctx context.Context, key string) (int64, bool) {
	val, err := c.Client.Get(ctx, key).Result()
	if err != nil {
		return 0, false
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// PutActivityCount writes through the latest durable value. Best-effort.
func (c *RedisCache) PutActivityCount(ctx context.Context, key string, count int64) error {
	return c.Client.Set(ctx, key, count, CounterTTL).Err()
}

// KeyForAdmirerCount caches the "who liked me" count per user.
func (c *RedisCache) KeyForAdmirerCount(userID uint64) string {
	return fmt.Sprintf("admirers:count:%d", userID)
}

// IncrWindow counts an event in a fixed window and returns the running total.
// The key carries its window bucket; the expiry is set on first increment so
// abandoned buckets clean themselves up.
func (c *RedisCache) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	n, err := c.Client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		_ = c.Client.Expire(ctx, key, window).Err()
	}
	return n, nil
}

// WindowCount reads a window counter without incrementing it.
// A missing key is zero.
func (c *RedisCache) WindowCount(ctx context.Context, key string) (int64, error) {
	val, err := c.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	return strconv.ParseInt(val, 10, 64)
}

// KeyForMinuteWindow buckets an action into the current clock minute.
func KeyForMinuteWindow(action string, userID uint64, now time.Time) string {
	return fmt.Sprintf("rl:%s:%d:%d", action, userID, now.Unix()/60)
}
