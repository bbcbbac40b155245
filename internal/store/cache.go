package store

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const identityCacheTTL = 12 * time.Hour

// IdentityCache is a redis-backed read-through cache for external-id to
// internal-id lookups. Cache failures degrade to a miss; the resolver's key
// scan stays the source of truth.
type IdentityCache struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// NewIdentityCache connects to redis and verifies connectivity.
func NewIdentityCache(redisURL string, logger *zap.Logger) (*IdentityCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &IdentityCache{rdb: rdb, logger: logger}, nil
}

func (c *IdentityCache) Get(ctx context.Context, key string) (int64, bool) {
	val, err := c.rdb.Get(ctx, cacheKey(key)).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("identity cache read", zap.String("key", key), zap.Error(err))
		}
		return 0, false
	}
	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func (c *IdentityCache) Put(ctx context.Context, key string, id int64) {
	if err := c.rdb.Set(ctx, cacheKey(key), strconv.FormatInt(id, 10), identityCacheTTL).Err(); err != nil {
		c.logger.Warn("identity cache write", zap.String("key", key), zap.Error(err))
	}
}

// Forget drops a cached mapping, typically after a forced delete.
func (c *IdentityCache) Forget(ctx context.Context, key string) {
	if err := c.rdb.Del(ctx, cacheKey(key)).Err(); err != nil {
		c.logger.Warn("identity cache delete", zap.String("key", key), zap.Error(err))
	}
}

// Close releases the redis connection.
func (c *IdentityCache) Close() error { return c.rdb.Close() }

func cacheKey(key string) string { return "identity:" + key }
