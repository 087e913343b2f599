package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultCachePrefix = "carprice:cache"

// Cache implements domain.Cache with JSON-encoded values.
type Cache struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewCache creates a cache with keys under prefix. An empty prefix uses
// the default namespace.
func NewCache(rdb redis.UniversalClient, prefix string) *Cache {
	if prefix == "" {
		prefix = defaultCachePrefix
	}
	return &Cache{rdb: rdb, prefix: prefix}
}

// Get decodes the value at key into dst. A missing key is (false, nil);
// an undecodable value is treated as missing and removed.
func (c *Cache) Get(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := c.rdb.Get(ctx, c.prefix+":"+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.rdb.Del(ctx, c.prefix+":"+key)
		return false, nil
	}
	return true, nil
}

// Set stores value under key for ttl.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache value: %w", err)
	}
	if err := c.rdb.Set(ctx, c.prefix+":"+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
