// Package cache is the best-effort Redis response cache for rendered
// node trees. Every failure path degrades to a miss or a skipped write;
// a cache outage never fails a request.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const versionKey = "nodes:version"

// ResponseCache stores rendered list responses keyed by request context
// and a global version counter. Mutations bump the counter, which makes
// every previously written key unreachable; stale entries age out via
// the TTL rather than being evicted.
type ResponseCache struct {
	client *redis.Client
	ttl    time.Duration
}

func New(redisURL string, ttl time.Duration) (*ResponseCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewWithClient(client, ttl), nil
}

// NewWithClient wraps an existing Redis client, as in tests.
func NewWithClient(client *redis.Client, ttl time.Duration) *ResponseCache {
	if ttl <= 0 {
		ttl = 180 * time.Second
	}
	return &ResponseCache{client: client, ttl: ttl}
}

// Key builds a cache key differentiated by everything that changes the
// rendered output: the version counter plus the request's locale,
// timezone and depth.
func (c *ResponseCache) Key(ctx context.Context, locale, timezone, depth string) string {
	return fmt.Sprintf("nodes:list:v%d:%s:%s:%s", c.version(ctx), locale, timezone, depth)
}

// version reads the current invalidation counter. A missing key or a
// Redis error both read as version 0.
func (c *ResponseCache) version(ctx context.Context) int64 {
	version, err := c.client.Get(ctx, versionKey).Int64()
	if err != nil {
		return 0
	}
	return version
}

// Bump atomically increments the version counter, invalidating every
// key written under the previous version. Errors are swallowed: the
// stale window is bounded by the TTL.
func (c *ResponseCache) Bump(ctx context.Context) {
	_ = c.client.Incr(ctx, versionKey).Err()
}

// Get returns the cached payload for key, or false on miss or error.
func (c *ResponseCache) Get(ctx context.Context, key string) ([]byte, bool) {
	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return payload, true
}

// Set stores a payload under key for the configured TTL, best-effort.
func (c *ResponseCache) Set(ctx context.Context, key string, payload []byte) {
	_ = c.client.Set(ctx, key, payload, c.ttl).Err()
}

func (c *ResponseCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *ResponseCache) Close() error {
	return c.client.Close()
}
