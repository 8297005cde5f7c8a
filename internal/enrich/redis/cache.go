// Package redis implements enrich.Cache on Redis so enrichment results
// survive restarts and are shared between relay instances.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/mediahook/internal/enrich"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "mediahook:meta:"

// Config holds connection parameters for the Redis-backed cache.
type Config struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

// Cache stores entries as JSON strings with a Redis TTL.
type Cache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// New connects to Redis and verifies the connection with PING.
func New(ctx context.Context, cfg Config) (*Cache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}

	return NewWithClient(rdb, cfg.KeyPrefix, cfg.TTL), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(rdb *redis.Client, prefix string, ttl time.Duration) *Cache {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	if ttl <= 0 {
		ttl = enrich.DefaultCacheTTL
	}
	return &Cache{rdb: rdb, prefix: prefix, ttl: ttl}
}

// Get implements enrich.Cache.
func (c *Cache) Get(ctx context.Context, key string) (enrich.CacheEntry, bool, error) {
	raw, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return enrich.CacheEntry{}, false, nil
	}
	if err != nil {
		return enrich.CacheEntry{}, false, fmt.Errorf("redis: get: %w", err)
	}

	var entry enrich.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return enrich.CacheEntry{}, false, fmt.Errorf("redis: decode entry: %w", err)
	}
	return entry, true, nil
}

// Set implements enrich.Cache.
func (c *Cache) Set(ctx context.Context, key string, entry enrich.CacheEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("redis: encode entry: %w", err)
	}
	if err := c.rdb.Set(ctx, c.prefix+key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set: %w", err)
	}
	return nil
}

// Cleanup implements enrich.Cache. Redis expires keys itself.
func (c *Cache) Cleanup(_ context.Context) (int64, error) {
	return 0, nil
}

// Close closes the underlying client.
func (c *Cache) Close() error {
	return c.rdb.Close()
}
