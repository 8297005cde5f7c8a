// Package redis implements dedup.Store on top of go-redis/v9 so several
// relay instances can share one duplicate cache.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "mediahook:dedup:"

// Config holds connection parameters for the Redis-backed store.
type Config struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// Store implements dedup.Store using SET NX PX.
type Store struct {
	rdb    *redis.Client
	prefix string
}

// New connects to Redis and verifies the connection with PING.
func New(ctx context.Context, cfg Config) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}

	return NewWithClient(rdb, cfg.KeyPrefix), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(rdb *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &Store{rdb: rdb, prefix: prefix}
}

func (s *Store) key(fp string) string {
	return s.prefix + fp
}

// Seen reports whether the fingerprint key exists.
func (s *Store) Seen(ctx context.Context, fp string) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.key(fp)).Result()
	if err != nil {
		return false, fmt.Errorf("redis: exists: %w", err)
	}
	return n > 0, nil
}

// Record stores the fingerprint with a TTL, overwriting any existing entry.
func (s *Store) Record(ctx context.Context, fp string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, s.key(fp), 1, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set: %w", err)
	}
	return nil
}

// CheckAndRecord relies on SET NX being atomic on the server.
func (s *Store) CheckAndRecord(ctx context.Context, fp string, ttl time.Duration) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, s.key(fp), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: setnx: %w", err)
	}
	return !ok, nil
}

// Forget deletes the fingerprint key.
func (s *Store) Forget(ctx context.Context, fp string) error {
	if err := s.rdb.Del(ctx, s.key(fp)).Err(); err != nil {
		return fmt.Errorf("redis: del: %w", err)
	}
	return nil
}

// Len counts keys under the configured prefix.
func (s *Store) Len(ctx context.Context) (int, error) {
	n := 0
	iter := s.rdb.Scan(ctx, 0, s.prefix+"*", 500).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("redis: scan: %w", err)
	}
	return n, nil
}

// Ping checks the Redis connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.rdb.Close()
}
