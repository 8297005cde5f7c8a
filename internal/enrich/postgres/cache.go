// Package postgres implements enrich.Cache on PostgreSQL.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/mediahook/internal/enrich"
	"github.com/bissquit/mediahook/internal/pkg/postgres"
	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate creates or upgrades the cache schema.
func Migrate(databaseURL string) error {
	return postgres.Migrate(migrations, "migrations", databaseURL)
}

// Cache stores entries in the metadata_cache table.
type Cache struct {
	db  *pgxpool.Pool
	ttl time.Duration
	now func() time.Time
}

// NewCache creates a Cache over db. A non-positive ttl uses
// enrich.DefaultCacheTTL.
func NewCache(db *pgxpool.Pool, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = enrich.DefaultCacheTTL
	}
	return &Cache{db: db, ttl: ttl, now: time.Now}
}

// Get implements enrich.Cache.
func (c *Cache) Get(ctx context.Context, key string) (enrich.CacheEntry, bool, error) {
	query := `
		SELECT data
		FROM metadata_cache
		WHERE cache_key = $1 AND expires_at > $2
	`
	var raw []byte
	err := c.db.QueryRow(ctx, query, key, c.now()).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return enrich.CacheEntry{}, false, nil
		}
		return enrich.CacheEntry{}, false, fmt.Errorf("get metadata cache entry: %w", err)
	}

	var entry enrich.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return enrich.CacheEntry{}, false, fmt.Errorf("decode metadata cache entry: %w", err)
	}
	return entry, true, nil
}

// Set implements enrich.Cache.
func (c *Cache) Set(ctx context.Context, key string, entry enrich.CacheEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode metadata cache entry: %w", err)
	}

	query := `
		INSERT INTO metadata_cache (cache_key, data, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (cache_key) DO UPDATE
		SET data = EXCLUDED.data, expires_at = EXCLUDED.expires_at
	`
	if _, err := c.db.Exec(ctx, query, key, string(raw), c.now().Add(c.ttl)); err != nil {
		return fmt.Errorf("set metadata cache entry: %w", err)
	}
	return nil
}

// Cleanup implements enrich.Cache.
func (c *Cache) Cleanup(ctx context.Context) (int64, error) {
	tag, err := c.db.Exec(ctx, `DELETE FROM metadata_cache WHERE expires_at <= $1`, c.now())
	if err != nil {
		return 0, fmt.Errorf("cleanup metadata cache: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Ping checks the database connection.
func (c *Cache) Ping(ctx context.Context) error {
	return c.db.Ping(ctx)
}

// Close closes the pool.
func (c *Cache) Close() {
	c.db.Close()
}
