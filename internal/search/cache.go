package search

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"
)

// Cache stores scraper responses in SQLite until they expire.
type Cache struct {
	db  *sql.DB
	now func() time.Time
}

// NewCache creates a cache over the scrape_cache table.
func NewCache(db *sql.DB) *Cache {
	return &Cache{db: db, now: time.Now}
}

// Get returns the cached value for key. Returns nil, false if not found or expired.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	var value string
	var expiresAt time.Time

	err := c.db.QueryRowContext(ctx,
		"SELECT value, expires_at FROM scrape_cache WHERE key = ?", key,
	).Scan(&value, &expiresAt)
	if err != nil || c.now().After(expiresAt) {
		return nil, false
	}
	return []byte(value), true
}

// Set stores value under key for ttl.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO scrape_cache (key, value, expires_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, string(value), c.now().Add(ttl),
	)
	if err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Prune removes expired entries and returns how many were removed.
func (c *Cache) Prune(ctx context.Context) (int64, error) {
	result, err := c.db.ExecContext(ctx, "DELETE FROM scrape_cache WHERE expires_at < ?", c.now())
	if err != nil {
		return 0, fmt.Errorf("cache prune: %w", err)
	}
	return result.RowsAffected()
}

// Clear removes every entry.
func (c *Cache) Clear(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, "DELETE FROM scrape_cache"); err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	return nil
}

// Cached answers repeated scraper calls from a Cache. Errors are never
// cached; a missing video is, so repeated lookups of a bad id stay offline.
type Cached struct {
	next  Scraper
	cache *Cache
	ttl   time.Duration
	log   *slog.Logger
}

// NewCached wraps s. A zero or negative ttl disables caching; config.Load
// turns an unset cache_ttl into its default before it gets here.
func NewCached(s Scraper, cache *Cache, ttl time.Duration, logger *slog.Logger) *Cached {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cached{next: s, cache: cache, ttl: ttl, log: logger.With("component", "scrape_cache")}
}

func (c *Cached) Search(ctx context.Context, query string, page int) ([]map[string]any, error) {
	key := "search:" + strconv.Itoa(page) + ":" + query
	var items []map[string]any
	if c.get(ctx, key, &items) {
		return items, nil
	}
	items, err := c.next.Search(ctx, query, page)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, items)
	return items, nil
}

func (c *Cached) FetchByID(ctx context.Context, bv string) (map[string]any, error) {
	key := "video:" + bv
	var m map[string]any
	if c.get(ctx, key, &m) {
		return m, nil
	}
	m, err := c.next.FetchByID(ctx, bv)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, m)
	return m, nil
}

// ListUserVideos is not cached: crawls exist to pick up new uploads.
func (c *Cached) ListUserVideos(ctx context.Context, userID string, page int) ([]map[string]any, error) {
	return c.next.ListUserVideos(ctx, userID, page)
}

func (c *Cached) get(ctx context.Context, key string, v any) bool {
	if c.cache == nil || c.ttl <= 0 {
		return false
	}
	data, ok := c.cache.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		c.log.Debug("discarding unreadable cache entry", "key", key, "error", err)
		return false
	}
	c.log.Debug("cache hit", "key", key)
	return true
}

func (c *Cached) set(ctx context.Context, key string, v any) {
	if c.cache == nil || c.ttl <= 0 {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
		c.log.Warn("failed to cache scraper response", "key", key, "error", err)
	}
}
