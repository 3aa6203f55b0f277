package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/franz/vaultify/internal/meta"
	"github.com/franz/vaultify/internal/util"
)

const (
	currentSchemaVersion = 2

	// DefaultCacheTTL is how long a cached search stays valid
	DefaultCacheTTL = 24 * time.Hour
)

const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
  version INTEGER PRIMARY KEY,
  applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- One row per (provider, folded query); results is a JSON array of candidates
CREATE TABLE IF NOT EXISTS catalog_cache (
  provider TEXT NOT NULL,
  query TEXT NOT NULL,
  results TEXT NOT NULL,
  result_count INTEGER NOT NULL DEFAULT 0,
  cached_at INTEGER NOT NULL,
  hit_count INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (provider, query)
);
`

// Schema v2 - expiry scans
const schemaV2 = `
CREATE INDEX IF NOT EXISTS idx_catalog_cache_cached_at ON catalog_cache(cached_at);
`

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Cache stores provider search results in SQLite
type Cache struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// OpenCache opens or creates the cache database at path
func OpenCache(path string, ttl time.Duration) (*Cache, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_timeout=5000&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	// SQLite works best with a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	c := &Cache{db: db, ttl: ttl, now: time.Now}

	if err := c.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache migration failed: %w", err)
	}

	return c, nil
}

// Close closes the database connection
func (c *Cache) Close() error {
	return c.db.Close()
}

// TTL returns the validity period of cached entries
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// SQLiteVersion returns the SQLite version string
func SQLiteVersion() string {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return ""
	}
	defer db.Close()

	var version string
	if err := db.QueryRow("SELECT sqlite_version()").Scan(&version); err != nil {
		return ""
	}
	return version
}

// CheckIntegrity runs PRAGMA integrity_check on the cache database
func (c *Cache) CheckIntegrity() error {
	var result string
	if err := c.db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check query failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}

// migrate applies schema migrations
func (c *Cache) migrate() error {
	version, err := c.schemaVersion()
	if err != nil {
		return err
	}
	if version >= currentSchemaVersion {
		return nil
	}

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if version < 1 {
		if _, err := tx.Exec(schemaV1); err != nil {
			return fmt.Errorf("failed to apply schema v1: %w", err)
		}
		if err := setSchemaVersion(tx, 1); err != nil {
			return err
		}
	}

	if version < 2 {
		if _, err := tx.Exec(schemaV2); err != nil {
			return fmt.Errorf("failed to apply schema v2: %w", err)
		}
		if err := setSchemaVersion(tx, 2); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}
	return nil
}

func (c *Cache) schemaVersion() (int, error) {
	var exists int
	err := c.db.QueryRow(`
		SELECT COUNT(*) FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&exists)
	if err != nil {
		return 0, err
	}
	if exists == 0 {
		return 0, nil
	}

	var version int
	err = c.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	return version, err
}

func setSchemaVersion(tx *sql.Tx, version int) error {
	if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
		return fmt.Errorf("failed to set schema version: %w", err)
	}
	return nil
}

// get returns cached results. ok is false on a miss or an expired entry.
func (c *Cache) get(ctx context.Context, provider, query string) (results []meta.Candidate, ok bool, err error) {
	var raw string
	var cachedAt int64
	err = c.db.QueryRowContext(ctx, `
		SELECT results, cached_at FROM catalog_cache
		WHERE provider = ? AND query = ?
	`, provider, query).Scan(&raw, &cachedAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query cache: %w", err)
	}

	if c.now().Sub(time.Unix(cachedAt, 0)) > c.ttl {
		return nil, false, nil
	}

	if err := json.Unmarshal([]byte(raw), &results); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached results: %w", err)
	}

	if _, err := c.db.ExecContext(ctx, `
		UPDATE catalog_cache SET hit_count = hit_count + 1
		WHERE provider = ? AND query = ?
	`, provider, query); err != nil {
		util.DebugLog("Failed to increment cache hit count: %v", err)
	}

	return results, true, nil
}

// put stores results, including empty ones
func (c *Cache) put(ctx context.Context, provider, query string, results []meta.Candidate) error {
	if results == nil {
		results = []meta.Candidate{}
	}
	raw, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO catalog_cache
		(provider, query, results, result_count, cached_at, hit_count)
		VALUES (?, ?, ?, ?, ?, COALESCE((SELECT hit_count FROM catalog_cache WHERE provider = ? AND query = ?), 0))
	`, provider, query, string(raw), len(results), c.now().Unix(), provider, query)
	if err != nil {
		return fmt.Errorf("failed to insert cache entry: %w", err)
	}
	return nil
}

// CacheStats summarises cache contents
type CacheStats struct {
	Entries   int
	Empty     int
	TotalHits int64
}

// Stats returns cache statistics
func (c *Cache) Stats() (CacheStats, error) {
	var s CacheStats
	err := c.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN result_count = 0 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(hit_count), 0)
		FROM catalog_cache
	`).Scan(&s.Entries, &s.Empty, &s.TotalHits)
	return s, err
}

// Purge removes entries older than the given age and reports how many went
func (c *Cache) Purge(olderThan time.Duration) (int, error) {
	cutoff := c.now().Add(-olderThan).Unix()
	result, err := c.db.Exec("DELETE FROM catalog_cache WHERE cached_at < ?", cutoff)
	if err != nil {
		return 0, err
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}

// Clear removes all cached entries
func (c *Cache) Clear() error {
	_, err := c.db.Exec("DELETE FROM catalog_cache")
	return err
}

// CachedProvider wraps a provider with the search cache
type CachedProvider struct {
	inner Provider
	cache *Cache
}

// WithCache wraps p so repeated searches are answered from c
func WithCache(p Provider, c *Cache) Provider {
	if c == nil {
		return p
	}
	return &CachedProvider{inner: p, cache: c}
}

// Name returns the wrapped provider's name
func (p *CachedProvider) Name() string {
	return p.inner.Name()
}

// Search answers from the cache when possible. Cache failures fall through
// to the wrapped provider; provider errors are never cached.
func (p *CachedProvider) Search(ctx context.Context, query string, limit int) ([]meta.Candidate, error) {
	key := fmt.Sprintf("%d:%s", limit, meta.Fold(query))

	results, ok, err := p.cache.get(ctx, p.inner.Name(), key)
	if err != nil {
		util.DebugLog("Catalog cache read failed: %v", err)
	}
	if ok {
		util.DebugLog("Catalog cache hit: %s %q", p.inner.Name(), query)
		return results, nil
	}

	results, err = p.inner.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	if err := p.cache.put(ctx, p.inner.Name(), key, results); err != nil {
		util.WarnLog("Failed to cache catalog result: %v", err)
	}
	return results, nil
}
