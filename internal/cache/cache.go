// Package cache is a disposable SQLite cache for metadata provider responses.
// Losing the database only costs extra upstream requests.
package cache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lepinkainen/shelfnotes/internal/metrics"
)

const (
	// DefaultCacheTTL is the default time-to-live for cached entries (30 days)
	DefaultCacheTTL = 720 * time.Hour
	// NegativeCacheTTL is the TTL for "not found" responses (7 days)
	NegativeCacheTTL = 168 * time.Hour
)

// FetchFunc represents a function that fetches data from an external source
type FetchFunc[T any] func() (T, error)

// CacheDB manages the SQLite database connection for caching
type CacheDB struct {
	db  *sql.DB
	mu  sync.RWMutex
	ttl time.Duration
}

// Open opens (creating if needed) the cache database at dbPath and creates
// every known cache table. A non-positive ttl selects DefaultCacheTTL.
func Open(dbPath string, ttl time.Duration) (*CacheDB, error) {
	c, err := NewCacheDB(dbPath)
	if err != nil {
		return nil, err
	}
	if ttl > 0 {
		c.ttl = ttl
	}

	tables := make([]string, 0, len(ValidCacheTableNames))
	for name := range ValidCacheTableNames {
		tables = append(tables, name)
	}
	sort.Strings(tables)

	for _, name := range tables {
		schema, err := TableSchema(name)
		if err != nil {
			return nil, errors.Join(err, c.Close())
		}
		if err := c.CreateTable(schema); err != nil {
			return nil, errors.Join(fmt.Errorf("failed to create cache table %s: %w", name, err), c.Close())
		}
	}
	return c, nil
}

// NewCacheDB creates a new CacheDB instance and opens the database connection
func NewCacheDB(dbPath string) (*CacheDB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	if err := db.Ping(); err != nil {
		closeErr := db.Close()
		return nil, errors.Join(fmt.Errorf("failed to connect to cache database: %w", err), closeErr)
	}

	return &CacheDB{
		db:  db,
		ttl: DefaultCacheTTL,
	}, nil
}

// CreateTable creates a table using the provided schema
func (c *CacheDB) CreateTable(schema string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// Close closes the database connection
func (c *CacheDB) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		err := c.db.Close()
		c.db = nil
		return err
	}
	return nil
}

// InvalidateSource deletes all entries from the specified cache table
// and returns the number of rows deleted.
func (c *CacheDB) InvalidateSource(tableName string) (int64, error) {
	if err := validateTableName(tableName); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	result, err := c.db.Exec(fmt.Sprintf("DELETE FROM %s", tableName))
	if err != nil {
		return 0, fmt.Errorf("failed to delete cache entries: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	slog.Debug("Cache table cleared", "table", tableName, "rows_deleted", rowsAffected)
	return rowsAffected, nil
}

// validateTableName checks if the table name is in the whitelist
// to prevent SQL injection attacks
func validateTableName(tableName string) error {
	if !ValidCacheTableNames[tableName] {
		return fmt.Errorf("invalid cache table name: %s", tableName)
	}
	return nil
}

// GetOrFetch retrieves data from cache or fetches it using the provided function.
// A nil db disables caching and always calls fetchFunc.
// The boolean result reports whether the value came from the cache.
func GetOrFetch[T any](db *CacheDB, tableName, cacheKey string, fetchFunc FetchFunc[T]) (T, bool, error) {
	return GetOrFetchWithTTL(db, tableName, cacheKey, fetchFunc, nil)
}

// GetOrFetchWithTTL is GetOrFetch with a per-value TTL. ttlSelector is called on
// the fetched value; a zero duration means "do not cache". A nil selector uses
// the database default TTL for every value.
func GetOrFetchWithTTL[T any](db *CacheDB, tableName, cacheKey string, fetchFunc FetchFunc[T], ttlSelector func(T) time.Duration) (T, bool, error) {
	var zero T

	if db == nil {
		data, err := fetchFunc()
		return data, false, err
	}

	cached, fromCache, err := db.Get(tableName, cacheKey)
	if err != nil {
		slog.Warn("Cache lookup failed, fetching directly", "table", tableName, "key", cacheKey, "error", err)
	}
	if err == nil && fromCache {
		var result T
		if err := json.Unmarshal([]byte(cached), &result); err == nil {
			slog.Debug("Cache hit", "table", tableName, "key", cacheKey)
			metrics.ResponseCacheLookups.WithLabelValues(tableName, "hit").Inc()
			return result, true, nil
		}
		slog.Warn("Failed to unmarshal cached data, will refetch", "table", tableName, "key", cacheKey, "error", err)
	}
	metrics.ResponseCacheLookups.WithLabelValues(tableName, "miss").Inc()

	slog.Debug("Cache miss, fetching data", "table", tableName, "key", cacheKey)
	data, err := fetchFunc()
	if err != nil {
		return zero, false, fmt.Errorf("failed to fetch data: %w", err)
	}

	ttl := db.ttl
	if ttlSelector != nil {
		ttl = ttlSelector(data)
	}
	if ttl <= 0 {
		slog.Debug("Skipping cache store per policy", "table", tableName, "key", cacheKey)
		return data, false, nil
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		slog.Warn("Failed to marshal data for caching", "table", tableName, "key", cacheKey, "error", err)
		return data, false, nil
	}
	// Caching failure shouldn't fail the request
	if err := db.Set(tableName, cacheKey, string(jsonData), ttl); err != nil {
		slog.Warn("Failed to cache data", "table", tableName, "key", cacheKey, "error", err)
	} else {
		slog.Debug("Data cached successfully", "table", tableName, "key", cacheKey, "ttl", ttl)
	}

	return data, false, nil
}

// SelectNegativeCacheTTL returns a TTL selector that caches "not found" results
// for NegativeCacheTTL and everything else for DefaultCacheTTL.
func SelectNegativeCacheTTL[T any](isNotFound func(T) bool) func(T) time.Duration {
	return func(result T) time.Duration {
		if isNotFound(result) {
			return NegativeCacheTTL
		}
		return DefaultCacheTTL
	}
}

// Get retrieves a cached value from the specified table.
// Returns the cached data and whether an unexpired entry was found.
func (c *CacheDB) Get(tableName, key string) (string, bool, error) {
	if err := validateTableName(tableName); err != nil {
		return "", false, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	query := fmt.Sprintf(`
		SELECT data, ttl_seconds, cached_at
		FROM %s
		WHERE cache_key = ?
	`, tableName)

	var data string
	var ttlSeconds int64
	var cachedAt time.Time
	err := c.db.QueryRow(query, key).Scan(&data, &ttlSeconds, &cachedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query cache: %w", err)
	}

	ttl := time.Duration(ttlSeconds) * time.Second
	if ttl <= 0 {
		ttl = c.ttl
	}
	age := time.Now().UTC().Sub(cachedAt)
	if age > ttl {
		slog.Debug("Cache expired", "table", tableName, "key", key, "age", age)
		return "", false, nil
	}

	return data, true, nil
}

// Set stores a value in the cache with the given TTL.
func (c *CacheDB) Set(tableName, key, data string, ttl time.Duration) error {
	if err := validateTableName(tableName); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	query := fmt.Sprintf(`
		INSERT OR REPLACE INTO %s (cache_key, data, ttl_seconds, cached_at)
		VALUES (?, ?, ?, ?)
	`, tableName)

	_, err := c.db.Exec(query, key, data, int64(ttl/time.Second), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}

	return nil
}

// ClearExpired removes entries older than their TTL from the specified table.
func (c *CacheDB) ClearExpired(tableName string) (int64, error) {
	if err := validateTableName(tableName); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	rows, err := c.db.Query(fmt.Sprintf(`SELECT cache_key, ttl_seconds, cached_at FROM %s`, tableName))
	if err != nil {
		return 0, fmt.Errorf("failed to scan cache: %w", err)
	}

	now := time.Now().UTC()
	var expired []string
	for rows.Next() {
		var key string
		var ttlSeconds int64
		var cachedAt time.Time
		if err := rows.Scan(&key, &ttlSeconds, &cachedAt); err != nil {
			return 0, errors.Join(fmt.Errorf("failed to scan cache row: %w", err), rows.Close())
		}
		ttl := time.Duration(ttlSeconds) * time.Second
		if ttl <= 0 {
			ttl = c.ttl
		}
		if now.Sub(cachedAt) > ttl {
			expired = append(expired, key)
		}
	}
	if err := errors.Join(rows.Err(), rows.Close()); err != nil {
		return 0, fmt.Errorf("failed to scan cache: %w", err)
	}

	deleteQuery := fmt.Sprintf(`DELETE FROM %s WHERE cache_key = ?`, tableName)
	for _, key := range expired {
		if _, err := c.db.Exec(deleteQuery, key); err != nil {
			return 0, fmt.Errorf("failed to clear expired cache: %w", err)
		}
	}

	if len(expired) > 0 {
		slog.Info("Cleared expired cache entries", "table", tableName, "count", len(expired))
	}
	return int64(len(expired)), nil
}
