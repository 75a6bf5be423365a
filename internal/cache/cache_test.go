package cache

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/lepinkainen/shelfnotes/internal/testutil"
	"github.com/spf13/viper"
)

type TestData struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func setupTestCache(t *testing.T) *CacheDB {
	t.Helper()

	env := testutil.NewTestEnv(t)
	dbPath := filepath.Join(env.RootDir(), "test_cache.db")

	cache, err := Open(dbPath, time.Hour)
	if err != nil {
		t.Fatalf("Failed to create cache database: %v", err)
	}
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

func setCachedAt(t *testing.T, cache *CacheDB, tableName, key string, at time.Time) {
	t.Helper()

	if _, err := cache.db.Exec("UPDATE "+tableName+" SET cached_at = ? WHERE cache_key = ?", at.UTC(), key); err != nil {
		t.Fatalf("Failed to update cached_at: %v", err)
	}
}

func rowExists(t *testing.T, cache *CacheDB, tableName, key string) bool {
	t.Helper()

	var n int
	if err := cache.db.QueryRow("SELECT COUNT(*) FROM "+tableName+" WHERE cache_key = ?", key).Scan(&n); err != nil {
		t.Fatalf("Failed to count rows: %v", err)
	}
	return n > 0
}

func TestOpenCreatesTables(t *testing.T) {
	cache := setupTestCache(t)

	if cache.ttl != time.Hour {
		t.Errorf("ttl = %v, want 1h", cache.ttl)
	}
	for table := range ValidCacheTableNames {
		if err := cache.Set(table, "k", `{}`, time.Minute); err != nil {
			t.Errorf("Set on %s failed: %v", table, err)
		}
	}
}

func TestGetOrFetch_CacheHit(t *testing.T) {
	cache := setupTestCache(t)

	if err := cache.Set(GoogleBooksTable, "vol-1", `{"id":1,"name":"Test"}`, time.Hour); err != nil {
		t.Fatalf("Failed to pre-populate cache: %v", err)
	}

	fetchCalled := false
	result, fromCache, err := GetOrFetch(cache, GoogleBooksTable, "vol-1", func() (TestData, error) {
		fetchCalled = true
		return TestData{}, nil
	})

	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !fromCache {
		t.Error("Expected fromCache to be true")
	}
	if fetchCalled {
		t.Error("Expected fetch function not to be called")
	}
	if result.ID != 1 || result.Name != "Test" {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestGetOrFetch_CacheMiss(t *testing.T) {
	cache := setupTestCache(t)

	fetchCalled := 0
	fetchFunc := func() (TestData, error) {
		fetchCalled++
		return TestData{ID: 2, Name: "Fetched"}, nil
	}

	result, fromCache, err := GetOrFetch(cache, OpenLibraryTable, "OL1W", fetchFunc)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if fromCache {
		t.Error("Expected fromCache to be false on first call")
	}
	if result.Name != "Fetched" {
		t.Errorf("unexpected result %+v", result)
	}

	result, fromCache, err = GetOrFetch(cache, OpenLibraryTable, "OL1W", fetchFunc)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !fromCache {
		t.Error("Expected second call to be served from cache")
	}
	if fetchCalled != 1 {
		t.Errorf("Expected fetch to be called once, got %d", fetchCalled)
	}
	if result.ID != 2 {
		t.Errorf("unexpected cached result %+v", result)
	}
}

func TestGetOrFetch_NilDB(t *testing.T) {
	calls := 0
	for range 2 {
		_, fromCache, err := GetOrFetch[TestData](nil, GoogleBooksTable, "k", func() (TestData, error) {
			calls++
			return TestData{ID: 1}, nil
		})
		if err != nil || fromCache {
			t.Fatalf("unexpected result fromCache=%v err=%v", fromCache, err)
		}
	}
	if calls != 2 {
		t.Errorf("Expected every call to fetch without a database, got %d", calls)
	}
}

func TestGetOrFetch_RespectsTTLExpiration(t *testing.T) {
	cache := setupTestCache(t)

	if err := cache.Set(GoogleBooksTable, "old", `{"id":1,"name":"Stale"}`, time.Hour); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	setCachedAt(t, cache, GoogleBooksTable, "old", time.Now().Add(-2*time.Hour))

	result, fromCache, err := GetOrFetch(cache, GoogleBooksTable, "old", func() (TestData, error) {
		return TestData{ID: 1, Name: "Fresh"}, nil
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if fromCache {
		t.Error("Expected expired entry to be refetched")
	}
	if result.Name != "Fresh" {
		t.Errorf("Expected fresh data, got %+v", result)
	}
}

func TestGetOrFetch_FetchError(t *testing.T) {
	cache := setupTestCache(t)
	boom := errors.New("boom")

	_, _, err := GetOrFetch(cache, GoogleBooksTable, "k", func() (TestData, error) {
		return TestData{}, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected wrapped fetch error, got %v", err)
	}
	if rowExists(t, cache, GoogleBooksTable, "k") {
		t.Error("Failed fetch must not be cached")
	}
}

func TestGetOrFetchWithTTL_SkipCaching(t *testing.T) {
	cache := setupTestCache(t)

	_, _, err := GetOrFetchWithTTL(cache, GoogleBooksTable, "skip", func() (TestData, error) {
		return TestData{ID: 0}, nil
	}, func(TestData) time.Duration { return 0 })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rowExists(t, cache, GoogleBooksTable, "skip") {
		t.Error("Zero TTL must skip caching")
	}
}

func TestGetOrFetchWithTTL_NegativeCaching(t *testing.T) {
	cache := setupTestCache(t)

	type lookup struct {
		NotFound bool `json:"notFound"`
	}
	selector := SelectNegativeCacheTTL(func(l lookup) bool { return l.NotFound })

	if _, _, err := GetOrFetchWithTTL(cache, OpenLibraryTable, "missing", func() (lookup, error) {
		return lookup{NotFound: true}, nil
	}, selector); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Older than the database default but inside the negative TTL.
	setCachedAt(t, cache, OpenLibraryTable, "missing", time.Now().Add(-48*time.Hour))

	result, fromCache, err := GetOrFetchWithTTL(cache, OpenLibraryTable, "missing", func() (lookup, error) {
		t.Fatal("fetch should not be called")
		return lookup{}, nil
	}, selector)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fromCache || !result.NotFound {
		t.Errorf("Expected cached not-found entry, got fromCache=%v result=%+v", fromCache, result)
	}

	setCachedAt(t, cache, OpenLibraryTable, "missing", time.Now().Add(-NegativeCacheTTL-time.Hour))
	if _, found, _ := cache.Get(OpenLibraryTable, "missing"); found {
		t.Error("Expected negative entry to expire after NegativeCacheTTL")
	}
}

func TestSelectNegativeCacheTTL(t *testing.T) {
	selector := SelectNegativeCacheTTL(func(v *TestData) bool { return v == nil })

	if got := selector(nil); got != NegativeCacheTTL {
		t.Errorf("nil result TTL = %v, want %v", got, NegativeCacheTTL)
	}
	if got := selector(&TestData{}); got != DefaultCacheTTL {
		t.Errorf("found result TTL = %v, want %v", got, DefaultCacheTTL)
	}
}

func TestCacheDB_GetSetInvalidTable(t *testing.T) {
	cache := setupTestCache(t)

	if err := cache.Set("users; DROP TABLE x", "k", "v", time.Hour); err == nil {
		t.Error("Expected error for invalid table name")
	}
	if _, _, err := cache.Get("tmdb_cache", "k"); err == nil {
		t.Error("Expected error for table outside whitelist")
	}
	if _, err := TableSchema("nope"); err == nil {
		t.Error("Expected TableSchema to reject unknown table")
	}
}

func TestCacheDB_ClearExpired(t *testing.T) {
	cache := setupTestCache(t)

	for _, key := range []string{"a", "b", "c"} {
		if err := cache.Set(GoogleBooksTable, key, `{}`, time.Hour); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}
	setCachedAt(t, cache, GoogleBooksTable, "a", time.Now().Add(-3*time.Hour))
	setCachedAt(t, cache, GoogleBooksTable, "b", time.Now().Add(-3*time.Hour))

	removed, err := cache.ClearExpired(GoogleBooksTable)
	if err != nil {
		t.Fatalf("ClearExpired failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	if !rowExists(t, cache, GoogleBooksTable, "c") {
		t.Error("Fresh entry should remain")
	}
}

func TestCacheDB_InvalidateSource(t *testing.T) {
	cache := setupTestCache(t)

	for _, key := range []string{"a", "b"} {
		if err := cache.Set(OpenLibraryTable, key, `{}`, time.Hour); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}
	if err := cache.Set(GoogleBooksTable, "keep", `{}`, time.Hour); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	rows, err := cache.InvalidateSource(OpenLibraryTable)
	if err != nil {
		t.Fatalf("InvalidateSource failed: %v", err)
	}
	if rows != 2 {
		t.Errorf("rows deleted = %d, want 2", rows)
	}
	if !rowExists(t, cache, GoogleBooksTable, "keep") {
		t.Error("Other tables must be untouched")
	}

	if _, err := cache.InvalidateSource("bogus"); err == nil {
		t.Error("Expected error for invalid table")
	}
}

func TestInvalidateCacheCmd(t *testing.T) {
	testutil.ResetViper(t)
	env := testutil.NewTestEnv(t)
	dbPath := env.Path("cmd_cache.db")
	viper.Set("cache.dbfile", dbPath)

	cache, err := Open(dbPath, 0)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := cache.Set(GoogleBooksTable, "k", `{}`, time.Hour); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := cache.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := (&InvalidateCacheCmd{Source: "googlebooks"}).Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	cache, err = Open(dbPath, 0)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer func() { _ = cache.Close() }()
	if rowExists(t, cache, GoogleBooksTable, "k") {
		t.Error("Expected entry to be invalidated")
	}

	if err := (&InvalidateCacheCmd{Source: "tmdb"}).Run(); err == nil {
		t.Error("Expected error for unknown source")
	}
}

func TestPruneCacheCmd(t *testing.T) {
	tests := []struct {
		name       string
		source     string
		wantErr    bool
		wantGoogle bool
		wantOpen   bool
	}{
		{name: "all sources", wantGoogle: false, wantOpen: false},
		{name: "one source", source: "openlibrary", wantGoogle: true, wantOpen: false},
		{name: "unknown source", source: "tmdb", wantErr: true, wantGoogle: true, wantOpen: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testutil.ResetViper(t)
			env := testutil.NewTestEnv(t)
			dbPath := env.Path("prune_cache.db")
			viper.Set("cache.dbfile", dbPath)

			cache, err := Open(dbPath, time.Hour)
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			for _, table := range []string{GoogleBooksTable, OpenLibraryTable} {
				for _, key := range []string{"stale", "fresh"} {
					if err := cache.Set(table, key, `{}`, time.Hour); err != nil {
						t.Fatalf("Set failed: %v", err)
					}
				}
				setCachedAt(t, cache, table, "stale", time.Now().Add(-2*time.Hour))
			}
			if err := cache.Close(); err != nil {
				t.Fatalf("Close failed: %v", err)
			}

			err = (&PruneCacheCmd{Source: tt.source}).Run()
			if tt.wantErr != (err != nil) {
				t.Fatalf("Run error = %v, wantErr %v", err, tt.wantErr)
			}

			cache, err = Open(dbPath, time.Hour)
			if err != nil {
				t.Fatalf("reopen failed: %v", err)
			}
			defer func() { _ = cache.Close() }()

			if got := rowExists(t, cache, GoogleBooksTable, "stale"); got != tt.wantGoogle {
				t.Errorf("googlebooks stale entry present = %v, want %v", got, tt.wantGoogle)
			}
			if got := rowExists(t, cache, OpenLibraryTable, "stale"); got != tt.wantOpen {
				t.Errorf("openlibrary stale entry present = %v, want %v", got, tt.wantOpen)
			}
			for _, table := range []string{GoogleBooksTable, OpenLibraryTable} {
				if !rowExists(t, cache, table, "fresh") {
					t.Errorf("fresh entry in %s should remain", table)
				}
			}
		})
	}
}
