package cache

import "fmt"

// Provider response cache tables. All tables share the same layout keyed by "cache_key".
const (
	GoogleBooksTable = "googlebooks_cache"
	OpenLibraryTable = "openlibrary_cache"
)

const tableSchemaTemplate = `
CREATE TABLE IF NOT EXISTS %[1]s (
	cache_key TEXT PRIMARY KEY NOT NULL,
	data TEXT NOT NULL,
	ttl_seconds INTEGER NOT NULL DEFAULT 0,
	cached_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_%[1]s_cached_at ON %[1]s(cached_at);
`

// ValidCacheTableNames is the whitelist of allowed cache table names
// Used to prevent SQL injection when interpolating table names
var ValidCacheTableNames = map[string]bool{
	GoogleBooksTable: true,
	OpenLibraryTable: true,
}

// SourceTables maps the source names accepted on the command line to their tables.
var SourceTables = map[string]string{
	"googlebooks": GoogleBooksTable,
	"openlibrary": OpenLibraryTable,
}

// TableSchema returns the CREATE statements for a whitelisted table.
func TableSchema(tableName string) (string, error) {
	if err := validateTableName(tableName); err != nil {
		return "", err
	}
	return fmt.Sprintf(tableSchemaTemplate, tableName), nil
}
