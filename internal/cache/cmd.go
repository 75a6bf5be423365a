package cache

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// InvalidateCacheCmd represents the cache invalidate subcommand
type InvalidateCacheCmd struct {
	Source string `arg:"" help:"Cache source to invalidate: googlebooks, openlibrary" required:""`
}

func (i *InvalidateCacheCmd) Run() error {
	cacheDB := viper.GetString("cache.dbfile")

	slog.Info("Invalidating cache", "source", i.Source, "database", cacheDB)

	tableName, err := sourceTable(i.Source)
	if err != nil {
		return err
	}

	cacheInstance, err := openFromConfig()
	if err != nil {
		return err
	}
	defer closeCache(cacheInstance)

	rowsDeleted, err := cacheInstance.InvalidateSource(tableName)
	if err != nil {
		return fmt.Errorf("failed to invalidate cache: %w", err)
	}

	slog.Info("Cache invalidated", "source", i.Source, "rows_deleted", rowsDeleted)
	return nil
}

// PruneCacheCmd represents the cache prune subcommand
type PruneCacheCmd struct {
	Source string `arg:"" optional:"" help:"Cache source to prune (default: all): googlebooks, openlibrary"`
}

func (p *PruneCacheCmd) Run() error {
	sources := sourceNames()
	if p.Source != "" {
		if _, err := sourceTable(p.Source); err != nil {
			return err
		}
		sources = []string{p.Source}
	}

	cacheInstance, err := openFromConfig()
	if err != nil {
		return err
	}
	defer closeCache(cacheInstance)

	var total int64
	for _, source := range sources {
		removed, err := cacheInstance.ClearExpired(SourceTables[source])
		if err != nil {
			return fmt.Errorf("failed to prune %s cache: %w", source, err)
		}
		total += removed
	}

	slog.Info("Cache pruned", "sources", strings.Join(sources, ", "), "rows_deleted", total)
	return nil
}

func sourceNames() []string {
	sources := make([]string, 0, len(SourceTables))
	for name := range SourceTables {
		sources = append(sources, name)
	}
	sort.Strings(sources)
	return sources
}

func sourceTable(source string) (string, error) {
	tableName, ok := SourceTables[source]
	if !ok {
		return "", fmt.Errorf("invalid cache source '%s'; valid sources are: %s", source, strings.Join(sourceNames(), ", "))
	}
	return tableName, nil
}

func openFromConfig() (*CacheDB, error) {
	c, err := Open(viper.GetString("cache.dbfile"), viper.GetDuration("cache.ttl"))
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	return c, nil
}

func closeCache(c *CacheDB) {
	if err := c.Close(); err != nil {
		slog.Warn("Failed to close cache database", "error", err)
	}
}
