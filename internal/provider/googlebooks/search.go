package googlebooks

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/lepinkainen/shelfnotes/internal/book"
	"github.com/lepinkainen/shelfnotes/internal/cache"
	"github.com/lepinkainen/shelfnotes/internal/upstream"
)

// Search returns up to maxResults titled volumes matching query.
// Failures are logged and produce an empty list.
func (c *Client) Search(ctx context.Context, query string, maxResults int) []book.Book {
	query = strings.TrimSpace(query)
	if query == "" || maxResults < 1 {
		return []book.Book{}
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("maxResults", strconv.Itoa(min(maxResults, maxPageSize)))

	var resp volumesResponse
	if err := c.http.GetJSON(ctx, c.endpoint("/volumes", params), &resp); err != nil {
		slog.Warn("Google Books search failed", "query", query, "error", err)
		return []book.Book{}
	}

	books := toBooks(resp.Items)
	slog.Debug("Google Books search", "query", query, "results", len(books))
	return books
}

// Details fetches a single volume. Every failure maps to book.ErrNotFound.
// The variant is ignored: Google Books has a single volume resource.
func (c *Client) Details(ctx context.Context, id string, _ book.Variant) (*book.Book, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("google books volume: %w", book.ErrNotFound)
	}

	result, fromCache, err := cache.GetOrFetchWithTTL(c.cache, cache.GoogleBooksTable, "volume:"+id,
		func() (cachedVolume, error) {
			return c.fetchVolume(ctx, id)
		},
		cache.SelectNegativeCacheTTL(func(v cachedVolume) bool { return v.NotFound }),
	)
	if err != nil {
		slog.Warn("Google Books details failed", "id", id, "error", err)
		return nil, fmt.Errorf("google books volume %q: %w", id, book.ErrNotFound)
	}
	if result.NotFound || result.Volume == nil {
		return nil, fmt.Errorf("google books volume %q: %w", id, book.ErrNotFound)
	}

	v := *result.Volume
	if v.ID == "" {
		v.ID = id
	}
	b, ok := v.toBook()
	if !ok {
		slog.Warn("Google Books volume has no title", "id", id)
		return nil, fmt.Errorf("google books volume %q: %w", id, book.ErrNotFound)
	}
	slog.Debug("Google Books details", "id", id, "title", b.Title, "from_cache", fromCache)
	return &b, nil
}

func (c *Client) fetchVolume(ctx context.Context, id string) (cachedVolume, error) {
	var v volume
	err := c.http.GetJSON(ctx, c.endpoint("/volumes/"+url.PathEscape(id), nil), &v)
	if err != nil {
		if upstream.IsStatus(err, http.StatusNotFound) {
			return cachedVolume{NotFound: true}, nil
		}
		return cachedVolume{}, err
	}
	return cachedVolume{Volume: &v}, nil
}
