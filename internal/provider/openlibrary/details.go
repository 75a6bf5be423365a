package openlibrary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/lepinkainen/shelfnotes/internal/book"
	"github.com/lepinkainen/shelfnotes/internal/cache"
	"github.com/lepinkainen/shelfnotes/internal/content"
	"github.com/lepinkainen/shelfnotes/internal/upstream"
)

// Details fetches a work (VariantWork) or an edition (VariantEdition) and
// resolves its authors. Every failure maps to book.ErrNotFound; individual
// author failures resolve to book.UnknownAuthor instead.
func (c *Client) Details(ctx context.Context, id string, variant book.Variant) (*book.Book, error) {
	id = strings.TrimSpace(id)
	if id == "" || strings.Contains(id, "/") {
		return nil, fmt.Errorf("open library record %q: %w", id, book.ErrNotFound)
	}

	collection := "works"
	if variant == book.VariantEdition {
		collection = "books"
	}

	rec, err := c.fetchRecord(ctx, collection, id)
	if err != nil {
		if !errors.Is(err, book.ErrNotFound) {
			slog.Warn("Open Library details failed", "id", id, "collection", collection, "error", err)
		}
		return nil, fmt.Errorf("open library %s %q: %w", collection, id, book.ErrNotFound)
	}
	if rec.Title == "" {
		slog.Warn("Open Library record has no title", "id", id, "collection", collection)
		return nil, fmt.Errorf("open library %s %q: %w", collection, id, book.ErrNotFound)
	}

	b := book.Book{
		Source:        book.SourceOpenLibrary,
		ID:            id,
		Title:         rec.Title,
		Subtitle:      rec.Subtitle,
		Authors:       c.resolveAuthors(ctx, rec.Authors),
		Description:   content.NormalizeDescription(string(rec.Description)),
		Categories:    rec.Subjects,
		PublishedDate: rec.FirstPublishDate,
	}
	for _, cover := range rec.Covers {
		if cover > 0 {
			b.ThumbnailURL = c.coverURL(cover)
			break
		}
	}

	if variant == book.VariantEdition {
		b.Edition = &book.Edition{
			ISBN10:         rec.ISBN10,
			ISBN13:         rec.ISBN13,
			Publishers:     rec.Publishers,
			PhysicalFormat: rec.PhysicalFormat,
			PublishDate:    rec.PublishDate,
			NumberOfPages:  rec.NumberOfPages,
		}
		b.PublishedDate = rec.PublishDate
		if rec.NumberOfPages > 0 {
			pages := rec.NumberOfPages
			b.PageCount = &pages
		}
		if len(rec.Works) > 0 {
			b.WorkID = lastSegment(rec.Works[0].Key)
		}
	} else {
		b.WorkID = id
	}

	b.Normalize()
	return &b, nil
}

func (c *Client) fetchRecord(ctx context.Context, collection, id string) (*record, error) {
	result, _, err := cache.GetOrFetchWithTTL(c.cache, cache.OpenLibraryTable, collection+":"+id,
		func() (cachedRecord, error) {
			var rec record
			err := c.http.GetJSON(ctx, c.endpoint("/"+collection+"/"+url.PathEscape(id)+".json", nil), &rec)
			if upstream.IsStatus(err, http.StatusNotFound) {
				return cachedRecord{NotFound: true}, nil
			}
			if err != nil {
				return cachedRecord{}, err
			}
			return cachedRecord{Record: &rec}, nil
		},
		cache.SelectNegativeCacheTTL(func(r cachedRecord) bool { return r.NotFound }),
	)
	if err != nil {
		return nil, err
	}
	if result.NotFound || result.Record == nil {
		return nil, book.ErrNotFound
	}
	return result.Record, nil
}

// resolveAuthors looks up every author reference concurrently. Order follows refs.
func (c *Client) resolveAuthors(ctx context.Context, refs []authorRef) []string {
	if len(refs) == 0 {
		return nil
	}

	names := make([]string, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.authorConcurrency)

	for i, ref := range refs {
		g.Go(func() error {
			names[i] = c.authorName(gctx, ref.key())
			return nil
		})
	}
	_ = g.Wait()

	return names
}

func (c *Client) authorName(ctx context.Context, key string) string {
	if key == "" {
		return book.UnknownAuthor
	}

	a, _, err := cache.GetOrFetch(c.cache, cache.OpenLibraryTable, "authors:"+key, func() (author, error) {
		var a author
		err := c.http.GetJSON(ctx, c.endpoint("/authors/"+url.PathEscape(key)+".json", nil), &a)
		return a, err
	})
	if err != nil {
		slog.Debug("Open Library author lookup failed", "author", key, "error", err)
		return book.UnknownAuthor
	}

	switch {
	case a.Name != "":
		return a.Name
	case a.PersonalName != "":
		return a.PersonalName
	default:
		return book.UnknownAuthor
	}
}
