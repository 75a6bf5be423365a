package openlibrary

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/lepinkainen/shelfnotes/internal/book"
)

// Search returns up to maxResults titled documents matching query.
// Failures are logged and produce an empty list.
func (c *Client) Search(ctx context.Context, query string, maxResults int) []book.Book {
	query = strings.TrimSpace(query)
	if query == "" || maxResults < 1 {
		return []book.Book{}
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(maxResults))

	var resp searchResponse
	if err := c.http.GetJSON(ctx, c.endpoint("/search.json", params), &resp); err != nil {
		slog.Warn("Open Library search failed", "query", query, "error", err)
		return []book.Book{}
	}

	books := make([]book.Book, 0, len(resp.Docs))
	for _, doc := range resp.Docs {
		if b, ok := c.docToBook(doc); ok {
			books = append(books, b)
		}
		if len(books) == maxResults {
			break
		}
	}
	slog.Debug("Open Library search", "query", query, "results", len(books))
	return books
}

func (c *Client) docToBook(doc searchDoc) (book.Book, bool) {
	b := book.Book{
		Source:       book.SourceOpenLibrary,
		ID:           lastSegment(doc.Key),
		Title:        doc.Title,
		Authors:      doc.AuthorName,
		PageCount:    doc.NumberOfPagesMedian,
		Categories:   doc.Subject,
		ThumbnailURL: c.coverURL(doc.CoverI),
	}
	if strings.HasPrefix(doc.Key, "/works/") {
		b.WorkID = b.ID
	}
	if doc.FirstPublishYear != nil {
		b.PublishedDate = strconv.Itoa(*doc.FirstPublishYear)
	}
	if !b.Normalize() {
		return book.Book{}, false
	}
	return b, true
}
