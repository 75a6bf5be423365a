// Package aggregate merges search results across metadata providers and
// paginates category browsing.
package aggregate

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/lepinkainen/shelfnotes/internal/book"
)

const (
	// DefaultPageLimit is used when a browse request names no limit.
	DefaultPageLimit = 12
	// MaxPageLimit is the largest page a browse request may ask for.
	MaxPageLimit = 40
	// MaxPage bounds the page number so the offset stays small; Google Books
	// stops paging long before it.
	MaxPage = 1000

	// MaxSearchLimit is the largest combined search limit; each provider is
	// asked for at most MaxSearchLimit / len(providers) results.
	MaxSearchLimit = 80
)

// Browser lists books for a subject query with offset pagination.
type Browser interface {
	BrowseSubject(ctx context.Context, subject string, offset, limit int) ([]book.Book, int, error)
}

// Result is a browse hit annotated with whether a summary already exists.
type Result struct {
	book.Book
	HasSummary bool `json:"hasSummary"`
}

// Page is one page of category results.
type Page struct {
	Results    []Result `json:"results"`
	HasMore    bool     `json:"hasMore"`
	TotalCount int      `json:"totalCount"`
	Page       int      `json:"page"`
}

// Aggregator fans queries out to the registered providers.
type Aggregator struct {
	providers  []book.Provider
	browser    Browser
	hasSummary func(bookID string) bool
}

// New creates an Aggregator. Search results keep the order of providers.
// hasSummary may be nil, in which case no result is flagged.
func New(providers []book.Provider, browser Browser, hasSummary func(string) bool) *Aggregator {
	if hasSummary == nil {
		hasSummary = func(string) bool { return false }
	}
	return &Aggregator{providers: providers, browser: browser, hasSummary: hasSummary}
}

// Provider returns the registered adapter for source.
func (a *Aggregator) Provider(source book.Source) (book.Provider, bool) {
	for _, p := range a.providers {
		if p.Source() == source {
			return p, true
		}
	}
	return nil, false
}

// SearchAll splits limit evenly across providers and concatenates their
// results in registration order. A limit smaller than the number of
// providers yields no results; a limit above MaxSearchLimit is reduced to it.
func (a *Aggregator) SearchAll(ctx context.Context, query string, limit int) []book.Book {
	if len(a.providers) == 0 {
		return []book.Book{}
	}
	limit = min(limit, MaxSearchLimit)
	per := limit / len(a.providers)
	if per < 1 {
		return []book.Book{}
	}

	parts := make([][]book.Book, len(a.providers))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range a.providers {
		g.Go(func() error {
			parts[i] = p.Search(gctx, query, per)
			return nil
		})
	}
	_ = g.Wait() // adapters never fail

	total := 0
	for _, part := range parts {
		total += len(part)
	}
	out := make([]book.Book, 0, total)
	for i, part := range parts {
		slog.Debug("Provider search done", "source", a.providers[i].Source(), "query", query, "results", len(part))
		out = append(out, part...)
	}
	return out
}

// BrowseByCategory returns one page of books for a category code. page is
// clamped to [1, MaxPage]. Browse failures produce an empty page rather than
// an error.
func (a *Aggregator) BrowseByCategory(ctx context.Context, code string, page, pageLimit int) Page {
	page = max(1, min(page, MaxPage))
	pageLimit = ClampPageLimit(pageLimit)
	offset := (page - 1) * pageLimit

	empty := Page{Results: []Result{}, Page: page}
	if a.browser == nil {
		return empty
	}

	books, total, err := a.browser.BrowseSubject(ctx, code, offset, pageLimit)
	if err != nil {
		slog.Warn("Category browse failed", "code", code, "page", page, "error", err)
		return empty
	}

	results := make([]Result, 0, len(books))
	for _, b := range books {
		results = append(results, Result{Book: b, HasSummary: a.hasSummary(b.ID)})
	}
	return Page{
		Results:    results,
		HasMore:    offset+pageLimit < total,
		TotalCount: total,
		Page:       page,
	}
}

// ClampPageLimit maps a requested page size into [1, MaxPageLimit], using
// DefaultPageLimit for zero or negative values.
func ClampPageLimit(limit int) int {
	switch {
	case limit < 1:
		return DefaultPageLimit
	case limit > MaxPageLimit:
		return MaxPageLimit
	default:
		return limit
	}
}
