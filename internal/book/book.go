// Package book defines the normalized book model shared by every metadata provider.
package book

import (
	"context"
	"fmt"
)

// Source identifies the metadata provider a Book came from.
type Source string

const (
	SourceGoogleBooks Source = "Google Books"
	SourceOpenLibrary Source = "Open Library"
)

// ParseSource maps the wire name of a provider to a Source.
func ParseSource(name string) (Source, error) {
	switch Source(name) {
	case SourceGoogleBooks, SourceOpenLibrary:
		return Source(name), nil
	}
	return "", fmt.Errorf("unknown source %q", name)
}

// Variant tells a provider which kind of resource an identifier refers to.
// Only Open Library distinguishes works from editions.
type Variant int

const (
	VariantWork Variant = iota
	VariantEdition
)

// DefaultLanguage is used when a provider does not report one.
const DefaultLanguage = "en"

// UnknownAuthor replaces missing or unresolvable author names.
const UnknownAuthor = "Unknown"

// Book is the provider-independent representation of a title.
type Book struct {
	Source        Source   `json:"source"`
	ID            string   `json:"id"`
	WorkID        string   `json:"workId,omitempty"`
	Title         string   `json:"title"`
	Subtitle      string   `json:"subtitle,omitempty"`
	Authors       []string `json:"authors"`
	PublishedDate string   `json:"publishedDate"`
	Description   string   `json:"description"`
	PageCount     *int     `json:"pageCount,omitempty"`
	Categories    []string `json:"categories"`
	AverageRating *float64 `json:"averageRating,omitempty"`
	RatingsCount  *int     `json:"ratingsCount,omitempty"`
	Language      string   `json:"language"`
	ThumbnailURL  string   `json:"thumbnailUrl"`

	// Edition is only filled by Open Library edition lookups.
	Edition *Edition `json:"edition,omitempty"`
}

// Edition carries the fields only an edition (as opposed to a work) has.
type Edition struct {
	ISBN10         []string `json:"isbn10,omitempty"`
	ISBN13         []string `json:"isbn13,omitempty"`
	Publishers     []string `json:"publishers,omitempty"`
	PhysicalFormat string   `json:"physicalFormat,omitempty"`
	PublishDate    string   `json:"publishDate,omitempty"`
	NumberOfPages  int      `json:"numberOfPages,omitempty"`
}

// Normalize fills defaults for absent fields. It reports false when the
// book has no title and must be dropped.
func (b *Book) Normalize() bool {
	if b.Title == "" {
		return false
	}
	b.Authors = NormalizeAuthors(b.Authors)
	if b.Categories == nil {
		b.Categories = []string{}
	}
	if b.Language == "" {
		b.Language = DefaultLanguage
	}
	return true
}

// NormalizeAuthors drops blank names and falls back to UnknownAuthor.
func NormalizeAuthors(authors []string) []string {
	out := make([]string, 0, len(authors))
	for _, a := range authors {
		if a != "" {
			out = append(out, a)
		}
	}
	if len(out) == 0 {
		return []string{UnknownAuthor}
	}
	return out
}

// Provider is implemented by every metadata source adapter.
//
// Search never fails: transport and decode errors degrade to an empty list.
// Details reports every failure as ErrNotFound.
type Provider interface {
	Source() Source
	Search(ctx context.Context, query string, maxResults int) []Book
	Details(ctx context.Context, id string, variant Variant) (*Book, error)
}

// ProcessedRecord is the index entry written after a summary was generated.
type ProcessedRecord struct {
	Title         string `json:"title"`
	Author        string `json:"author"`
	Slug          string `json:"slug"`
	DateProcessed string `json:"dateProcessed"`
}
