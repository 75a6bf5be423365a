package googlebooks

import (
	"github.com/lepinkainen/shelfnotes/internal/book"
	"github.com/lepinkainen/shelfnotes/internal/content"
)

type volumesResponse struct {
	TotalItems int      `json:"totalItems"`
	Items      []volume `json:"items"`
}

type volume struct {
	ID         string     `json:"id"`
	VolumeInfo volumeInfo `json:"volumeInfo"`
}

type volumeInfo struct {
	Title         string     `json:"title"`
	Subtitle      string     `json:"subtitle"`
	Authors       []string   `json:"authors"`
	PublishedDate string     `json:"publishedDate"`
	Description   string     `json:"description"`
	PageCount     *int       `json:"pageCount"`
	Categories    []string   `json:"categories"`
	AverageRating *float64   `json:"averageRating"`
	RatingsCount  *int       `json:"ratingsCount"`
	Language      string     `json:"language"`
	ImageLinks    imageLinks `json:"imageLinks"`
}

type imageLinks struct {
	SmallThumbnail string `json:"smallThumbnail"`
	Thumbnail      string `json:"thumbnail"`
}

// cachedVolume is the response cache payload; NotFound entries use the negative TTL.
type cachedVolume struct {
	Volume   *volume `json:"volume,omitempty"`
	NotFound bool    `json:"notFound"`
}

// toBook maps a volume to a normalized book. ok is false for untitled volumes.
func (v volume) toBook() (book.Book, bool) {
	info := v.VolumeInfo
	b := book.Book{
		Source:        book.SourceGoogleBooks,
		ID:            v.ID,
		Title:         info.Title,
		Subtitle:      info.Subtitle,
		Authors:       info.Authors,
		PublishedDate: info.PublishedDate,
		Description:   content.NormalizeDescription(info.Description),
		PageCount:     info.PageCount,
		Categories:    info.Categories,
		AverageRating: info.AverageRating,
		RatingsCount:  info.RatingsCount,
		Language:      info.Language,
		ThumbnailURL:  info.ImageLinks.Thumbnail,
	}
	if b.ThumbnailURL == "" {
		b.ThumbnailURL = info.ImageLinks.SmallThumbnail
	}
	if !b.Normalize() {
		return book.Book{}, false
	}
	return b, true
}

func toBooks(items []volume) []book.Book {
	books := make([]book.Book, 0, len(items))
	for _, item := range items {
		if b, ok := item.toBook(); ok {
			books = append(books, b)
		}
	}
	return books
}
