package summary

import (
	"context"

	"github.com/lepinkainen/shelfnotes/internal/content"
)

// BookRef identifies the book being enriched.
type BookRef struct {
	Title    string
	Authors  []string
	Category string
	Language string
}

// Enrichment is the supplementary content rendered around a summary.
type Enrichment struct {
	Quotes  []content.Quote
	Related []content.RelatedBook
}

// Enricher supplies quotes and related books for a summary document.
type Enricher interface {
	Enrich(ctx context.Context, ref BookRef) (Enrichment, error)
}

// StaticEnricher returns the same three quotes and three related books for every book.
type StaticEnricher struct{}

var staticRelated = []content.RelatedBook{
	{Title: "Atomic Habits", Author: "James Clear"},
	{Title: "Deep Work", Author: "Cal Newport"},
	{Title: "Thinking, Fast and Slow", Author: "Daniel Kahneman"},
}

// Enrich implements Enricher.
func (StaticEnricher) Enrich(_ context.Context, ref BookRef) (Enrichment, error) {
	attribution := ref.Title
	quotes := []content.Quote{
		{Text: "The best ideas in this book are the ones you put into practice.", Attribution: attribution},
		{Text: "Small, consistent changes compound into remarkable results.", Attribution: attribution},
		{Text: "Understanding a principle is the first step; applying it is the second.", Attribution: attribution},
	}

	related := make([]content.RelatedBook, 0, len(staticRelated))
	for _, r := range staticRelated {
		if r.Title == ref.Title {
			continue
		}
		related = append(related, r)
	}
	if len(related) < len(staticRelated) {
		related = append(related, content.RelatedBook{Title: "The Power of Habit", Author: "Charles Duhigg"})
	}
	return Enrichment{Quotes: quotes, Related: related}, nil
}
