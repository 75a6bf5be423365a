// Package summary generates, caches and serves book summaries.
package summary

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/lepinkainen/shelfnotes/internal/book"
	"github.com/lepinkainen/shelfnotes/internal/catalog"
	"github.com/lepinkainen/shelfnotes/internal/content"
	apperrors "github.com/lepinkainen/shelfnotes/internal/errors"
	"github.com/lepinkainen/shelfnotes/internal/frontmatter"
	"github.com/lepinkainen/shelfnotes/internal/llm"
	"github.com/lepinkainen/shelfnotes/internal/metrics"
	"github.com/lepinkainen/shelfnotes/internal/slug"
	"github.com/lepinkainen/shelfnotes/internal/store"
)

const (
	// DefaultTranslateLanguage is used when a translation request names no language.
	DefaultTranslateLanguage = "spanish"

	// SubmittedMessage is returned to callers after a successful submission.
	SubmittedMessage = "Summary submitted successfully. It will be reviewed before being published."

	statusPending = "pending"
	pubDateLayout = "2006-01-02"
)

// Event types published after state changes.
const (
	EventGenerated = "summary.generated"
	EventSubmitted = "summary.submitted"
)

// Event describes a summary state change.
type Event struct {
	Type     string    `json:"type"`
	Slug     string    `json:"slug"`
	Language string    `json:"language"`
	Title    string    `json:"title"`
	BookID   string    `json:"bookId,omitempty"`
	Time     time.Time `json:"time"`
}

// Publisher receives events. Implementations must not block.
type Publisher interface {
	Publish(Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(Event)

// Publish implements Publisher.
func (f PublisherFunc) Publish(e Event) { f(e) }

// CoverFetcher stores a cover image for slug and returns its document-relative path.
type CoverFetcher interface {
	Fetch(ctx context.Context, slug, sourceURL string) (string, error)
}

// Request asks for a summary. Either Title or Slug is required.
type Request struct {
	Title         string
	Slug          string
	Authors       []string
	Language      string
	Description   string
	Category      string
	BookID        string
	ThumbnailURL  string
	PublishedDate string
}

// Result is a cached or freshly generated summary.
type Result struct {
	Title    string   `json:"title"`
	Authors  []string `json:"authors"`
	Slug     string   `json:"slug"`
	Language string   `json:"language"`
	Summary  string   `json:"summary"`
	Cached   bool     `json:"cached"`
}

// Submission is a user-written summary awaiting review.
type Submission struct {
	Title         string
	Authors       []string
	Summary       string
	BookID        string
	Language      string
	ThumbnailURL  string
	PublishedDate string
}

// Submitted is the outcome of a successful submission.
type Submitted struct {
	Slug    string
	Message string
}

// Service implements summary generation on top of the document store.
type Service struct {
	store     *store.Store
	index     *store.Index
	completer llm.Completer
	enricher  Enricher
	publisher Publisher
	covers    CoverFetcher

	affiliateTag string
	languages    []string
	now          func() time.Time

	flights singleflight.Group
}

// Option configures a Service.
type Option func(*Service)

// WithEnricher replaces the StaticEnricher.
func WithEnricher(e Enricher) Option {
	return func(s *Service) {
		if e != nil {
			s.enricher = e
		}
	}
}

// WithPublisher sets the event sink.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithCoverFetcher enables cover downloads for generated documents.
func WithCoverFetcher(c CoverFetcher) Option {
	return func(s *Service) { s.covers = c }
}

// WithAffiliateTag sets the Amazon affiliate tag used in purchase links.
func WithAffiliateTag(tag string) Option {
	return func(s *Service) { s.affiliateTag = tag }
}

// WithLanguages restricts the accepted language codes.
func WithLanguages(codes []string) Option {
	return func(s *Service) {
		if len(codes) > 0 {
			s.languages = slices.Clone(codes)
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a Service. idx must be the index loaded from st.
func NewService(st *store.Store, idx *store.Index, completer llm.Completer, opts ...Option) *Service {
	s := &Service{
		store:     st,
		index:     idx,
		completer: completer,
		enricher:  StaticEnricher{},
		languages: catalog.LanguageCodes(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Languages returns the accepted language codes.
func (s *Service) Languages() []string {
	return slices.Clone(s.languages)
}

func (s *Service) normalizeLanguage(lang string) (string, error) {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		return store.DefaultLanguage, nil
	}
	if !slices.Contains(s.languages, lang) {
		return "", apperrors.NewValidationError("language", fmt.Sprintf("unsupported language %q", lang))
	}
	return lang, nil
}

// Summarize returns the cached summary for (slug, language) when a slug is
// given and the document exists; otherwise it generates, stores and returns
// a new one. Concurrent identical generations share one backend call.
func (s *Service) Summarize(ctx context.Context, req Request) (*Result, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Slug = strings.TrimSpace(req.Slug)
	if req.Title == "" && req.Slug == "" {
		return nil, apperrors.NewValidationError("", "Book title or slug is required")
	}

	language, err := s.normalizeLanguage(req.Language)
	if err != nil {
		return nil, err
	}
	req.Language = language
	req.Authors = book.NormalizeAuthors(req.Authors)

	if req.Slug != "" {
		doc, found, err := s.store.Read(req.Slug, language)
		if err != nil {
			metrics.SummaryRequests.WithLabelValues("error").Inc()
			return nil, err
		}
		if found {
			slog.Debug("Summary cache hit", "slug", req.Slug, "language", language)
			metrics.SummaryRequests.WithLabelValues("cache_hit").Inc()
			res := resultFromDocument(req.Slug, language, doc, true)
			if req.BookID != "" && !s.index.Has(req.BookID) {
				if err := s.recordProcessed(req.BookID, res); err != nil {
					return nil, err
				}
			}
			return res, nil
		}
		if req.Title == "" {
			return nil, apperrors.NewNotFoundError("summary", req.Slug+" ("+language+")")
		}
	} else {
		req.Slug = slug.Make(req.Title)
		if req.Slug == "" {
			return nil, apperrors.NewValidationError("title", "must contain at least one letter or digit")
		}
	}

	key := req.Slug + "\x00" + language
	ch := s.flights.DoChan(key, func() (any, error) {
		// Detached so that one caller going away does not fail the others;
		// the completer bounds the call with its own timeout.
		return s.generate(context.WithoutCancel(ctx), req)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			slog.Debug("Summary generation shared", "slug", req.Slug, "language", language)
		}
		out := *res.Val.(*Result)
		// Every caller records its own book ID; a shared flight only
		// carries the leader's request.
		if req.BookID != "" {
			if err := s.recordProcessed(req.BookID, &out); err != nil {
				return nil, err
			}
		}
		return &out, nil
	}
}

// recordProcessed upserts the processed-book index entry for bookID.
func (s *Service) recordProcessed(bookID string, res *Result) error {
	rec := book.ProcessedRecord{
		Title:         res.Title,
		Author:        strings.Join(res.Authors, ", "),
		Slug:          res.Slug,
		DateProcessed: s.now().UTC().Format(time.RFC3339),
	}
	if err := s.store.UpsertProcessedRecord(s.index, bookID, rec); err != nil {
		slog.Error("Failed to update processed-book index", "book_id", bookID, "slug", res.Slug, "error", err)
		metrics.SummaryRequests.WithLabelValues("error").Inc()
		return err
	}
	return nil
}

func (s *Service) generate(ctx context.Context, req Request) (*Result, error) {
	log := slog.With("slug", req.Slug, "language", req.Language, "title", req.Title)
	log.Info("Generating summary")

	raw, err := s.completer.Complete(ctx, llm.Request{
		Kind:   "summary",
		System: summarySystemPrompt,
		Prompt: BuildPrompt(PromptInput{
			Title:       req.Title,
			Authors:     req.Authors,
			Language:    req.Language,
			Description: req.Description,
			Category:    req.Category,
		}),
		Temperature: summaryTemperature,
	})
	if err != nil {
		log.Error("Summary generation failed", "error", err)
		metrics.SummaryRequests.WithLabelValues("error").Inc()
		return nil, apperrors.NewUpstreamError("summarization", err)
	}

	parsed := ParseSections(raw)
	if parsed.Status == Partial {
		log.Warn("Summary output under-structured, using placeholders", "missing", parsed.Missing)
	}

	enrichment, err := s.enricher.Enrich(ctx, BookRef{
		Title:    req.Title,
		Authors:  req.Authors,
		Category: req.Category,
		Language: req.Language,
	})
	if err != nil {
		log.Warn("Enrichment failed, using static content", "error", err)
		enrichment, _ = StaticEnricher{}.Enrich(ctx, BookRef{Title: req.Title, Authors: req.Authors})
	}

	purchaseURL := content.AmazonLink(req.Title, req.Authors, s.affiliateTag)
	body := content.BuildSummaryBody(&content.SummaryDetails{
		Title:           req.Title,
		Authors:         req.Authors,
		ShortSummary:    parsed.Short,
		DetailedSummary: parsed.Detailed,
		Takeaways:       parsed.Takeaways,
		Quotes:          enrichment.Quotes,
		Related:         enrichment.Related,
		PurchaseURL:     purchaseURL,
	})

	meta := frontmatter.Meta{
		Title:         req.Title,
		Author:        strings.Join(req.Authors, ", "),
		PubDate:       s.now().Format(pubDateLayout),
		Description:   describe(req.Title, req.Authors),
		Language:      req.Language,
		ThumbnailURL:  req.ThumbnailURL,
		PublishedDate: req.PublishedDate,
		AmazonLink:    purchaseURL,
		Tags:          generatedTags(req.Category),
		BookID:        req.BookID,
	}
	if s.covers != nil && req.ThumbnailURL != "" {
		hero, err := s.covers.Fetch(ctx, req.Slug, req.ThumbnailURL)
		if err != nil {
			log.Warn("Cover download failed", "url", req.ThumbnailURL, "error", err)
		} else {
			meta.HeroImage = hero
		}
	}

	doc, err := store.NewDocument(meta, body)
	if err != nil {
		metrics.SummaryRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("render summary %s: %w", req.Slug, err)
	}
	if err := s.store.Write(req.Slug, req.Language, doc); err != nil {
		log.Error("Failed to persist summary", "error", err)
		metrics.SummaryRequests.WithLabelValues("error").Inc()
		return nil, err
	}

	outcome := "generated"
	if parsed.Status == Partial {
		outcome = "partial"
	}
	metrics.SummaryRequests.WithLabelValues(outcome).Inc()
	s.publish(Event{Type: EventGenerated, Slug: req.Slug, Language: req.Language, Title: req.Title, BookID: req.BookID})

	log.Info("Summary stored", "status", parsed.Status.String())
	return resultFromDocument(req.Slug, req.Language, doc, false), nil
}

// Translate translates text into language (DefaultTranslateLanguage when empty).
func (s *Service) Translate(ctx context.Context, text, language string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", apperrors.NewValidationError("text", "No text provided")
	}
	language = strings.TrimSpace(language)
	if language == "" {
		language = DefaultTranslateLanguage
	}

	out, err := s.completer.Complete(ctx, llm.Request{
		Kind:        "translate",
		System:      translateSystemPrompt,
		Prompt:      BuildTranslatePrompt(text, language),
		Temperature: translateTemperature,
	})
	if err != nil {
		slog.Error("Translation failed", "language", language, "error", err)
		return "", apperrors.NewUpstreamError("translation", err)
	}
	return out, nil
}

// Submit stores a user-written summary in the pending partition.
func (s *Service) Submit(_ context.Context, sub Submission) (*Submitted, error) {
	sub.Title = strings.TrimSpace(sub.Title)
	sub.BookID = strings.TrimSpace(sub.BookID)
	var authors []string
	for _, a := range sub.Authors {
		if a = strings.TrimSpace(a); a != "" {
			authors = append(authors, a)
		}
	}

	switch {
	case sub.Title == "":
		return nil, apperrors.NewValidationError("title", "is required")
	case len(authors) == 0:
		return nil, apperrors.NewValidationError("authors", "is required")
	case strings.TrimSpace(sub.Summary) == "":
		return nil, apperrors.NewValidationError("summary", "is required")
	case sub.BookID == "":
		return nil, apperrors.NewValidationError("bookId", "is required")
	}

	language, err := s.normalizeLanguage(sub.Language)
	if err != nil {
		return nil, err
	}
	docSlug := slug.Make(sub.Title)
	if docSlug == "" {
		return nil, apperrors.NewValidationError("title", "must contain at least one letter or digit")
	}

	author := strings.Join(authors, ", ")
	meta := frontmatter.Meta{
		Title:         sub.Title,
		Author:        author,
		PubDate:       s.now().Format(pubDateLayout),
		Description:   describe(sub.Title, authors),
		Language:      language,
		ThumbnailURL:  sub.ThumbnailURL,
		PublishedDate: sub.PublishedDate,
		Tags:          []string{"user-submitted", "pending-review"},
		BookID:        sub.BookID,
		Status:        statusPending,
	}
	doc, err := store.NewDocument(meta, sub.Summary)
	if err != nil {
		return nil, fmt.Errorf("render submission %s: %w", docSlug, err)
	}
	if err := s.store.WritePending(docSlug, language, doc); err != nil {
		slog.Error("Failed to store submission", "slug", docSlug, "book_id", sub.BookID, "error", err)
		return nil, err
	}

	slog.Info("Summary submitted for review", "slug", docSlug, "language", language, "book_id", sub.BookID)
	s.publish(Event{Type: EventSubmitted, Slug: docSlug, Language: language, Title: sub.Title, BookID: sub.BookID})
	return &Submitted{Slug: docSlug, Message: SubmittedMessage}, nil
}

// AvailableLanguages lists the languages with a stored summary for bookID.
// Unknown books yield an empty list.
func (s *Service) AvailableLanguages(bookID string) []string {
	rec, ok := s.index.Get(bookID)
	if !ok || rec.Slug == "" {
		return []string{}
	}
	return s.store.ListAvailableLanguages(rec.Slug, s.languages)
}

// HasSummary reports whether bookID is in the processed-book index.
func (s *Service) HasSummary(bookID string) bool {
	return s.index.Has(bookID)
}

// TrackView increments and returns the view count of slug.
func (s *Service) TrackView(slugValue string) (int, error) {
	slugValue = strings.TrimSpace(slugValue)
	if slugValue == "" {
		return 0, apperrors.NewValidationError("slug", "is required")
	}
	return s.store.IncrementViews(slugValue)
}

func (s *Service) publish(e Event) {
	if s.publisher == nil {
		return
	}
	e.Time = s.now().UTC()
	s.publisher.Publish(e)
}

func resultFromDocument(slugValue, language string, doc *store.Document, cached bool) *Result {
	authors := book.NormalizeAuthors(strings.Split(doc.Meta.Author, ", "))
	lang := doc.Meta.Language
	if lang == "" {
		lang = language
	}
	return &Result{
		Title:    doc.Meta.Title,
		Authors:  authors,
		Slug:     slugValue,
		Language: lang,
		Summary:  doc.Body,
		Cached:   cached,
	}
}

func describe(title string, authors []string) string {
	return fmt.Sprintf("Summary of the book '%s' by %s.", title, strings.Join(authors, ", "))
}

func generatedTags(category string) []string {
	tags := []string{"ai-generated"}
	if category = strings.TrimSpace(category); category != "" {
		tags = append(tags, strings.ToLower(category))
	}
	return tags
}
