// Package api exposes the book and summary services over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lepinkainen/shelfnotes/internal/aggregate"
	"github.com/lepinkainen/shelfnotes/internal/book"
	"github.com/lepinkainen/shelfnotes/internal/summary"
)

// BookService is the metadata side of the API.
type BookService interface {
	SearchAll(ctx context.Context, query string, limit int) []book.Book
	BrowseByCategory(ctx context.Context, code string, page, pageLimit int) aggregate.Page
	Provider(source book.Source) (book.Provider, bool)
}

// SummaryService is the summary side of the API.
type SummaryService interface {
	Summarize(ctx context.Context, req summary.Request) (*summary.Result, error)
	Translate(ctx context.Context, text, language string) (string, error)
	Submit(ctx context.Context, sub summary.Submission) (*summary.Submitted, error)
	AvailableLanguages(bookID string) []string
	TrackView(slug string) (int, error)
}

// Config holds router settings.
type Config struct {
	// CORSOrigins lists allowed origins; empty allows any origin.
	CORSOrigins []string
	// Events serves /ws when set.
	Events http.Handler
}

// Server holds the handler dependencies.
type Server struct {
	books     BookService
	summaries SummaryService
	cfg       Config
}

// NewServer creates a Server.
func NewServer(books BookService, summaries SummaryService, cfg Config) *Server {
	return &Server{books: books, summaries: summaries, cfg: cfg}
}

// Routes lists the API endpoints reported by the status endpoint.
var Routes = []string{
	"/api/book/search",
	"/api/book/details",
	"/api/book/summary",
	"/api/translate",
	"/api/languages",
	"/api/categories",
	"/api/books/category",
	"/api/book/available-languages",
	"/api/book/submit-summary",
	"/api/track-view",
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.corsHandler())

	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	if s.cfg.Events != nil {
		r.Handle("/ws", s.cfg.Events)
	}

	r.Group(func(r chi.Router) {
		r.Use(prometheusMetrics)

		r.Get("/", s.handleRoot)
		r.Get("/health", s.handleHealth)

		r.Route("/api", func(r chi.Router) {
			r.Get("/book/search", s.handleSearch)
			r.Get("/book/details", s.handleDetails)
			r.Get("/book/summary", s.handleSummary)
			r.Get("/book/available-languages", s.handleAvailableLanguages)
			r.Post("/book/submit-summary", s.handleSubmitSummary)
			r.Post("/translate", s.handleTranslate)
			r.Get("/languages", s.handleLanguages)
			r.Get("/categories", s.handleCategories)
			r.Get("/books/category", s.handleBrowseCategory)
			r.Post("/track-view", s.handleTrackView)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "Method not allowed")
	})
	return r
}

func (s *Server) corsHandler() func(http.Handler) http.Handler {
	origins := s.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         300,
	})
}
