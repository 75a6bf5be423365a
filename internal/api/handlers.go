package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/lepinkainen/shelfnotes/internal/aggregate"
	"github.com/lepinkainen/shelfnotes/internal/book"
	"github.com/lepinkainen/shelfnotes/internal/catalog"
	apperrors "github.com/lepinkainen/shelfnotes/internal/errors"
)

const defaultSearchLimit = 10

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "API running",
		"endpoints": Routes,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// intParam parses an optional integer query parameter.
func intParam(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.NewValidationError(name, "must be an integer")
	}
	return v, nil
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		writeError(w, r, http.StatusBadRequest, "No search query provided")
		return
	}
	limit, err := intParam(r, "limit", defaultSearchLimit)
	if err != nil {
		writeServiceError(w, r, "", err)
		return
	}
	if limit > aggregate.MaxSearchLimit {
		writeServiceError(w, r, "", apperrors.NewValidationError("limit", fmt.Sprintf("must be at most %d", aggregate.MaxSearchLimit)))
		return
	}

	results := s.books.SearchAll(r.Context(), query, limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"query":   query,
		"results": results,
	})
}

func (s *Server) handleDetails(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id := strings.TrimSpace(q.Get("id"))
	sourceName := strings.TrimSpace(q.Get("source"))
	if id == "" || sourceName == "" {
		writeError(w, r, http.StatusBadRequest, "Book ID and source are required")
		return
	}

	source, err := book.ParseSource(sourceName)
	if err != nil {
		writeServiceError(w, r, "", apperrors.NewNotFoundError("source", sourceName))
		return
	}
	provider, ok := s.books.Provider(source)
	if !ok {
		writeServiceError(w, r, "", apperrors.NewNotFoundError("source", sourceName))
		return
	}

	variant := book.VariantWork
	if v := q.Get("is_work"); v != "" && !strings.EqualFold(v, "true") {
		variant = book.VariantEdition
	}

	b, err := provider.Details(r.Context(), id, variant)
	if err != nil {
		if errors.Is(err, book.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "Book not found")
			return
		}
		writeServiceError(w, r, "Failed to fetch book details", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleLanguages(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"languages": catalog.Languages()})
}

func (s *Server) handleCategories(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, catalog.Categories())
}

func (s *Server) handleBrowseCategory(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(r.URL.Query().Get("code"))
	if code == "" {
		writeError(w, r, http.StatusBadRequest, "Category code is required")
		return
	}
	page, err := intParam(r, "page", 1)
	if err != nil {
		writeServiceError(w, r, "", err)
		return
	}
	limit, err := intParam(r, "limit", aggregate.DefaultPageLimit)
	if err != nil {
		writeServiceError(w, r, "", err)
		return
	}

	writeJSON(w, http.StatusOK, s.books.BrowseByCategory(r.Context(), code, page, limit))
}

func (s *Server) handleAvailableLanguages(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		writeError(w, r, http.StatusBadRequest, "Book ID is required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"bookId":    id,
		"languages": s.summaries.AvailableLanguages(id),
	})
}
