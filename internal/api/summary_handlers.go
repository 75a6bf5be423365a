package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/lepinkainen/shelfnotes/internal/summary"
)

// authorList accepts either a JSON array of names or one comma-separated string.
type authorList []string

func (a *authorList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*a = list
		return nil
	}
	var joined string
	if err := json.Unmarshal(data, &joined); err != nil {
		return err
	}
	*a = splitAuthors([]string{joined})
	return nil
}

// splitAuthors flattens comma-separated values and drops blanks.
func splitAuthors(values []string) []string {
	var out []string
	for _, v := range values {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				out = append(out, name)
			}
		}
	}
	return out
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := summary.Request{
		Title:         q.Get("title"),
		Slug:          q.Get("slug"),
		Authors:       splitAuthors(q["authors"]),
		Language:      q.Get("language"),
		Description:   q.Get("description"),
		Category:      q.Get("category"),
		BookID:        q.Get("bookId"),
		ThumbnailURL:  q.Get("thumbnailUrl"),
		PublishedDate: q.Get("publishedDate"),
	}

	res, err := s.summaries.Summarize(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, "Failed to generate summary", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type translateRequest struct {
	Text     string `json:"text" validate:"required"`
	Language string `json:"language" validate:"omitempty,max=64"`
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var body translateRequest
	if err := decodeJSON(r, &body); err != nil {
		writeServiceError(w, r, "", err)
		return
	}
	language := strings.TrimSpace(body.Language)
	if language == "" {
		language = summary.DefaultTranslateLanguage
	}

	translated, err := s.summaries.Translate(r.Context(), body.Text, language)
	if err != nil {
		writeServiceError(w, r, "Translation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"text":       body.Text,
		"translated": translated,
		"language":   language,
	})
}

type submitRequest struct {
	Title         string     `json:"title" validate:"required,max=500"`
	Authors       authorList `json:"authors" validate:"required,min=1,dive,required"`
	Summary       string     `json:"summary" validate:"required"`
	BookID        string     `json:"bookId" validate:"required,max=200"`
	Language      string     `json:"language" validate:"omitempty,max=64"`
	ThumbnailURL  string     `json:"thumbnailUrl" validate:"omitempty,url"`
	PublishedDate string     `json:"publishedDate"`
}

func (s *Server) handleSubmitSummary(w http.ResponseWriter, r *http.Request) {
	var body submitRequest
	if err := decodeJSON(r, &body); err != nil {
		writeServiceError(w, r, "", err)
		return
	}

	res, err := s.summaries.Submit(r.Context(), summary.Submission{
		Title:         body.Title,
		Authors:       body.Authors,
		Summary:       body.Summary,
		BookID:        body.BookID,
		Language:      body.Language,
		ThumbnailURL:  body.ThumbnailURL,
		PublishedDate: body.PublishedDate,
	})
	if err != nil {
		writeServiceError(w, r, "Error submitting summary", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"success": true,
		"message": res.Message,
		"slug":    res.Slug,
	})
}

type trackViewRequest struct {
	Slug string `json:"slug" validate:"required,max=200"`
}

func (s *Server) handleTrackView(w http.ResponseWriter, r *http.Request) {
	var body trackViewRequest
	if err := decodeJSON(r, &body); err != nil {
		writeServiceError(w, r, "", err)
		return
	}
	views, err := s.summaries.TrackView(body.Slug)
	if err != nil {
		writeServiceError(w, r, "Failed to track view", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "views": views})
}
