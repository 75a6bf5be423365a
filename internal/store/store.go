// Package store persists summary documents, pending submissions, the
// processed-book index and view counts as flat files under one root.
package store

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/lepinkainen/shelfnotes/internal/book"
	apperrors "github.com/lepinkainen/shelfnotes/internal/errors"
	"github.com/lepinkainen/shelfnotes/internal/fileutil"
)

const (
	// DefaultLanguage is stored without a filename suffix.
	DefaultLanguage = "english"

	IndexFileName = "processed_books.json"
	ViewsFileName = "views.json"
	PendingDir    = "pending"
)

// Store owns every file below its root directory.
type Store struct {
	root    string
	keys    *keyedMutex
	indexMu sync.Mutex
	viewsMu sync.Mutex
}

// New creates the root directory if needed and returns a Store for it.
func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, apperrors.NewPersistenceError("create", root, err)
	}
	return &Store{root: root, keys: newKeyedMutex()}, nil
}

// Root returns the store's root directory.
func (s *Store) Root() string {
	return s.root
}

// FileName returns the document file name for slug in language.
// English documents carry no language suffix.
func FileName(slug, language string) string {
	if language == "" || language == DefaultLanguage {
		return slug + ".md"
	}
	return slug + "-" + language + ".md"
}

func validateComponent(field, value string) error {
	if value == "" {
		return apperrors.NewValidationError(field, "must not be empty")
	}
	if value == "." || value == ".." || strings.ContainsAny(value, `/\`) || strings.ContainsRune(value, 0) {
		return apperrors.NewValidationError(field, "contains invalid characters")
	}
	return nil
}

func (s *Store) documentPath(dir, slug, language string) (string, error) {
	if err := validateComponent("slug", slug); err != nil {
		return "", err
	}
	if language != "" {
		if err := validateComponent("language", language); err != nil {
			return "", err
		}
	}
	return filepath.Join(s.root, dir, FileName(slug, language)), nil
}

// Read loads the document for (slug, language). A missing document is
// reported as found == false with a nil error.
func (s *Store) Read(slug, language string) (*Document, bool, error) {
	path, err := s.documentPath("", slug, language)
	if err != nil {
		return nil, false, err
	}
	return readDocument(path)
}

// ReadPending loads a pending submission.
func (s *Store) ReadPending(slug, language string) (*Document, bool, error) {
	path, err := s.documentPath(PendingDir, slug, language)
	if err != nil {
		return nil, false, err
	}
	return readDocument(path)
}

func readDocument(path string) (*Document, bool, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperrors.NewPersistenceError("read", path, err)
	}
	doc, err := parseDocument(raw)
	if err != nil {
		return nil, false, apperrors.NewPersistenceError("parse", path, err)
	}
	return doc, true, nil
}

// Write replaces the document for (slug, language). Writers for the same key
// are serialized and the file is swapped in atomically.
func (s *Store) Write(slug, language string, doc *Document) error {
	return s.write("", slug, language, doc)
}

// WritePending stores doc in the pending partition.
func (s *Store) WritePending(slug, language string, doc *Document) error {
	return s.write(PendingDir, slug, language, doc)
}

func (s *Store) write(dir, slug, language string, doc *Document) error {
	path, err := s.documentPath(dir, slug, language)
	if err != nil {
		return err
	}
	if doc == nil || len(doc.Raw) == 0 {
		return apperrors.NewValidationError("document", "is empty")
	}

	unlock := s.keys.Lock(path)
	defer unlock()

	if err := fileutil.WriteFileAtomic(path, doc.Raw, 0644); err != nil {
		return apperrors.NewPersistenceError("write", path, err)
	}
	slog.Debug("Wrote document", "path", path, "bytes", len(doc.Raw))
	return nil
}

// Exists reports whether a document for (slug, language) is stored.
func (s *Store) Exists(slug, language string) bool {
	path, err := s.documentPath("", slug, language)
	if err != nil {
		return false
	}
	return fileutil.FileExists(path)
}

// ListAvailableLanguages returns the subset of supported languages that have
// a document for slug, in the order of supported. The result is never nil.
func (s *Store) ListAvailableLanguages(slug string, supported []string) []string {
	available := make([]string, 0, len(supported))
	for _, lang := range supported {
		if s.Exists(slug, lang) {
			available = append(available, lang)
		}
	}
	return available
}

// PendingEntry describes one pending submission.
type PendingEntry struct {
	File     string
	Document *Document
}

// ListPending returns the pending submissions sorted by file name.
func (s *Store) ListPending() ([]PendingEntry, error) {
	dir := filepath.Join(s.root, PendingDir)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return []PendingEntry{}, nil
	}
	if err != nil {
		return nil, apperrors.NewPersistenceError("list", dir, err)
	}

	out := make([]PendingEntry, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".md" {
			continue
		}
		doc, found, err := readDocument(filepath.Join(dir, e.Name()))
		if err != nil {
			slog.Warn("Skipping unreadable pending submission", "file", e.Name(), "error", err)
			continue
		}
		if found {
			out = append(out, PendingEntry{File: e.Name(), Document: doc})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].File < out[j].File })
	return out, nil
}

// LoadIndex reads the processed-book index. A missing file yields an empty index.
func (s *Store) LoadIndex() (*Index, error) {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()

	path := filepath.Join(s.root, IndexFileName)
	records := map[string]book.ProcessedRecord{}
	if _, err := fileutil.ReadJSONFile(path, &records); err != nil {
		return nil, apperrors.NewPersistenceError("load", path, err)
	}

	idx := NewIndex()
	for id, rec := range records {
		idx.records[id] = rec
	}
	slog.Debug("Loaded processed-book index", "path", path, "records", len(records))
	return idx, nil
}

// UpsertProcessedRecord stores rec under bookID in idx and rewrites the
// index file in full.
func (s *Store) UpsertProcessedRecord(idx *Index, bookID string, rec book.ProcessedRecord) error {
	if bookID == "" {
		return apperrors.NewValidationError("bookId", "must not be empty")
	}

	s.indexMu.Lock()
	defer s.indexMu.Unlock()

	snapshot := idx.set(bookID, rec)
	path := filepath.Join(s.root, IndexFileName)
	if err := fileutil.WriteJSONFile(snapshot, path); err != nil {
		return apperrors.NewPersistenceError("write", path, err)
	}
	return nil
}

// IncrementViews bumps the view counter of slug and returns the new count.
func (s *Store) IncrementViews(slug string) (int, error) {
	if err := validateComponent("slug", slug); err != nil {
		return 0, err
	}

	s.viewsMu.Lock()
	defer s.viewsMu.Unlock()

	path := filepath.Join(s.root, ViewsFileName)
	views := map[string]int{}
	if _, err := fileutil.ReadJSONFile(path, &views); err != nil {
		return 0, apperrors.NewPersistenceError("load", path, err)
	}
	views[slug]++
	if err := fileutil.WriteJSONFile(views, path); err != nil {
		return 0, apperrors.NewPersistenceError("write", path, err)
	}
	return views[slug], nil
}

// Views returns the view count of slug.
func (s *Store) Views(slug string) (int, error) {
	s.viewsMu.Lock()
	defer s.viewsMu.Unlock()

	path := filepath.Join(s.root, ViewsFileName)
	views := map[string]int{}
	if _, err := fileutil.ReadJSONFile(path, &views); err != nil {
		return 0, apperrors.NewPersistenceError("load", path, err)
	}
	return views[slug], nil
}
