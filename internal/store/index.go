package store

import (
	"maps"
	"sync"

	"github.com/lepinkainen/shelfnotes/internal/book"
)

// Index maps external book IDs to the summary generated for them.
// It is safe for concurrent use; persistence goes through Store.
type Index struct {
	mu      sync.RWMutex
	records map[string]book.ProcessedRecord
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{records: make(map[string]book.ProcessedRecord)}
}

// Get returns the record stored for bookID.
func (i *Index) Get(bookID string) (book.ProcessedRecord, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	rec, ok := i.records[bookID]
	return rec, ok
}

// Has reports whether bookID has a generated summary.
func (i *Index) Has(bookID string) bool {
	_, ok := i.Get(bookID)
	return ok
}

// Len returns the number of records.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.records)
}

func (i *Index) set(bookID string, rec book.ProcessedRecord) map[string]book.ProcessedRecord {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.records[bookID] = rec
	return maps.Clone(i.records)
}
