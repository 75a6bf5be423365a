package book

import "errors"

var (
	// ErrNotFound is returned by Provider.Details for any lookup that did not yield a book.
	ErrNotFound = errors.New("book not found")
)
