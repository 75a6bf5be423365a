package store

import (
	"strings"

	"github.com/lepinkainen/shelfnotes/internal/frontmatter"
)

// Document is a summary file: front matter plus Markdown body.
type Document struct {
	Meta frontmatter.Meta
	Body string
	// Raw holds the exact bytes as stored on disk.
	Raw []byte
}

// NewDocument renders meta and body into a Document ready to be written.
// Body is trimmed the same way it is when read back.
func NewDocument(meta frontmatter.Meta, body string) (*Document, error) {
	body = strings.TrimSpace(body)
	raw, err := frontmatter.Encode(meta, body)
	if err != nil {
		return nil, err
	}
	return &Document{Meta: meta, Body: body, Raw: raw}, nil
}

func parseDocument(raw []byte) (*Document, error) {
	meta, body, err := frontmatter.Decode(raw)
	if err != nil {
		return nil, err
	}
	return &Document{Meta: meta, Body: body, Raw: raw}, nil
}
