// Package frontmatter reads and writes Markdown documents with a YAML header.
package frontmatter

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const delimiter = "---"

// ParsedNote is a Markdown document split into its raw YAML header and body.
type ParsedNote struct {
	// Header is the YAML between the delimiters, without the delimiter lines
	Header []byte
	// Body is the content after the closing delimiter
	Body string
}

// ParseMarkdown splits content on its front matter delimiters.
// The closing delimiter must sit on its own line so that "---" inside a
// quoted value or a Markdown rule in the body does not end the header early.
func ParseMarkdown(content []byte) (*ParsedNote, error) {
	normalized := bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	normalized = bytes.TrimLeft(normalized, "\n\t ")

	if !bytes.HasPrefix(normalized, []byte(delimiter+"\n")) {
		return nil, fmt.Errorf("invalid markdown format: missing opening frontmatter delimiter")
	}
	rest := normalized[len(delimiter)+1:]

	var header []byte
	var body []byte
	switch {
	case bytes.HasPrefix(rest, []byte(delimiter+"\n")), bytes.Equal(rest, []byte(delimiter)):
		// empty header
		body = bytes.TrimPrefix(rest, []byte(delimiter))
	default:
		idx := bytes.Index(rest, []byte("\n"+delimiter+"\n"))
		if idx == -1 {
			if !bytes.HasSuffix(rest, []byte("\n"+delimiter)) {
				return nil, fmt.Errorf("invalid markdown format: missing closing frontmatter delimiter")
			}
			idx = len(rest) - len(delimiter) - 1
		}
		header = rest[:idx]
		body = rest[min(idx+len(delimiter)+1, len(rest)):]
	}

	return &ParsedNote{
		Header: header,
		Body:   strings.TrimSpace(string(body)),
	}, nil
}

// Decode parses the header into out, which is usually a *Meta.
func (p *ParsedNote) Decode(out any) error {
	if len(bytes.TrimSpace(p.Header)) == 0 {
		return nil
	}
	if err := yaml.Unmarshal(p.Header, out); err != nil {
		return fmt.Errorf("failed to parse frontmatter: %w", err)
	}
	return nil
}
