package frontmatter

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Meta is the front matter of a summary document. Field order here is the
// order keys are written in.
type Meta struct {
	Title         string   `yaml:"title"`
	Author        string   `yaml:"author"`
	PubDate       string   `yaml:"pubDate"`
	Description   string   `yaml:"description"`
	Language      string   `yaml:"language"`
	ThumbnailURL  string   `yaml:"thumbnailUrl,omitempty"`
	PublishedDate string   `yaml:"publishedDate,omitempty"`
	AmazonLink    string   `yaml:"amazonLink,omitempty"`
	HeroImage     string   `yaml:"heroImage,omitempty"`
	Tags          []string `yaml:"tags,omitempty"`
	BookID        string   `yaml:"bookId,omitempty"`
	Status        string   `yaml:"status,omitempty"`
}

// MarshalYAML writes every string double-quoted and tags in flow style so
// that titles with colons or quotes survive a round trip.
func (m Meta) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}

	add := func(key, value string, always bool) {
		if value == "" && !always {
			return
		}
		node.Content = append(node.Content, keyNode(key), quoted(value))
	}

	add("title", m.Title, true)
	add("author", m.Author, true)
	add("pubDate", m.PubDate, true)
	add("description", m.Description, true)
	add("language", m.Language, true)
	add("thumbnailUrl", m.ThumbnailURL, false)
	add("publishedDate", m.PublishedDate, false)
	add("amazonLink", m.AmazonLink, false)
	add("heroImage", m.HeroImage, false)

	if len(m.Tags) > 0 {
		seq := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
		for _, tag := range m.Tags {
			seq.Content = append(seq.Content, quoted(tag))
		}
		node.Content = append(node.Content, keyNode("tags"), seq)
	}

	add("bookId", m.BookID, false)
	add("status", m.Status, false)

	return node, nil
}

func keyNode(key string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Value: key}
}

func quoted(value string) *yaml.Node {
	return &yaml.Node{
		Kind:  yaml.ScalarNode,
		Tag:   "!!str",
		Style: yaml.DoubleQuotedStyle,
		Value: value,
	}
}

// Encode renders meta and body as a complete Markdown document.
func Encode(meta Meta, body string) ([]byte, error) {
	header, err := yaml.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal frontmatter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(delimiter + "\n")
	buf.Write(header)
	buf.WriteString(delimiter + "\n\n")
	if trimmed := strings.TrimSpace(body); trimmed != "" {
		buf.WriteString(trimmed)
		buf.WriteString("\n")
	}
	return buf.Bytes(), nil
}

// Decode parses a document produced by Encode.
func Decode(content []byte) (Meta, string, error) {
	var meta Meta
	note, err := ParseMarkdown(content)
	if err != nil {
		return meta, "", err
	}
	if err := note.Decode(&meta); err != nil {
		return meta, "", err
	}
	return meta, note.Body, nil
}
