// Package googlebooks adapts the Google Books volumes API to book.Book.
package googlebooks

import (
	"net/url"
	"strings"

	"github.com/lepinkainen/shelfnotes/internal/book"
	"github.com/lepinkainen/shelfnotes/internal/cache"
	"github.com/lepinkainen/shelfnotes/internal/upstream"
)

const (
	defaultBaseURL = "https://www.googleapis.com/books/v1"
	// maxPageSize is the largest maxResults the volumes endpoint accepts.
	maxPageSize = 40
)

// Client is a Google Books API client.
type Client struct {
	apiKey  string
	baseURL string
	http    *upstream.Client
	cache   *cache.CacheDB
}

// Option configures the Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		if base != "" {
			c.baseURL = strings.TrimSuffix(base, "/")
		}
	}
}

// WithUpstream sets the HTTP client used for requests.
func WithUpstream(u *upstream.Client) Option {
	return func(c *Client) {
		if u != nil {
			c.http = u
		}
	}
}

// WithCache enables the response cache for volume lookups.
func WithCache(db *cache.CacheDB) Option {
	return func(c *Client) {
		c.cache = db
	}
}

// New creates a Google Books client. The API key is optional.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = upstream.New("googlebooks")
	}
	return c
}

// Source implements book.Provider.
func (c *Client) Source() book.Source {
	return book.SourceGoogleBooks
}

func (c *Client) endpoint(path string, params url.Values) string {
	if params == nil {
		params = url.Values{}
	}
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}
	u := c.baseURL + path
	if encoded := params.Encode(); encoded != "" {
		u += "?" + encoded
	}
	return u
}

var _ book.Provider = (*Client)(nil)
