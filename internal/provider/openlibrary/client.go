// Package openlibrary adapts the Open Library search, works, editions and
// authors APIs to book.Book.
package openlibrary

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/lepinkainen/shelfnotes/internal/book"
	"github.com/lepinkainen/shelfnotes/internal/cache"
	"github.com/lepinkainen/shelfnotes/internal/upstream"
)

const (
	defaultBaseURL       = "https://openlibrary.org"
	defaultCoversBaseURL = "https://covers.openlibrary.org"
	// DefaultAuthorConcurrency bounds parallel author lookups per detail fetch.
	DefaultAuthorConcurrency = 4
)

// Client is an Open Library API client.
type Client struct {
	baseURL           string
	coversBaseURL     string
	http              *upstream.Client
	cache             *cache.CacheDB
	authorConcurrency int
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

// WithCoversBaseURL overrides the cover image host.
func WithCoversBaseURL(base string) Option {
	return func(c *Client) {
		if base != "" {
			c.coversBaseURL = strings.TrimSuffix(base, "/")
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

// WithCache enables the response cache for work, edition and author lookups.
func WithCache(db *cache.CacheDB) Option {
	return func(c *Client) {
		c.cache = db
	}
}

// WithAuthorConcurrency sets how many author lookups run at once.
func WithAuthorConcurrency(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.authorConcurrency = n
		}
	}
}

// New creates an Open Library client.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:           defaultBaseURL,
		coversBaseURL:     defaultCoversBaseURL,
		authorConcurrency: DefaultAuthorConcurrency,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = upstream.New("openlibrary")
	}
	return c
}

// Source implements book.Provider.
func (c *Client) Source() book.Source {
	return book.SourceOpenLibrary
}

func (c *Client) coverURL(id int) string {
	if id <= 0 {
		return ""
	}
	return fmt.Sprintf("%s/b/id/%d-M.jpg", c.coversBaseURL, id)
}

func (c *Client) endpoint(path string, params url.Values) string {
	u := c.baseURL + path
	if encoded := params.Encode(); encoded != "" {
		u += "?" + encoded
	}
	return u
}

// lastSegment returns the final element of an Open Library key such as "/works/OL1W".
func lastSegment(key string) string {
	key = strings.TrimSuffix(key, "/")
	if i := strings.LastIndex(key, "/"); i >= 0 {
		return key[i+1:]
	}
	return key
}

var _ book.Provider = (*Client)(nil)
