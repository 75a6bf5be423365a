// Package covers downloads book cover thumbnails next to the summary documents.
package covers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"slices"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	apperrors "github.com/lepinkainen/shelfnotes/internal/errors"
	"github.com/lepinkainen/shelfnotes/internal/fileutil"
	"github.com/lepinkainen/shelfnotes/internal/upstream"
)

const (
	// Dir is the covers directory below the store root.
	Dir = "covers"

	DefaultMaxWidth = 600
	jpegQuality     = 85
)

// DefaultAllowedHosts are the provider image hosts covers may be downloaded from.
var DefaultAllowedHosts = []string{
	"books.google.com",
	"books.googleusercontent.com",
	"covers.openlibrary.org",
}

// ErrHostNotAllowed is returned for cover URLs outside the allowed hosts.
var ErrHostNotAllowed = errors.New("cover host not allowed")

const maxRedirects = 5

// Fetcher stores resized JPEG covers as {root}/covers/{slug}.jpg.
type Fetcher struct {
	root     string
	client   *upstream.Client
	maxWidth int
	refresh  bool
	hosts    []string
	upOpts   []upstream.Option
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithUpstreamOptions configures the download client built by NewFetcher,
// whose redirect policy only follows allowed hosts.
func WithUpstreamOptions(opts ...upstream.Option) Option {
	return func(f *Fetcher) { f.upOpts = append(f.upOpts, opts...) }
}

// WithAllowedHosts adds hosts (and their subdomains) to DefaultAllowedHosts.
func WithAllowedHosts(hosts ...string) Option {
	return func(f *Fetcher) {
		for _, h := range hosts {
			if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
				f.hosts = append(f.hosts, h)
			}
		}
	}
}

// WithMaxWidth sets the width covers are scaled down to.
func WithMaxWidth(w int) Option {
	return func(f *Fetcher) {
		if w > 0 {
			f.maxWidth = w
		}
	}
}

// WithRefresh makes Fetch download again even when a cover already exists.
func WithRefresh(refresh bool) Option {
	return func(f *Fetcher) { f.refresh = refresh }
}

// NewFetcher creates a Fetcher writing below root.
func NewFetcher(root string, opts ...Option) *Fetcher {
	f := &Fetcher{
		root:     root,
		maxWidth: DefaultMaxWidth,
		hosts:    slices.Clone(DefaultAllowedHosts),
	}
	for _, opt := range opts {
		opt(f)
	}
	httpClient := &http.Client{CheckRedirect: f.checkRedirect}
	f.client = upstream.New("covers", append([]upstream.Option{upstream.WithHTTPClient(httpClient)}, f.upOpts...)...)
	return f
}

// Allowed reports whether rawURL is an http(s) URL on an allowed host.
func (f *Fetcher) Allowed(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	return f.allowedHost(u.Hostname())
}

func (f *Fetcher) allowedHost(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if host == "" {
		return false
	}
	for _, h := range f.hosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

func (f *Fetcher) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects", maxRedirects)
	}
	if !f.Allowed(req.URL.String()) {
		return fmt.Errorf("redirect to %s: %w", req.URL.Host, ErrHostNotAllowed)
	}
	return nil
}

// RelativePath returns the root-relative path of the cover for slug.
func RelativePath(slug string) string {
	return path.Join(Dir, slug+".jpg")
}

// Fetch downloads sourceURL, scales it down to the configured width and
// returns the root-relative path of the stored JPEG.
func (f *Fetcher) Fetch(ctx context.Context, slug, sourceURL string) (string, error) {
	if slug == "" || strings.ContainsAny(slug, `/\`) || slug == "." || slug == ".." {
		return "", apperrors.NewValidationError("slug", "contains invalid characters")
	}
	if sourceURL == "" {
		return "", apperrors.NewValidationError("thumbnailUrl", "is required")
	}
	if !f.Allowed(sourceURL) {
		return "", fmt.Errorf("cover %s from %q: %w", slug, sourceURL, ErrHostNotAllowed)
	}

	rel := RelativePath(slug)
	dest := filepath.Join(f.root, filepath.FromSlash(rel))
	if !f.refresh && fileutil.FileExists(dest) {
		slog.Debug("Cover already exists, skipping download", "path", dest)
		return rel, nil
	}

	data, err := f.client.GetBytes(ctx, sourceURL)
	if err != nil {
		return "", fmt.Errorf("download cover %s: %w", slug, err)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("decode cover %s: %w", slug, err)
	}
	if img.Bounds().Dx() > f.maxWidth {
		img = imaging.Resize(img, f.maxWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return "", fmt.Errorf("encode cover %s: %w", slug, err)
	}
	if err := fileutil.WriteFileAtomic(dest, buf.Bytes(), 0644); err != nil {
		return "", apperrors.NewPersistenceError("write", dest, err)
	}

	slog.Debug("Cover stored", "slug", slug, "path", dest)
	return rel, nil
}
