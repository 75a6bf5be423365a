// Package app wires the configured components into a running application.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/lepinkainen/shelfnotes/internal/aggregate"
	"github.com/lepinkainen/shelfnotes/internal/api"
	"github.com/lepinkainen/shelfnotes/internal/book"
	"github.com/lepinkainen/shelfnotes/internal/cache"
	"github.com/lepinkainen/shelfnotes/internal/config"
	"github.com/lepinkainen/shelfnotes/internal/covers"
	"github.com/lepinkainen/shelfnotes/internal/events"
	"github.com/lepinkainen/shelfnotes/internal/llm"
	"github.com/lepinkainen/shelfnotes/internal/provider/googlebooks"
	"github.com/lepinkainen/shelfnotes/internal/provider/openlibrary"
	"github.com/lepinkainen/shelfnotes/internal/store"
	"github.com/lepinkainen/shelfnotes/internal/summary"
	"github.com/lepinkainen/shelfnotes/internal/upstream"
)

// App holds the long-lived components.
type App struct {
	Config      *config.Config
	Store       *store.Store
	Cache       *cache.CacheDB
	GoogleBooks *googlebooks.Client
	OpenLibrary *openlibrary.Client
	Books       *aggregate.Aggregator
	Summaries   *summary.Service
	Hub         *events.Hub

	closers []func() error
}

type options struct {
	completer  llm.Completer
	searchOnly bool
}

// Option customizes New.
type Option func(*options)

// WithCompleter bypasses backend construction from the LLM config.
func WithCompleter(c llm.Completer) Option {
	return func(o *options) { o.completer = c }
}

// WithSearchOnly skips backend construction; summary generation then fails
// with ErrNoBackend.
func WithSearchOnly() Option {
	return func(o *options) { o.searchOnly = true }
}

// ErrNoBackend is returned by summary generation in search-only mode.
var ErrNoBackend = errors.New("summarization backend not configured")

// New builds every component from cfg.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close()
		}
	}()

	st, err := store.New(cfg.Summaries.Dir)
	if err != nil {
		return nil, err
	}
	a.Store = st
	idx, err := st.LoadIndex()
	if err != nil {
		return nil, err
	}
	slog.Info("Loaded processed-book index", "books", idx.Len(), "dir", cfg.Summaries.Dir)

	if cfg.Cache.DBFile != "" {
		if dir := filepath.Dir(cfg.Cache.DBFile); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("create cache dir: %w", err)
			}
		}
		db, err := cache.Open(cfg.Cache.DBFile, cfg.Cache.TTL)
		if err != nil {
			return nil, fmt.Errorf("open cache: %w", err)
		}
		a.Cache = db
		a.closers = append(a.closers, db.Close)
	}

	breaker := upstream.BreakerSettings{
		ConsecutiveFailures: cfg.Breaker.ConsecutiveFailures,
		Cooldown:            cfg.Breaker.Cooldown,
	}
	a.GoogleBooks = googlebooks.New(cfg.GoogleBooks.APIKey,
		googlebooks.WithBaseURL(cfg.GoogleBooks.BaseURL),
		googlebooks.WithCache(a.Cache),
		googlebooks.WithUpstream(upstream.New("googlebooks",
			upstream.WithRateLimit(cfg.GoogleBooks.RateLimit, cfg.GoogleBooks.Burst),
			upstream.WithTimeout(cfg.HTTP.Timeout),
			upstream.WithBreaker(breaker),
		)),
	)
	a.OpenLibrary = openlibrary.New(
		openlibrary.WithBaseURL(cfg.OpenLibrary.BaseURL),
		openlibrary.WithCoversBaseURL(cfg.OpenLibrary.CoversBaseURL),
		openlibrary.WithAuthorConcurrency(cfg.OpenLibrary.AuthorConcurrency),
		openlibrary.WithCache(a.Cache),
		openlibrary.WithUpstream(upstream.New("openlibrary",
			upstream.WithRateLimit(cfg.OpenLibrary.RateLimit, cfg.OpenLibrary.Burst),
			upstream.WithTimeout(cfg.HTTP.Timeout),
			upstream.WithBreaker(breaker),
		)),
	)

	completer := o.completer
	if completer == nil && o.searchOnly {
		completer = llm.CompleterFunc(func(context.Context, llm.Request) (string, error) {
			return "", ErrNoBackend
		})
	}
	if completer == nil {
		c, closeFn, err := llm.New(ctx, cfg.LLM)
		if err != nil {
			return nil, err
		}
		completer = c
		a.closers = append(a.closers, closeFn)
	}

	a.Hub = events.NewHub(nil)
	svcOpts := []summary.Option{
		summary.WithPublisher(a.Hub),
		summary.WithAffiliateTag(cfg.AmazonTag),
	}
	if cfg.Covers.Enabled {
		svcOpts = append(svcOpts, summary.WithCoverFetcher(covers.NewFetcher(cfg.Summaries.Dir,
			covers.WithMaxWidth(cfg.Covers.MaxWidth),
			covers.WithRefresh(cfg.Covers.Refresh),
			covers.WithAllowedHosts(hostOf(cfg.OpenLibrary.CoversBaseURL)),
			covers.WithAllowedHosts(cfg.Covers.AllowedHosts...),
			covers.WithUpstreamOptions(
				upstream.WithTimeout(cfg.HTTP.Timeout),
				upstream.WithBreaker(breaker),
			),
		)))
	}
	a.Summaries = summary.NewService(st, idx, completer, svcOpts...)

	a.Books = aggregate.New(
		[]book.Provider{a.GoogleBooks, a.OpenLibrary},
		a.GoogleBooks,
		a.Summaries.HasSummary,
	)

	ok = true
	return a, nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// Handler returns the HTTP API.
func (a *App) Handler() http.Handler {
	return api.NewServer(a.Books, a.Summaries, api.Config{
		CORSOrigins: a.Config.Server.CORSOrigins,
		Events:      a.Hub,
	}).Handler()
}

// Close releases every resource in reverse order of acquisition.
func (a *App) Close() error {
	if a.Hub != nil {
		a.Hub.Close()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
