package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"
	"github.com/lepinkainen/humanlog"
	"github.com/spf13/viper"

	"github.com/lepinkainen/shelfnotes/internal/app"
	"github.com/lepinkainen/shelfnotes/internal/book"
	"github.com/lepinkainen/shelfnotes/internal/cache"
	"github.com/lepinkainen/shelfnotes/internal/config"
	"github.com/lepinkainen/shelfnotes/internal/store"
	"github.com/lepinkainen/shelfnotes/internal/summary"
	"github.com/lepinkainen/shelfnotes/internal/tui"
)

var (
	newApp     = app.New
	selectBook = tui.Select
)

var stdout io.Writer = os.Stdout

var signalContext = func() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// CLI represents the complete command structure for the shelfnotes application
type CLI struct {
	Verbose bool   `short:"v" help:"Enable debug logging"`
	Config  string `help:"Path to a YAML config file (defaults to ./config.yaml when present)"`

	SummariesDir string `help:"Directory holding summaries (overrides summaries.dir)"`
	CacheDBFile  string `help:"Path to cache SQLite database file (overrides cache.dbfile)"`
	CacheTTL     string `help:"Cache time-to-live duration, e.g. 720h (overrides cache.ttl)"`

	Serve      ServeCmd      `cmd:"" help:"Run the HTTP API"`
	Search     SearchCmd     `cmd:"" help:"Search every metadata provider"`
	Summarize  SummarizeCmd  `cmd:"" help:"Fetch a cached summary or generate a new one"`
	Cache      CacheCmd      `cmd:"" help:"Manage the provider response cache"`
	Pending    PendingCmd    `cmd:"" help:"Inspect user-submitted summaries awaiting review"`
	InitConfig InitConfigCmd `cmd:"" name:"init-config" help:"Write a config file holding the defaults"`
}

// ServeCmd runs the HTTP server until SIGINT or SIGTERM.
type ServeCmd struct {
	Addr string `help:"Listen address (overrides server.addr)"`
}

// SearchCmd searches both providers.
type SearchCmd struct {
	Query string `arg:"" help:"Search terms"`
	Limit int    `short:"n" help:"Maximum number of results" default:"10"`
	JSON  bool   `help:"Print results as JSON"`
}

// SummarizeCmd fetches or generates one summary and prints its body.
type SummarizeCmd struct {
	Title    string   `arg:"" optional:"" help:"Book title"`
	Slug     string   `help:"Look up an existing summary by slug"`
	Authors  []string `short:"a" help:"Book authors"`
	Language string   `short:"l" help:"Summary language" default:"english"`
	BookID   string   `help:"Provider book ID to record in the processed index"`
	Pick     bool     `short:"p" help:"Search providers for the title and pick the book interactively"`
}

// CacheCmd groups cache maintenance subcommands.
type CacheCmd struct {
	Invalidate cache.InvalidateCacheCmd `cmd:"" help:"Remove every cached response of one provider"`
	Prune      cache.PruneCacheCmd      `cmd:"" help:"Remove expired cached responses"`
}

// PendingCmd groups pending-submission subcommands.
type PendingCmd struct {
	List PendingListCmd `cmd:"" help:"List pending submissions"`
	Show PendingShowCmd `cmd:"" help:"Print one pending submission"`
}

// PendingListCmd prints the pending submissions.
type PendingListCmd struct{}

// PendingShowCmd prints a pending submission as stored on disk.
type PendingShowCmd struct {
	Slug     string `arg:"" help:"Submission slug"`
	Language string `short:"l" help:"Submission language" default:"english"`
}

// InitConfigCmd writes the default configuration to a file.
type InitConfigCmd struct {
	Path string `arg:"" optional:"" help:"Destination file" default:"config.yaml"`
}

// Execute runs the Kong-based CLI
func Execute() {
	initLogging(false)

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("shelfnotes"),
		kong.Description("Book search and AI summary service."),
		kong.UsageOnError(),
	)

	if cli.Verbose {
		initLogging(true)
	}
	if err := initConfig(cli.Config); err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	updateGlobalConfig(&cli)

	if err := ctx.Run(); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

// initLogging installs the humanlog handler on stderr; stdout carries command output.
func initLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := humanlog.NewHandler(os.Stderr, &humanlog.Options{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}

// initConfig registers defaults and environment bindings, then reads the
// config file. Only an explicitly named file is required to exist.
func initConfig(path string) error {
	config.SetDefaults()
	if err := config.BindEnv(); err != nil {
		return err
	}

	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			slog.Debug("No config file found, using defaults and environment")
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	slog.Debug("Loaded config file", "file", viper.ConfigFileUsed())
	return nil
}

// updateGlobalConfig applies the global flags that were actually given.
func updateGlobalConfig(cli *CLI) {
	if cli.SummariesDir != "" {
		viper.Set("summaries.dir", cli.SummariesDir)
	}
	if cli.CacheDBFile != "" {
		viper.Set("cache.dbfile", cli.CacheDBFile)
	}
	if cli.CacheTTL != "" {
		viper.Set("cache.ttl", cli.CacheTTL)
	}
}

func openApp(ctx context.Context, opts ...app.Option) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg, opts...)
}

func closeApp(a *app.App) {
	if err := a.Close(); err != nil {
		slog.Warn("Failed to release resources", "error", err)
	}
}

func (s *ServeCmd) Run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if s.Addr != "" {
		cfg.Server.Addr = s.Addr
	}

	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeApp(a)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           a.Handler(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", cfg.Server.Addr, "summaries", cfg.Summaries.Dir)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down HTTP server", "timeout", cfg.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *SearchCmd) Run() error {
	ctx := context.Background()
	a, err := openApp(ctx, app.WithSearchOnly())
	if err != nil {
		return err
	}
	defer closeApp(a)

	results := a.Books.SearchAll(ctx, s.Query, s.Limit)
	if s.JSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	printBooks(stdout, results)
	return nil
}

func printBooks(w io.Writer, books []book.Book) {
	if len(books) == 0 {
		_, _ = fmt.Fprintln(w, "No results.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "SOURCE\tID\tTITLE\tAUTHORS\tPUBLISHED")
	for _, b := range books {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			b.Source, b.ID, b.Title, strings.Join(b.Authors, ", "), b.PublishedDate)
	}
	_ = tw.Flush()
}

func (s *SummarizeCmd) Run() error {
	if s.Title == "" && s.Slug == "" {
		return fmt.Errorf("a title or --slug is required")
	}
	if s.Pick && s.Title == "" {
		return fmt.Errorf("--pick needs a title to search for")
	}

	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp(a)

	req := summary.Request{
		Title:    s.Title,
		Slug:     s.Slug,
		Authors:  s.Authors,
		Language: s.Language,
		BookID:   s.BookID,
	}

	if s.Pick {
		picked, err := selectBook(s.Title, a.Books.SearchAll(ctx, s.Title, 10))
		if err != nil {
			return fmt.Errorf("book selection: %w", err)
		}
		switch picked.Action {
		case tui.ActionSelected:
			req = requestFromBook(*picked.Selection, s.Language)
		case tui.ActionStopped:
			slog.Info("Selection stopped")
			return nil
		default:
			slog.Info("No book selected", "query", s.Title)
			return nil
		}
	}

	start := time.Now()
	res, err := a.Summaries.Summarize(ctx, req)
	if err != nil {
		return err
	}
	slog.Info("Summary ready", "slug", res.Slug, "language", res.Language, "cached", res.Cached, "duration", time.Since(start).Round(time.Millisecond))
	_, err = fmt.Fprintln(stdout, res.Summary)
	return err
}

func requestFromBook(b book.Book, language string) summary.Request {
	category := ""
	if len(b.Categories) > 0 {
		category = b.Categories[0]
	}
	return summary.Request{
		Title:         b.Title,
		Authors:       b.Authors,
		Language:      language,
		Description:   b.Description,
		Category:      category,
		BookID:        b.ID,
		ThumbnailURL:  b.ThumbnailURL,
		PublishedDate: b.PublishedDate,
	}
}

func (p *PendingListCmd) Run() error {
	st, err := store.New(viper.GetString("summaries.dir"))
	if err != nil {
		return err
	}
	entries, err := st.ListPending()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(stdout, "No pending submissions.")
		return nil
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "FILE\tTITLE\tAUTHOR\tLANGUAGE\tSUBMITTED")
	for _, e := range entries {
		m := e.Document.Meta
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.File, m.Title, m.Author, m.Language, m.PubDate)
	}
	return tw.Flush()
}

func (p *PendingShowCmd) Run() error {
	st, err := store.New(viper.GetString("summaries.dir"))
	if err != nil {
		return err
	}
	doc, found, err := st.ReadPending(p.Slug, p.Language)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("no pending submission %s (%s)", p.Slug, p.Language)
	}
	_, err = stdout.Write(doc.Raw)
	return err
}

func (c *InitConfigCmd) Run() error {
	if err := viper.SafeWriteConfigAs(c.Path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	slog.Info("Wrote default config", "file", c.Path)
	return nil
}
