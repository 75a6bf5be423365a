package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/shelfnotes/internal/config"
	"github.com/lepinkainen/shelfnotes/internal/llm"
	"github.com/lepinkainen/shelfnotes/internal/testutil"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	testutil.ResetViper(t)
	config.SetDefaults()
	cfg, err := config.Load()
	require.NoError(t, err)

	env := testutil.NewTestEnv(t)
	cfg.Summaries.Dir = env.Path("summaries")
	cfg.Cache.DBFile = env.Path("cache", "cache.db")
	cfg.Covers.Enabled = false
	return cfg
}

func TestNewWiresComponents(t *testing.T) {
	cfg := testConfig(t)
	completer := llm.CompleterFunc(func(context.Context, llm.Request) (string, error) {
		return "## Short Summary\nS\n## Detailed Summary\nD\n## Key Takeaways\n- K", nil
	})

	a, err := New(context.Background(), cfg, WithCompleter(completer))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.NotNil(t, a.Cache)
	assert.FileExists(t, cfg.Cache.DBFile)
	assert.Equal(t, cfg.Summaries.Dir, a.Store.Root())

	srv := testutil.NewIPv4Server(t, a.Handler())
	resp, err := http.Get(srv.URL + "/api/book/summary?title=" + url.QueryEscape("Deep Work") + "&bookId=dw1")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "deep-work", body["slug"])
	assert.FileExists(t, filepath.Join(cfg.Summaries.Dir, "deep-work.md"))
	assert.True(t, a.Summaries.HasSummary("dw1"))
}

func TestNewRequiresBackendCredentials(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.OpenAIAPIKey = ""

	_, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}

func TestCloseIsIdempotent(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(context.Background(), cfg, WithCompleter(llm.CompleterFunc(func(context.Context, llm.Request) (string, error) {
		return "", nil
	})))
	require.NoError(t, err)

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
}

func TestSearchOnlySkipsBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.OpenAIAPIKey = ""

	a, err := New(context.Background(), cfg, WithSearchOnly())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	_, err = a.Summaries.Translate(context.Background(), "hello", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoBackend)
}

func TestSummaryDoesNotFetchArbitraryThumbnailURL(t *testing.T) {
	cfg := testConfig(t)
	cfg.Covers.Enabled = true

	var internalHits atomic.Int32
	internal := testutil.NewIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		internalHits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))

	completer := llm.CompleterFunc(func(context.Context, llm.Request) (string, error) {
		return "## Short Summary\nS\n## Detailed Summary\nD\n## Key Takeaways\n- K", nil
	})
	a, err := New(context.Background(), cfg, WithCompleter(completer))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	srv := testutil.NewIPv4Server(t, a.Handler())
	q := url.Values{}
	q.Set("title", "Deep Work")
	q.Set("thumbnailUrl", internal.URL+"/admin")
	resp, err := http.Get(srv.URL + "/api/book/summary?" + q.Encode())
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Zero(t, internalHits.Load())
	assert.NoFileExists(t, filepath.Join(cfg.Summaries.Dir, "covers", "deep-work.jpg"))
}
