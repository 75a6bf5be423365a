package googlebooks

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lepinkainen/shelfnotes/internal/book"
	"github.com/lepinkainen/shelfnotes/internal/cache"
	"github.com/lepinkainen/shelfnotes/internal/testutil"
	"github.com/lepinkainen/shelfnotes/internal/upstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchResponse = `{
	"totalItems": 3,
	"items": [
		{
			"id": "vol1",
			"volumeInfo": {
				"title": "Deep Work",
				"authors": ["Cal Newport"],
				"publishedDate": "2016-01-05",
				"description": "Rules for <b>focused</b> success.",
				"pageCount": 296,
				"categories": ["Business & Economics"],
				"averageRating": 4.5,
				"ratingsCount": 120,
				"language": "en",
				"imageLinks": {"thumbnail": "http://books.google.com/thumb1"}
			}
		},
		{
			"id": "vol2",
			"volumeInfo": {"authors": ["Nobody"]}
		},
		{
			"id": "vol3",
			"volumeInfo": {"title": "Anonymous Notes"}
		}
	]
}`

func newTestClient(t *testing.T, handler http.Handler, opts ...Option) *Client {
	t.Helper()
	server := testutil.NewIPv4Server(t, handler)
	u := upstream.New("googlebooks-test",
		upstream.WithHTTPClient(server.Client()),
		upstream.WithRateLimit(0, 1),
		upstream.WithBreaker(upstream.BreakerSettings{}),
	)
	return New("test-key", append([]Option{WithBaseURL(server.URL), WithUpstream(u)}, opts...)...)
}

func TestSearchMapsVolumesAndDropsUntitled(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/volumes", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "deep work", r.URL.Query().Get("q"))
		assert.Equal(t, "5", r.URL.Query().Get("maxResults"))
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		_, _ = w.Write([]byte(searchResponse))
	})
	client := newTestClient(t, mux)

	books := client.Search(context.Background(), "deep work", 5)
	require.Len(t, books, 2)

	first := books[0]
	assert.Equal(t, book.SourceGoogleBooks, first.Source)
	assert.Equal(t, "vol1", first.ID)
	assert.Equal(t, "Deep Work", first.Title)
	assert.Equal(t, []string{"Cal Newport"}, first.Authors)
	assert.Equal(t, "Rules for **focused** success.", first.Description)
	require.NotNil(t, first.PageCount)
	assert.Equal(t, 296, *first.PageCount)
	require.NotNil(t, first.AverageRating)
	assert.InDelta(t, 4.5, *first.AverageRating, 0.001)
	assert.Equal(t, "http://books.google.com/thumb1", first.ThumbnailURL)

	second := books[1]
	assert.Equal(t, []string{book.UnknownAuthor}, second.Authors)
	assert.Equal(t, book.DefaultLanguage, second.Language)
	assert.NotNil(t, second.Categories)
	assert.Nil(t, second.PageCount)

	for _, b := range books {
		assert.NotEmpty(t, b.Title)
	}
}

func TestSearchFailuresReturnEmpty(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{name: "server error", handler: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{name: "bad json", handler: func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("{"))
		}},
		{name: "no items", handler: func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"totalItems":0}`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.handler)
			books := client.Search(context.Background(), "x", 10)
			assert.NotNil(t, books)
			assert.Empty(t, books)
		})
	}
}

func TestSearchZeroLimitSkipsRequest(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))

	assert.Empty(t, client.Search(context.Background(), "x", 0))
	assert.Empty(t, client.Search(context.Background(), "  ", 10))
	assert.Equal(t, int32(0), calls.Load())
}

func TestDetails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/volumes/vol1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"vol1","volumeInfo":{"title":"Deep Work","subtitle":"Rules","authors":["Cal Newport"],"language":"en"}}`))
	})
	mux.HandleFunc("/volumes/untitled", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"untitled","volumeInfo":{}}`))
	})
	mux.HandleFunc("/volumes/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	client := newTestClient(t, mux)

	b, err := client.Details(context.Background(), "vol1", book.VariantWork)
	require.NoError(t, err)
	assert.Equal(t, "Deep Work", b.Title)
	assert.Equal(t, "Rules", b.Subtitle)

	for _, id := range []string{"missing", "untitled", "broken", ""} {
		_, err := client.Details(context.Background(), id, book.VariantWork)
		assert.True(t, errors.Is(err, book.ErrNotFound), "id %q: %v", id, err)
	}
}

func TestDetailsUsesResponseCache(t *testing.T) {
	env := testutil.NewTestEnv(t)
	db, err := cache.Open(filepath.Join(env.RootDir(), "cache.db"), time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var hits, misses atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/volumes/vol1", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"id":"vol1","volumeInfo":{"title":"Deep Work"}}`))
	})
	mux.HandleFunc("/volumes/gone", func(w http.ResponseWriter, r *http.Request) {
		misses.Add(1)
		http.NotFound(w, r)
	})
	client := newTestClient(t, mux, WithCache(db))

	for range 2 {
		b, err := client.Details(context.Background(), "vol1", book.VariantWork)
		require.NoError(t, err)
		assert.Equal(t, "Deep Work", b.Title)

		_, err = client.Details(context.Background(), "gone", book.VariantWork)
		require.ErrorIs(t, err, book.ErrNotFound)
	}
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, int32(1), misses.Load(), "not-found answers are cached")
}

func TestBrowseSubject(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/volumes", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "subject:business", q.Get("q"))
		assert.Equal(t, "24", q.Get("startIndex"))
		assert.Equal(t, "12", q.Get("maxResults"))
		assert.Equal(t, "relevance", q.Get("orderBy"))
		_, _ = w.Write([]byte(searchResponse))
	})
	client := newTestClient(t, mux)

	books, total, err := client.BrowseSubject(context.Background(), "business", 24, 12)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, books, 2)

	_, _, err = client.BrowseSubject(context.Background(), "", 0, 12)
	require.Error(t, err)
}

func TestBrowseSubjectError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))

	_, _, err := client.BrowseSubject(context.Background(), "fiction", 0, 12)
	require.Error(t, err)
	assert.True(t, upstream.IsStatus(err, http.StatusForbidden))
}
