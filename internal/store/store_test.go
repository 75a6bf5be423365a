package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/lepinkainen/shelfnotes/internal/book"
	apperrors "github.com/lepinkainen/shelfnotes/internal/errors"
	"github.com/lepinkainen/shelfnotes/internal/frontmatter"
	"github.com/lepinkainen/shelfnotes/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *testutil.TestEnv) {
	t.Helper()
	env := testutil.NewTestEnv(t)
	s, err := New(env.Path("summaries"))
	require.NoError(t, err)
	return s, env
}

func newDoc(t *testing.T, title, language, body string) *Document {
	t.Helper()
	doc, err := NewDocument(frontmatter.Meta{
		Title:    title,
		Author:   "Cal Newport",
		PubDate:  "2026-10-19",
		Language: language,
	}, body)
	require.NoError(t, err)
	return doc
}

func TestFileNameLanguageSuffix(t *testing.T) {
	assert.Equal(t, "deep-work.md", FileName("deep-work", "english"))
	assert.Equal(t, "deep-work.md", FileName("deep-work", ""))
	assert.Equal(t, "deep-work-spanish.md", FileName("deep-work", "spanish"))
	assert.Equal(t, "deep-work-farsi.md", FileName("deep-work", "farsi"))
}

func TestWriteReadRoundTrip(t *testing.T) {
	s, env := newTestStore(t)

	for _, lang := range []string{"english", "spanish", "japanese"} {
		t.Run(lang, func(t *testing.T) {
			doc := newDoc(t, "Deep Work", lang, "## Intro\n\nBody in "+lang)
			require.NoError(t, s.Write("deep-work", lang, doc))

			got, found, err := s.Read("deep-work", lang)
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, doc.Raw, got.Raw)
			assert.Equal(t, doc.Meta, got.Meta)
			assert.Equal(t, doc.Body, got.Body)

			env.RequireFileExists(filepath.Join("summaries", FileName("deep-work", lang)))
		})
	}

	assert.ElementsMatch(t,
		[]string{"deep-work.md", "deep-work-spanish.md", "deep-work-japanese.md"},
		env.ListFiles("summaries"))
}

func TestReadMissing(t *testing.T) {
	s, _ := newTestStore(t)

	doc, found, err := s.Read("nothing-here", "english")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, doc)
}

func TestReadCorruptDocument(t *testing.T) {
	s, env := newTestStore(t)
	env.WriteFileString("summaries/broken.md", "no front matter at all")

	_, _, err := s.Read("broken", "english")
	require.Error(t, err)
	assert.True(t, apperrors.IsPersistenceError(err))
}

func TestRejectsPathTraversal(t *testing.T) {
	s, _ := newTestStore(t)
	doc := newDoc(t, "x", "english", "x")

	for _, slug := range []string{"", "..", "../etc", "a/b", `a\b`} {
		err := s.Write(slug, "english", doc)
		require.Error(t, err, "slug %q", slug)
		assert.True(t, apperrors.IsValidationError(err))
	}

	err := s.Write("ok", "../x", doc)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidationError(err))
}

func TestWritePendingUsesSeparatePartition(t *testing.T) {
	s, env := newTestStore(t)
	doc := newDoc(t, "Deep Work", "english", "pending body")

	require.NoError(t, s.WritePending("deep-work", "english", doc))

	env.RequireFileExists("summaries/pending/deep-work.md")
	assert.False(t, s.Exists("deep-work", "english"))

	got, found, err := s.ReadPending("deep-work", "english")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "pending body", got.Body)

	entries, err := s.ListPending()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "deep-work.md", entries[0].File)
	assert.Equal(t, "Deep Work", entries[0].Document.Meta.Title)
}

func TestListPendingEmpty(t *testing.T) {
	s, _ := newTestStore(t)

	entries, err := s.ListPending()
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestListAvailableLanguages(t *testing.T) {
	s, _ := newTestStore(t)
	supported := []string{"english", "spanish", "french", "german"}

	assert.Equal(t, []string{}, s.ListAvailableLanguages("deep-work", supported))

	require.NoError(t, s.Write("deep-work", "german", newDoc(t, "Deep Work", "german", "x")))
	require.NoError(t, s.Write("deep-work", "english", newDoc(t, "Deep Work", "english", "x")))

	assert.Equal(t, []string{"english", "german"}, s.ListAvailableLanguages("deep-work", supported))
}

func TestIndexUpsertAndReload(t *testing.T) {
	s, env := newTestStore(t)

	idx, err := s.LoadIndex()
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Len())

	rec := book.ProcessedRecord{
		Title:         "Deep Work",
		Author:        "Cal Newport",
		Slug:          "deep-work",
		DateProcessed: "2026-10-19T10:00:00Z",
	}
	require.NoError(t, s.UpsertProcessedRecord(idx, "dw1", rec))

	got, ok := idx.Get("dw1")
	require.True(t, ok)
	assert.Equal(t, rec, got)
	env.RequireFileExists("summaries/" + IndexFileName)

	reloaded, err := s.LoadIndex()
	require.NoError(t, err)
	assert.True(t, reloaded.Has("dw1"))
	assert.False(t, reloaded.Has("other"))

	rec.Slug = "deep-work-2"
	require.NoError(t, s.UpsertProcessedRecord(idx, "dw1", rec))
	reloaded, err = s.LoadIndex()
	require.NoError(t, err)
	got, _ = reloaded.Get("dw1")
	assert.Equal(t, "deep-work-2", got.Slug)
}

func TestUpsertRequiresBookID(t *testing.T) {
	s, _ := newTestStore(t)
	err := s.UpsertProcessedRecord(NewIndex(), "", book.ProcessedRecord{})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidationError(err))
}

func TestLoadIndexCorrupt(t *testing.T) {
	s, env := newTestStore(t)
	env.WriteFileString("summaries/"+IndexFileName, "{broken")

	_, err := s.LoadIndex()
	require.Error(t, err)
	assert.True(t, apperrors.IsPersistenceError(err))
}

func TestConcurrentIndexUpdatesAreNotLost(t *testing.T) {
	s, _ := newTestStore(t)
	idx, err := s.LoadIndex()
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("book-%d", i)
			assert.NoError(t, s.UpsertProcessedRecord(idx, id, book.ProcessedRecord{Slug: id}))
		}(i)
	}
	wg.Wait()

	reloaded, err := s.LoadIndex()
	require.NoError(t, err)
	assert.Equal(t, 20, reloaded.Len())
}

func TestConcurrentWritesSameKeyLeaveOneCompleteFile(t *testing.T) {
	s, _ := newTestStore(t)

	docs := make([]*Document, 10)
	for i := range docs {
		docs[i] = newDoc(t, "Deep Work", "english", fmt.Sprintf("version %d", i))
	}

	var wg sync.WaitGroup
	for _, doc := range docs {
		wg.Add(1)
		go func(doc *Document) {
			defer wg.Done()
			assert.NoError(t, s.Write("deep-work", "english", doc))
		}(doc)
	}
	wg.Wait()

	got, found, err := s.Read("deep-work", "english")
	require.NoError(t, err)
	require.True(t, found)

	matched := false
	for _, doc := range docs {
		if string(doc.Raw) == string(got.Raw) {
			matched = true
		}
	}
	assert.True(t, matched, "stored file must equal one of the written documents")

	entries, err := os.ReadDir(s.Root())
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files may remain")
}

func TestIncrementViews(t *testing.T) {
	s, _ := newTestStore(t)

	n, err := s.IncrementViews("deep-work")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.IncrementViews("deep-work")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.IncrementViews("atomic-habits")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	views, err := s.Views("deep-work")
	require.NoError(t, err)
	assert.Equal(t, 2, views)

	_, err = s.IncrementViews("")
	require.Error(t, err)
}

func TestKeyedMutexReleasesKeys(t *testing.T) {
	k := newKeyedMutex()
	unlock := k.Lock("a")
	unlock()
	assert.Empty(t, k.locks)
}
