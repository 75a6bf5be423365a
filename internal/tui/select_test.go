package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lepinkainen/shelfnotes/internal/book"
)

func testBooks() []book.Book {
	pages := 296
	rating := 4.2
	count := 1520
	return []book.Book{
		{Source: book.SourceGoogleBooks, ID: "g1", Title: "Deep Work", Authors: []string{"Cal Newport"}, PublishedDate: "2016-01-05", PageCount: &pages, Language: "en", AverageRating: &rating, RatingsCount: &count},
		{Source: book.SourceOpenLibrary, ID: "OL1W", Title: "Digital Minimalism", Authors: []string{"Cal Newport"}, PublishedDate: "2019"},
	}
}

func stubProgram(t *testing.T, fn func(tea.Model) (tea.Model, error)) {
	t.Helper()
	orig := runProgram
	runProgram = fn
	t.Cleanup(func() { runProgram = orig })
}

func TestSelectSkipsWhenNothingToShow(t *testing.T) {
	stubProgram(t, func(tea.Model) (tea.Model, error) {
		t.Fatalf("program must not run without items")
		return nil, nil
	})

	res, err := Select("nothing", []book.Book{{ID: "x"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Action != ActionSkipped {
		t.Errorf("Action = %v, want ActionSkipped", res.Action)
	}
}

func TestSelectReturnsChosenBook(t *testing.T) {
	stubProgram(t, func(m tea.Model) (tea.Model, error) {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		return m, nil
	})

	res, err := Select("newport", testBooks())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Action != ActionSelected {
		t.Fatalf("Action = %v, want ActionSelected", res.Action)
	}
	if res.Selection == nil || res.Selection.ID != "OL1W" {
		t.Errorf("Selection = %+v, want OL1W", res.Selection)
	}
}

func TestSelectKeyActions(t *testing.T) {
	tests := []struct {
		key  tea.KeyMsg
		want SelectionAction
	}{
		{key: tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")}, want: ActionSkipped},
		{key: tea.KeyMsg{Type: tea.KeyEsc}, want: ActionSkipped},
		{key: tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")}, want: ActionStopped},
		{key: tea.KeyMsg{Type: tea.KeyCtrlC}, want: ActionStopped},
	}

	for _, tt := range tests {
		t.Run(tt.key.String(), func(t *testing.T) {
			m := newModel("q", []bookItem{{Book: testBooks()[0]}})
			_, cmd := m.Update(tt.key)
			if cmd == nil {
				t.Fatalf("expected quit command")
			}
			if m.result.Action != tt.want {
				t.Errorf("Action = %v, want %v", m.result.Action, tt.want)
			}
		})
	}
}

func TestSelectPropagatesProgramError(t *testing.T) {
	stubProgram(t, func(tea.Model) (tea.Model, error) {
		return nil, errors.New("no tty")
	})

	if _, err := Select("x", testBooks()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestViewShowsQueryAndBooks(t *testing.T) {
	m := newModel("newport", []bookItem{{Book: testBooks()[0]}})
	view := m.View()

	for _, want := range []string{"Books matching: newport", "DEEP WORK (2016)", "[GOOGLE BOOKS]", "Cal Newport"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestFormatMetadata(t *testing.T) {
	got := formatMetadata(testBooks()[0], 0)
	if got != "296 pages | EN | 4.2/5 (1.5K ratings)" {
		t.Errorf("formatMetadata = %q", got)
	}
	if got := formatMetadata(book.Book{}, 0); got != "No metadata available" {
		t.Errorf("formatMetadata(empty) = %q", got)
	}
}

func TestYearAndTruncate(t *testing.T) {
	if year("2019-03-01") != "2019" || year("") != "n/a" || year("199") != "199" {
		t.Errorf("unexpected year parsing")
	}
	if got := truncate("a  long   description here", 10); got != "a long ..." {
		t.Errorf("truncate = %q", got)
	}
}

func TestClamp(t *testing.T) {
	if clamp(72, 30, 40) != 40 {
		t.Errorf("clamp must respect the minimum")
	}
	if clamp(72, 100, 40) != 72 {
		t.Errorf("clamp must not exceed the default")
	}
	if clamp(72, 50, 40) != 50 {
		t.Errorf("clamp must use available space")
	}
}
