package library

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackzampolin/synopsis/internal/book"
	"github.com/jackzampolin/synopsis/internal/completion"
	"github.com/jackzampolin/synopsis/internal/pipeline"
	"github.com/jackzampolin/synopsis/internal/report"
	"github.com/jackzampolin/synopsis/internal/sink"
	"github.com/jackzampolin/synopsis/internal/source"
	"github.com/jackzampolin/synopsis/internal/tokens"
)

func stubService() completion.Service {
	return completion.Func(func(ctx context.Context, req *completion.Request) (*completion.Response, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		switch req.Stage {
		case completion.StageExtract:
			raw := `{"characters":[],"tone_mood":"calm"}`
			return &completion.Response{Text: raw, JSON: json.RawMessage(raw)}, nil
		case completion.StageContext:
			raw := `{"story_so_far":"Things happened in ` + req.ChapterID + `.","themes_identified":["patience"]}`
			return &completion.Response{Text: raw, JSON: json.RawMessage(raw)}, nil
		}
		return &completion.Response{Text: req.Stage + " of " + req.ChapterID}, nil
	})
}

func newRunner(t *testing.T) *Runner {
	t.Helper()
	p, err := pipeline.New(pipeline.DefaultSettings(), pipeline.Deps{
		Service: stubService(),
		Counter: tokens.WordCounter{},
	})
	if err != nil {
		t.Fatal(err)
	}
	return &Runner{
		Pipeline: p,
		Loader:   &source.Loader{Classifier: source.DefaultClassifier()},
	}
}

func writeBook(t *testing.T, dir string, chapters int) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	meta := `{"title":"` + filepath.Base(dir) + `","authors":["Someone"]}`
	if err := os.WriteFile(filepath.Join(dir, "book.metadata"), []byte(meta), 0o644); err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= chapters; i++ {
		text := "Chapter Title\n\n" + strings.TrimSpace(strings.Repeat("word ", 150))
		name := filepath.Join(dir, "chapter_0"+string(rune('0'+i))+".txt")
		if err := os.WriteFile(name, []byte(text), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestRunAll(t *testing.T) {
	lib := t.TempDir()
	writeBook(t, filepath.Join(lib, "alpha"), 2)
	writeBook(t, filepath.Join(lib, "beta"), 1)
	// Metadata only: discovered as a book, fails to load.
	writeBook(t, filepath.Join(lib, "gamma"), 0)
	if err := os.MkdirAll(filepath.Join(lib, "not-a-book"), 0o755); err != nil {
		t.Fatal(err)
	}

	r := newRunner(t)
	r.Concurrency = 2
	rep, err := r.RunAll(context.Background(), lib)
	if err != nil {
		t.Fatalf("RunAll() error = %v", err)
	}
	if len(rep.Books) != 3 {
		t.Fatalf("books = %d, want 3", len(rep.Books))
	}
	if rep.Failed != 1 {
		t.Errorf("failed = %d, want 1", rep.Failed)
	}
	if rep.Books[0].BookID != "alpha" || rep.Books[0].Persisted != 2 {
		t.Errorf("alpha = %+v", rep.Books[0])
	}
	if !strings.Contains(rep.Books[2].Error, "no chapter") {
		t.Errorf("gamma error = %q", rep.Books[2].Error)
	}
	for _, name := range []string{"alpha", "beta"} {
		path := filepath.Join(lib, name, sink.DefaultDirName, sink.ContextFileName)
		if _, err := os.Stat(path); err != nil {
			t.Errorf("%s: final context not written: %v", name, err)
		}
	}
}

func TestRunAllEmptyLibrary(t *testing.T) {
	if _, err := newRunner(t).RunAll(context.Background(), t.TempDir()); err == nil {
		t.Error("expected error for a library with no books")
	}
}

type staticCheckpoints map[string]book.RollingContext

func (s staticCheckpoints) Checkpoints(context.Context, *book.Book) (map[string]book.RollingContext, error) {
	return s, nil
}

func TestRunBookResumes(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "alpha")
	writeBook(t, dir, 2)

	rc, err := book.ParseRollingContext(book.Fiction, []byte(`{"story_so_far":"Earlier."}`))
	if err != nil {
		t.Fatal(err)
	}
	r := newRunner(t)
	r.Checkpoints = staticCheckpoints{"chapter_01": rc}

	rep, err := r.RunBook(context.Background(), dir)
	if err != nil {
		t.Fatalf("RunBook() error = %v", err)
	}
	if !rep.Chapters[0].Resumed || rep.Chapters[1].Resumed || rep.Persisted != 2 {
		t.Errorf("report = %+v", rep.Chapters)
	}
	if _, err := os.Stat(filepath.Join(dir, sink.DefaultDirName, "chapter_01_summary.txt")); !os.IsNotExist(err) {
		t.Error("a restored chapter should not be rewritten")
	}
	if _, err := os.Stat(filepath.Join(dir, sink.DefaultDirName, "chapter_02_summary.txt")); err != nil {
		t.Errorf("chapter 2 not written: %v", err)
	}
}

func TestWatcherBookFor(t *testing.T) {
	w := &Watcher{}
	lib := filepath.Join(string(filepath.Separator), "lib")
	ignore := []string{sink.DefaultDirName}
	tests := []struct {
		name string
		path string
		want string
		ok   bool
	}{
		{"book folder", "/lib/alpha", "/lib/alpha", true},
		{"chapter", "/lib/alpha/ch1.txt", "/lib/alpha", true},
		{"metadata", "/lib/alpha/book.metadata", "/lib/alpha", true},
		{"output dir", "/lib/alpha/summaries", "", false},
		{"other file", "/lib/alpha/cover.jpg", "", false},
		{"hidden", "/lib/.trash", "", false},
		{"nested", "/lib/alpha/summaries/x_summary.txt", "", false},
		{"outside", "/elsewhere/x.txt", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := w.bookFor(lib, filepath.FromSlash(tt.path), ignore)
			if ok != tt.ok || got != filepath.FromSlash(tt.want) {
				t.Errorf("bookFor(%s) = %q, %v; want %q, %v", tt.path, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestWatcherRunsNewBook(t *testing.T) {
	lib := t.TempDir()
	staging := t.TempDir()
	writeBook(t, filepath.Join(staging, "delta"), 1)

	var (
		mu      sync.Mutex
		reports []*report.Book
	)
	done := make(chan struct{}, 1)
	w := &Watcher{
		Runner:   newRunner(t),
		Debounce: 100 * time.Millisecond,
		OnReport: func(rep *report.Book, err error) {
			if err != nil {
				t.Errorf("book run error: %v", err)
			}
			mu.Lock()
			reports = append(reports, rep)
			mu.Unlock()
			select {
			case done <- struct{}{}:
			default:
			}
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- w.Watch(ctx, lib) }()

	// Give the watcher time to register before the book appears.
	time.Sleep(200 * time.Millisecond)
	if err := os.Rename(filepath.Join(staging, "delta"), filepath.Join(lib, "delta")); err != nil {
		t.Fatal(err)
	}

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("watcher never processed the new book")
	}
	cancel()
	if err := <-errc; err != nil {
		t.Errorf("Watch() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(reports) == 0 || reports[0] == nil || reports[0].BookID != "delta" {
		t.Fatalf("reports = %+v", reports)
	}
	if _, err := os.Stat(filepath.Join(lib, "delta", sink.DefaultDirName, "chapter_01_summary.txt")); err != nil {
		t.Errorf("summary not written: %v", err)
	}
}
