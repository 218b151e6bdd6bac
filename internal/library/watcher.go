package library

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jackzampolin/synopsis/internal/prompts"
	"github.com/jackzampolin/synopsis/internal/report"
	"github.com/jackzampolin/synopsis/internal/sink"
	"github.com/jackzampolin/synopsis/internal/source"
)

// DefaultDebounce is how long a book folder must be quiet before it runs.
const DefaultDebounce = 2 * time.Second

// Watcher runs books as they appear or change in a library directory.
type Watcher struct {
	Runner   *Runner
	Debounce time.Duration
	// InitialScan queues every existing book when watching starts.
	InitialScan bool
	// Ignore lists sub-directory names inside a book whose changes are
	// ignored. Defaults to the output and prompt override directories.
	Ignore []string
	// OnReport is called after each book run.
	OnReport func(rep *report.Book, err error)
	Logger   *slog.Logger
}

func (w *Watcher) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}

// Watch blocks until ctx is done. Books are processed one at a time, each
// once its folder has been quiet for the debounce period.
func (w *Watcher) Watch(ctx context.Context, libraryDir string) error {
	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	ignore := w.Ignore
	if ignore == nil {
		ignore = []string{sink.DefaultDirName, prompts.OverrideDirName}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(libraryDir); err != nil {
		return fmt.Errorf("watch %s: %w", libraryDir, err)
	}
	existing, err := source.Discover(libraryDir)
	if err != nil {
		return err
	}
	for _, dir := range existing {
		if err := fsw.Add(dir); err != nil {
			w.logger().Warn("failed to watch book", "dir", dir, "error", err)
		}
	}

	q := newQueue()
	if w.InitialScan {
		for _, dir := range existing {
			q.touch(dir, time.Time{})
		}
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.work(ctx, q)
	}()
	defer wg.Wait()
	defer q.close()

	w.logger().Info("watching library", "dir", libraryDir, "books", len(existing), "debounce", debounce)

	tick := time.NewTicker(debounce / 2)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			bookDir, ok := w.bookFor(libraryDir, ev.Name, ignore)
			if !ok {
				continue
			}
			if bookDir == ev.Name && ev.Has(fsnotify.Create) {
				if info, err := os.Stat(bookDir); err == nil && info.IsDir() {
					if err := fsw.Add(bookDir); err != nil {
						w.logger().Warn("failed to watch book", "dir", bookDir, "error", err)
					}
				}
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) || ev.Has(fsnotify.Rename) {
				q.touch(bookDir, time.Now())
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger().Warn("watcher error", "error", err)
		case now := <-tick.C:
			q.release(now.Add(-debounce))
		}
	}
}

// bookFor maps a changed path to the book folder it belongs to.
func (w *Watcher) bookFor(libraryDir, name string, ignore []string) (string, bool) {
	rel, err := filepath.Rel(libraryDir, name)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	parts := strings.Split(rel, string(filepath.Separator))
	if strings.HasPrefix(parts[0], ".") {
		return "", false
	}
	bookDir := filepath.Join(libraryDir, parts[0])
	if len(parts) == 1 {
		return bookDir, true
	}
	if len(parts) > 2 {
		return "", false
	}
	file := parts[1]
	for _, skip := range ignore {
		if file == skip {
			return "", false
		}
	}
	if strings.HasPrefix(file, ".") {
		return "", false
	}
	switch filepath.Ext(file) {
	case source.ChapterExt, source.MetadataExt:
		return bookDir, true
	}
	return "", false
}

func (w *Watcher) work(ctx context.Context, q *queue) {
	for dir := range q.ready {
		if ctx.Err() != nil {
			return
		}
		if !source.IsBookDir(dir) {
			continue
		}
		rep, err := w.Runner.RunBook(ctx, dir)
		if err != nil {
			w.logger().Error("book run failed", "dir", dir, "error", err)
		}
		if w.OnReport != nil {
			w.OnReport(rep, err)
		}
	}
}

// queue debounces book folders: a folder is released once it has been
// quiet since the cutoff.
type queue struct {
	mu      sync.Mutex
	pending map[string]time.Time
	ready   chan string
	closed  bool
}

func newQueue() *queue {
	return &queue{pending: make(map[string]time.Time), ready: make(chan string, 64)}
}

func (q *queue) touch(dir string, at time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending[dir] = at
}

func (q *queue) release(cutoff time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	for dir, at := range q.pending {
		if at.After(cutoff) {
			continue
		}
		select {
		case q.ready <- dir:
			delete(q.pending, dir)
		default:
			// Worker is behind; try again next tick.
		}
	}
}

func (q *queue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ready)
	}
}
