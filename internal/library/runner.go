// Package library runs the pipeline over many books. Each book gets its
// own sequential run and rolling context; only books run in parallel.
package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/jackzampolin/synopsis/internal/book"
	"github.com/jackzampolin/synopsis/internal/pipeline"
	"github.com/jackzampolin/synopsis/internal/report"
	"github.com/jackzampolin/synopsis/internal/sink"
	"github.com/jackzampolin/synopsis/internal/source"
)

// DefaultConcurrency is the number of books processed at once.
const DefaultConcurrency = 2

// CheckpointSource supplies resume checkpoints for a book.
type CheckpointSource interface {
	Checkpoints(ctx context.Context, b *book.Book) (map[string]book.RollingContext, error)
}

// Runner loads books and runs them through a pipeline.
type Runner struct {
	Pipeline *pipeline.Pipeline
	Loader   *source.Loader
	// Sink returns the output for a book.
	Sink func(b *book.Book) sink.Sink
	// Checkpoints enables resume when set.
	Checkpoints CheckpointSource
	Concurrency int
	Logger      *slog.Logger
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// RunBook loads and processes the book at dir.
func (r *Runner) RunBook(ctx context.Context, dir string) (*report.Book, error) {
	loader := r.Loader
	if loader == nil {
		loader = &source.Loader{Classifier: source.DefaultClassifier(), Logger: r.Logger}
	}
	b, err := loader.Load(dir)
	if err != nil {
		return nil, err
	}

	var opts []pipeline.RunOption
	if r.Checkpoints != nil {
		cps, err := r.Checkpoints.Checkpoints(ctx, b)
		if err != nil {
			return nil, fmt.Errorf("load checkpoints for %s: %w", b.ID, err)
		}
		if len(cps) > 0 {
			r.logger().Info("resuming book", "book", b.ID, "checkpoints", len(cps))
		}
		opts = append(opts, pipeline.WithResume(cps))
	}

	var out sink.Sink = sink.NewFileSink("")
	if r.Sink != nil {
		out = r.Sink(b)
	}
	return r.Pipeline.Run(ctx, b, out, opts...)
}

// RunAll processes every book under libraryDir. A failing book is recorded
// in the report and does not stop the others; only cancellation does.
func (r *Runner) RunAll(ctx context.Context, libraryDir string) (*report.Library, error) {
	dirs, err := source.Discover(libraryDir)
	if err != nil {
		return nil, err
	}
	if len(dirs) == 0 {
		return nil, fmt.Errorf("no books found in %s", libraryDir)
	}

	limit := r.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	r.logger().Info("processing library", "dir", libraryDir, "books", len(dirs), "concurrency", limit)

	books := make([]report.Book, len(dirs))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, dir := range dirs {
		g.Go(func() error {
			if ctx.Err() != nil {
				books[i] = report.Book{Dir: dir, Halted: true, Error: ctx.Err().Error()}
				return nil
			}
			rep, err := r.RunBook(ctx, dir)
			if rep != nil {
				books[i] = *rep
			} else {
				books[i] = report.Book{Dir: dir, Halted: true}
			}
			if err != nil {
				books[i].Error = err.Error()
				r.logger().Error("book failed", "dir", dir, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	lib := &report.Library{Dir: libraryDir, Books: books}
	for _, b := range books {
		if b.Error != "" {
			lib.Failed++
		}
	}
	if err := ctx.Err(); err != nil {
		return lib, err
	}
	if lib.Failed == len(books) {
		return lib, errors.New("every book failed")
	}
	return lib, nil
}
