// Package sink persists chapter results and the final rolling context.
package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackzampolin/synopsis/internal/book"
	"github.com/jackzampolin/synopsis/internal/report"
)

const (
	// DefaultDirName is the output directory inside a book folder.
	DefaultDirName = "summaries"

	// ContextFileName holds the rolling context after the last chapter.
	ContextFileName = "book_context.json"
)

// Sink receives results. PersistChapter is called once per chapter that
// reaches the persisted state; PersistContext once when a run finishes.
type Sink interface {
	PersistChapter(ctx context.Context, b *book.Book, r book.ChapterResult) error
	PersistContext(ctx context.Context, b *book.Book, rc book.RollingContext) error
}

// RunTracker is implemented by sinks that keep run history. The pipeline
// calls StartRun before the first chapter and FinishRun with the final
// report, including for halted and cancelled runs.
type RunTracker interface {
	StartRun(ctx context.Context, run *report.Book) error
	FinishRun(ctx context.Context, run *report.Book) error
}

// ChapterFileName is the output file for a chapter.
func ChapterFileName(c book.Chapter) string {
	return c.ID + "_summary.txt"
}

// FormatChapter renders a chapter result as the plain text output file.
func FormatChapter(r book.ChapterResult) string {
	return fmt.Sprintf("%s\n\nSUMMARY\n\n%s\n\nANALYSIS\n\n%s\n", r.Chapter.Label(), r.Summary, r.Analysis)
}

// FormatContext renders the rolling context as indented JSON.
func FormatContext(rc book.RollingContext) ([]byte, error) {
	data, err := json.MarshalIndent(rc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode context: %w", err)
	}
	return append(data, '\n'), nil
}

// Retractor is implemented by sinks that can undo a PersistChapter.
type Retractor interface {
	RetractChapter(ctx context.Context, b *book.Book, r book.ChapterResult) error
}

// Multi fans out to every sink in order. PersistChapter stops at the first
// error and retracts the chapter from the sinks that already took it, so a
// chapter that fails to persist leaves no output behind.
type Multi []Sink

// Chain orders sinks for commit: backing stores first, then the visible
// local output once everything else has accepted the chapter.
func Chain(visible Sink, backing ...Sink) Multi {
	out := make(Multi, 0, len(backing)+1)
	for _, s := range backing {
		if s != nil {
			out = append(out, s)
		}
	}
	return append(out, visible)
}

func (m Multi) PersistChapter(ctx context.Context, b *book.Book, r book.ChapterResult) error {
	for i, s := range m {
		if err := s.PersistChapter(ctx, b, r); err != nil {
			if rerr := m[:i].retract(context.WithoutCancel(ctx), b, r); rerr != nil {
				return errors.Join(err, rerr)
			}
			return err
		}
	}
	return nil
}

func (m Multi) retract(ctx context.Context, b *book.Book, r book.ChapterResult) error {
	var errs []error
	for i := len(m) - 1; i >= 0; i-- {
		rt, ok := m[i].(Retractor)
		if !ok {
			continue
		}
		if err := rt.RetractChapter(ctx, b, r); err != nil {
			errs = append(errs, fmt.Errorf("retract chapter %s: %w", r.Chapter.ID, err))
		}
	}
	return errors.Join(errs...)
}

func (m Multi) PersistContext(ctx context.Context, b *book.Book, rc book.RollingContext) error {
	var errs []error
	for _, s := range m {
		if err := s.PersistContext(ctx, b, rc); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) StartRun(ctx context.Context, run *report.Book) error {
	for _, s := range m {
		if rt, ok := s.(RunTracker); ok {
			if err := rt.StartRun(ctx, run); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m Multi) FinishRun(ctx context.Context, run *report.Book) error {
	var errs []error
	for _, s := range m {
		if rt, ok := s.(RunTracker); ok {
			if err := rt.FinishRun(ctx, run); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Discard drops everything.
type Discard struct{}

func (Discard) PersistChapter(context.Context, *book.Book, book.ChapterResult) error { return nil }
func (Discard) PersistContext(context.Context, *book.Book, book.RollingContext) error { return nil }

var (
	_ Sink       = Multi(nil)
	_ RunTracker = Multi(nil)
	_ Sink       = Discard{}
)
