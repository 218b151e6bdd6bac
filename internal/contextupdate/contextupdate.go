// Package contextupdate folds a finished chapter into the book's rolling
// context.
package contextupdate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackzampolin/synopsis/internal/book"
	"github.com/jackzampolin/synopsis/internal/completion"
	"github.com/jackzampolin/synopsis/internal/prompts"
	"github.com/jackzampolin/synopsis/internal/prompts/rolling"
)

// Updater produces the next rolling context.
type Updater struct {
	svc         completion.Service
	prompts     *prompts.Resolver
	temperature float64
	logger      *slog.Logger
}

// New creates an updater.
func New(svc completion.Service, resolver *prompts.Resolver, temperature float64, logger *slog.Logger) *Updater {
	if logger == nil {
		logger = slog.Default()
	}
	return &Updater{svc: svc, prompts: resolver, temperature: temperature, logger: logger}
}

// Input is one context transition.
type Input struct {
	RunID      string
	Book       *book.Book
	Chapter    book.Chapter
	Prior      book.RollingContext
	Summary    string
	Extraction book.Extraction
}

// Update returns the context after in.Chapter. The prior context is never
// modified. Output that does not decode into a complete context is an
// ErrMalformedOutput: a broken context must not reach the next chapter.
func (u *Updater) Update(ctx context.Context, in Input) (book.RollingContext, error) {
	category := in.Book.Category
	built, err := rolling.Build(ctx, u.prompts, in.Book.Dir, category, rolling.Data{
		CurrentContext: in.Prior.Serialize(),
		Summary:        in.Summary,
		Extraction:     in.Extraction.Indented(),
	})
	if err != nil {
		return book.RollingContext{}, err
	}

	resp, err := u.svc.Complete(ctx, &completion.Request{
		Stage:       completion.StageContext,
		PromptKey:   built.Key,
		RunID:       in.RunID,
		BookID:      in.Book.ID,
		ChapterID:   in.Chapter.ID,
		System:      built.System,
		Prompt:      built.User,
		Structured:  true,
		Schema:      built.Schema,
		Temperature: u.temperature,
	})
	if err != nil {
		return book.RollingContext{}, err
	}

	next, err := book.ParseRollingContext(category, resp.JSON)
	if err != nil {
		u.logger.Error("context update unusable",
			"book", in.Book.ID,
			"chapter", in.Chapter.Label(),
			"error", err)
		return book.RollingContext{}, fmt.Errorf("%w: %w", completion.ErrMalformedOutput, err)
	}
	return next, nil
}
