// Package analyzer writes the thematic analysis that accompanies each
// chapter summary.
package analyzer

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jackzampolin/synopsis/internal/book"
	"github.com/jackzampolin/synopsis/internal/completion"
	"github.com/jackzampolin/synopsis/internal/prompts"
	"github.com/jackzampolin/synopsis/internal/prompts/analysis"
	"github.com/jackzampolin/synopsis/internal/textclean"
)

// Analyzer produces one analysis per chapter from its summary.
type Analyzer struct {
	svc         completion.Service
	prompts     *prompts.Resolver
	temperature float64
	logger      *slog.Logger
}

// New creates an analyzer.
func New(svc completion.Service, resolver *prompts.Resolver, temperature float64, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{svc: svc, prompts: resolver, temperature: temperature, logger: logger}
}

// Input is one chapter's analysis job.
type Input struct {
	RunID      string
	Book       *book.Book
	Chapter    book.Chapter
	Summary    string
	Extraction book.Extraction
	// ThemesSoFar is the comma-joined theme list from the rolling context,
	// or book.NoThemes.
	ThemesSoFar string
	// PlainText drops markdown from the model's answer. Section labels
	// survive as plain paragraphs.
	PlainText bool
}

// Analyze issues a single request; it never chunks, since the summary is
// already chapter-scale.
func (a *Analyzer) Analyze(ctx context.Context, in Input) (string, error) {
	meta := in.Book.Metadata.Normalized()
	themes := in.ThemesSoFar
	if strings.TrimSpace(themes) == "" {
		themes = book.NoThemes
	}

	built, err := analysis.Build(ctx, a.prompts, in.Book.Dir, in.Book.Category, analysis.Data{
		BookTitle:    meta.Title,
		Author:       meta.Author(),
		ChapterTitle: in.Chapter.Label(),
		ThemesSoFar:  themes,
		Summary:      in.Summary,
		Extraction:   in.Extraction.Indented(),
	})
	if err != nil {
		return "", err
	}

	resp, err := a.svc.Complete(ctx, &completion.Request{
		Stage:       completion.StageAnalyze,
		PromptKey:   built.Key,
		RunID:       in.RunID,
		BookID:      in.Book.ID,
		ChapterID:   in.Chapter.ID,
		System:      built.System,
		Prompt:      built.User,
		Temperature: a.temperature,
	})
	if err != nil {
		return "", err
	}
	if in.PlainText {
		return textclean.Plain(resp.Text), nil
	}
	return strings.TrimSpace(resp.Text), nil
}
