// Package extractor pulls a structured record out of each chapter segment
// and merges the per-segment records into one chapter record.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackzampolin/synopsis/internal/book"
	"github.com/jackzampolin/synopsis/internal/chunker"
	"github.com/jackzampolin/synopsis/internal/completion"
	"github.com/jackzampolin/synopsis/internal/prompts"
	"github.com/jackzampolin/synopsis/internal/prompts/extraction"
)

// Extractor issues one structured request per segment.
type Extractor struct {
	svc         completion.Service
	prompts     *prompts.Resolver
	temperature float64
	logger      *slog.Logger
}

// New creates an extractor.
func New(svc completion.Service, resolver *prompts.Resolver, temperature float64, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{svc: svc, prompts: resolver, temperature: temperature, logger: logger}
}

// Input is one chapter's extraction job.
type Input struct {
	RunID    string
	Book     *book.Book
	Chapter  book.Chapter
	Segments []chunker.Segment
	// Prior is the rolling context as shown to the model, or book.FirstChapter.
	Prior string
}

// Result is the chapter's extraction record.
type Result struct {
	Extraction book.Extraction
	// Degraded lists segments whose output could not be parsed and were
	// replaced by an empty record.
	Degraded []int
}

// Extract runs extraction over every segment in order and merges the results.
// Malformed output for a segment degrades that segment to an empty record;
// any other failure aborts the chapter.
func (e *Extractor) Extract(ctx context.Context, in Input) (*Result, error) {
	category := in.Book.Category
	meta := in.Book.Metadata.Normalized()
	n := len(in.Segments)

	res := &Result{}
	records := make([]book.Extraction, 0, n)
	for i, seg := range in.Segments {
		prior := in.Prior
		if n > 1 {
			prior = extraction.WithPart(in.Prior, i, n)
		}

		built, err := extraction.Build(ctx, e.prompts, in.Book.Dir, category, extraction.Data{
			BookTitle:    meta.Title,
			Author:       meta.Author(),
			ChapterTitle: in.Chapter.Label(),
			PriorContext: prior,
			ChapterText:  seg.Text,
		})
		if err != nil {
			return nil, err
		}

		resp, err := e.svc.Complete(ctx, &completion.Request{
			Stage:       completion.StageExtract,
			PromptKey:   built.Key,
			RunID:       in.RunID,
			BookID:      in.Book.ID,
			ChapterID:   in.Chapter.ID,
			System:      built.System,
			Prompt:      built.User,
			Structured:  true,
			Schema:      built.Schema,
			Lenient:     true,
			Temperature: e.temperature,
		})
		if errors.Is(err, completion.ErrMalformedOutput) {
			records = append(records, e.degrade(res, in, i, n, err))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("extract segment %d of %d: %w", i+1, n, err)
		}

		record, err := book.ParseExtraction(category, resp.JSON)
		if errors.Is(err, book.ErrMistypedField) {
			e.logger.Warn("extraction field dropped",
				"book", in.Book.ID,
				"chapter", in.Chapter.Label(),
				"segment", i+1,
				"error", err)
			err = nil
		}
		if err != nil {
			records = append(records, e.degrade(res, in, i, n, err))
			continue
		}
		records = append(records, record)
	}

	switch n {
	case 0:
		res.Extraction = book.EmptyExtraction(category)
	case 1:
		res.Extraction = records[0]
	default:
		res.Extraction = Merge(category, records)
	}
	return res, nil
}

func (e *Extractor) degrade(res *Result, in Input, i, n int, err error) book.Extraction {
	e.logger.Warn("extraction output unusable, continuing with empty record",
		"book", in.Book.ID,
		"chapter", in.Chapter.Label(),
		"segment", i+1,
		"segments", n,
		"error", err)
	res.Degraded = append(res.Degraded, i)
	return book.EmptyExtraction(in.Book.Category)
}
