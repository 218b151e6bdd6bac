// Package summarizer writes the chapter summary, summarizing oversized
// chapters segment by segment and combining the partial summaries.
package summarizer

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/jackzampolin/synopsis/internal/book"
	"github.com/jackzampolin/synopsis/internal/chunker"
	"github.com/jackzampolin/synopsis/internal/completion"
	"github.com/jackzampolin/synopsis/internal/prompts"
	"github.com/jackzampolin/synopsis/internal/prompts/summary"
	"github.com/jackzampolin/synopsis/internal/textclean"
	"github.com/jackzampolin/synopsis/internal/tokens"
)

// Settings controls summary length and shape.
type Settings struct {
	TargetRatio     float64
	MinRatio        float64
	MaxRatio        float64
	MinWords        int // Floor for the target word count
	ContinuityChars int // Trailing excerpt of the previous part's summary
	Temperature     float64
	PlainText       bool // Strip markdown from the final summary
}

// TargetWords is max(floor, round(originalWords * ratio)).
func TargetWords(originalWords int, ratio float64, floor int) int {
	target := int(math.Round(float64(originalWords) * ratio))
	if target < floor {
		return floor
	}
	return target
}

// Tail returns the last n runes of s.
func Tail(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}

// Summarizer produces chapter summaries.
type Summarizer struct {
	svc      completion.Service
	prompts  *prompts.Resolver
	settings Settings
	logger   *slog.Logger
}

// New creates a summarizer.
func New(svc completion.Service, resolver *prompts.Resolver, s Settings, logger *slog.Logger) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{svc: svc, prompts: resolver, settings: s, logger: logger}
}

// Input is one chapter's summary job.
type Input struct {
	RunID      string
	Book       *book.Book
	Chapter    book.Chapter
	Segments   []chunker.Segment
	Extraction book.Extraction
	Prior      string
}

// Result is the chapter summary and how it was sized.
type Result struct {
	Summary       string
	OriginalWords int
	TargetWords   int
	// Partials holds the per-segment summaries of a multi-segment chapter.
	Partials []string
}

// Summarize writes the chapter summary. Length is requested, not enforced.
func (s *Summarizer) Summarize(ctx context.Context, in Input) (*Result, error) {
	res := &Result{OriginalWords: tokens.Words(in.Chapter.Body)}
	res.TargetWords = TargetWords(res.OriginalWords, s.settings.TargetRatio, s.settings.MinWords)

	meta := in.Book.Metadata.Normalized()
	data := summary.Data{
		BookTitle:    meta.Title,
		Author:       meta.Author(),
		ChapterTitle: in.Chapter.Label(),
		PriorContext: in.Prior,
		Extraction:   in.Extraction.Indented(),
		TargetWords:  res.TargetWords,
		LengthBand:   summary.LengthBand(s.settings.MinRatio, s.settings.MaxRatio),
	}

	if len(in.Segments) <= 1 {
		data.ChapterText = in.Chapter.Body
		text, err := s.complete(ctx, in, completion.StageSummarize, func() (*prompts.Built, error) {
			return summary.Build(ctx, s.prompts, in.Book.Dir, in.Book.Category, data)
		})
		if err != nil {
			return nil, err
		}
		res.Summary = s.finish(text)
		return res, nil
	}

	n := len(in.Segments)
	subTarget := res.TargetWords / n
	if subTarget < 1 {
		subTarget = 1
	}
	for i, seg := range in.Segments {
		part := data
		part.ChapterTitle = summary.PartTitle(in.Chapter.Label(), i, n)
		part.ChapterText = seg.Text
		part.TargetWords = subTarget
		if i > 0 {
			part.PriorContext = summary.WithContinuity(in.Prior, Tail(res.Partials[i-1], s.settings.ContinuityChars))
		}

		text, err := s.complete(ctx, in, completion.StageSummarize, func() (*prompts.Built, error) {
			return summary.Build(ctx, s.prompts, in.Book.Dir, in.Book.Category, part)
		})
		if err != nil {
			return nil, fmt.Errorf("summarize segment %d of %d: %w", i+1, n, err)
		}
		res.Partials = append(res.Partials, text)
	}

	combined, err := s.complete(ctx, in, completion.StageCombine, func() (*prompts.Built, error) {
		return summary.BuildCombine(ctx, s.prompts, in.Book.Dir,
			summary.NewCombineData(in.Chapter.Label(), res.TargetWords, data.LengthBand, res.Partials))
	})
	if err != nil {
		return nil, fmt.Errorf("combine %d segment summaries: %w", n, err)
	}
	res.Summary = s.finish(combined)

	s.logger.Debug("combined segment summaries",
		"book", in.Book.ID,
		"chapter", in.Chapter.Label(),
		"segments", n,
		"target_words", res.TargetWords,
		"summary_words", tokens.Words(res.Summary))
	return res, nil
}

func (s *Summarizer) complete(ctx context.Context, in Input, stage string, build func() (*prompts.Built, error)) (string, error) {
	built, err := build()
	if err != nil {
		return "", err
	}
	resp, err := s.svc.Complete(ctx, &completion.Request{
		Stage:       stage,
		PromptKey:   built.Key,
		RunID:       in.RunID,
		BookID:      in.Book.ID,
		ChapterID:   in.Chapter.ID,
		System:      built.System,
		Prompt:      built.User,
		Temperature: s.settings.Temperature,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

func (s *Summarizer) finish(text string) string {
	if s.settings.PlainText {
		return textclean.Plain(text)
	}
	return strings.TrimSpace(text)
}
