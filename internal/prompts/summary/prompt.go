// Package summary builds chapter, segment, and combination summary prompts.
package summary

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackzampolin/synopsis/internal/book"
	"github.com/jackzampolin/synopsis/internal/prompts"
)

//go:embed system.tmpl
var systemPrompt string

//go:embed fiction.tmpl
var fictionPrompt string

//go:embed nonfiction.tmpl
var nonfictionPrompt string

//go:embed combine.tmpl
var combinePrompt string

// Prompt keys
const (
	SystemPromptKey     = "stages.summary.system"
	FictionPromptKey    = "stages.summary.fiction"
	NonfictionPromptKey = "stages.summary.nonfiction"
	CombinePromptKey    = "stages.summary.combine"
)

// Data is the template input for a chapter or segment summary.
type Data struct {
	BookTitle    string
	Author       string
	ChapterTitle string
	PriorContext string
	Extraction   string // Indented JSON of the merged extraction
	ChapterText  string
	TargetWords  int
	LengthBand   string // e.g. "10-15%"
}

// Part is one partial summary handed to the combination prompt.
type Part struct {
	Number int
	Text   string
}

// CombineData is the template input for the combination request.
type CombineData struct {
	ChapterTitle string
	TargetWords  int
	LengthBand   string
	Parts        []Part
}

// NewCombineData numbers partial summaries from 1 in order.
func NewCombineData(chapterTitle string, targetWords int, band string, partials []string) CombineData {
	d := CombineData{ChapterTitle: chapterTitle, TargetWords: targetWords, LengthBand: band}
	for i, text := range partials {
		d.Parts = append(d.Parts, Part{Number: i + 1, Text: text})
	}
	return d
}

// LengthBand formats a ratio band as "10-15%".
func LengthBand(minRatio, maxRatio float64) string {
	return fmt.Sprintf("%.0f-%.0f%%", minRatio*100, maxRatio*100)
}

// PartTitle labels segment i (0-based) of n.
func PartTitle(title string, i, n int) string {
	return fmt.Sprintf("%s (Part %d/%d)", title, i+1, n)
}

// WithContinuity appends the previous segment's summary excerpt to the prior context.
func WithContinuity(prior, excerpt string) string {
	return fmt.Sprintf("%s\n\n[Previous part of this chapter: %s...]", prior, excerpt)
}

// UserPromptKey returns the category's prompt key.
func UserPromptKey(c book.Category) string {
	if c == book.Nonfiction {
		return NonfictionPromptKey
	}
	return FictionPromptKey
}

// Build renders a chapter or segment summary prompt.
func Build(ctx context.Context, r *prompts.Resolver, bookDir string, c book.Category, d Data) (*prompts.Built, error) {
	return r.Build(ctx, bookDir, SystemPromptKey, UserPromptKey(c), d, nil)
}

// BuildCombine renders the combination prompt.
func BuildCombine(ctx context.Context, r *prompts.Resolver, bookDir string, d CombineData) (*prompts.Built, error) {
	return r.Build(ctx, bookDir, SystemPromptKey, CombinePromptKey, d, nil)
}

// RegisterPrompts registers the summary prompts with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         SystemPromptKey,
		Text:        systemPrompt,
		Description: "Summary system prompt - plain prose, no spoilers",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         FictionPromptKey,
		Text:        fictionPrompt,
		Description: "Fiction chapter summary with target length",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         NonfictionPromptKey,
		Text:        nonfictionPrompt,
		Description: "Nonfiction chapter summary with target length",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         CombinePromptKey,
		Text:        combinePrompt,
		Description: "Combines per-segment summaries into one chapter summary",
	})
}
