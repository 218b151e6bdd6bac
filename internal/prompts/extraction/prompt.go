// Package extraction builds the structured extraction prompts, one per
// chapter segment.
package extraction

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

// Prompt keys
const (
	SystemPromptKey     = "stages.extraction.system"
	FictionPromptKey    = "stages.extraction.fiction"
	NonfictionPromptKey = "stages.extraction.nonfiction"
)

// Data is the template input for one extraction request.
type Data struct {
	BookTitle    string
	Author       string
	ChapterTitle string
	PriorContext string
	ChapterText  string
}

// PartMarker labels segment i (0-based) of n in a multi-segment chapter.
func PartMarker(i, n int) string {
	return fmt.Sprintf("[Processing part %d of %d of this chapter]", i+1, n)
}

// WithPart appends the part marker for segment i of n to a prior context.
func WithPart(prior string, i, n int) string {
	return prior + "\n\n" + PartMarker(i, n)
}

// UserPromptKey returns the category's prompt key.
func UserPromptKey(c book.Category) string {
	if c == book.Nonfiction {
		return NonfictionPromptKey
	}
	return FictionPromptKey
}

// Schema returns the category's response format.
func Schema(c book.Category) map[string]any {
	if c == book.Nonfiction {
		return NonfictionSchema
	}
	return FictionSchema
}

// Build renders the extraction prompt for one segment.
func Build(ctx context.Context, r *prompts.Resolver, bookDir string, c book.Category, d Data) (*prompts.Built, error) {
	return r.Build(ctx, bookDir, SystemPromptKey, UserPromptKey(c), d, Schema(c))
}

// RegisterPrompts registers the extraction prompts with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         SystemPromptKey,
		Text:        systemPrompt,
		Description: "Extraction system prompt - text-only structured note taking",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         FictionPromptKey,
		Text:        fictionPrompt,
		Description: "Fiction extraction - characters, events, plot, settings, clues, relationships, tone",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         NonfictionPromptKey,
		Text:        nonfictionPrompt,
		Description: "Nonfiction extraction - arguments, concepts, evidence, references, methods, data",
	})
}
