// Package analysis builds the per-chapter thematic analysis prompts.
package analysis

import (
	"context"
	_ "embed"

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
	SystemPromptKey     = "stages.analysis.system"
	FictionPromptKey    = "stages.analysis.fiction"
	NonfictionPromptKey = "stages.analysis.nonfiction"
)

// Data is the template input for an analysis request.
type Data struct {
	BookTitle    string
	Author       string
	ChapterTitle string
	ThemesSoFar  string
	Summary      string
	Extraction   string
}

// UserPromptKey returns the category's prompt key.
func UserPromptKey(c book.Category) string {
	if c == book.Nonfiction {
		return NonfictionPromptKey
	}
	return FictionPromptKey
}

// Build renders the analysis prompt.
func Build(ctx context.Context, r *prompts.Resolver, bookDir string, c book.Category, d Data) (*prompts.Built, error) {
	return r.Build(ctx, bookDir, SystemPromptKey, UserPromptKey(c), d, nil)
}

// RegisterPrompts registers the analysis prompts with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         SystemPromptKey,
		Text:        systemPrompt,
		Description: "Analysis system prompt",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         FictionPromptKey,
		Text:        fictionPrompt,
		Description: "Fiction analysis - thematic analysis and character dynamics",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         NonfictionPromptKey,
		Text:        nonfictionPrompt,
		Description: "Nonfiction analysis - thematic analysis and narrative approach",
	})
}
