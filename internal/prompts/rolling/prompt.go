// Package rolling builds the prompts that fold a finished chapter into the
// book's rolling context.
package rolling

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
	SystemPromptKey     = "stages.rolling.system"
	FictionPromptKey    = "stages.rolling.fiction"
	NonfictionPromptKey = "stages.rolling.nonfiction"
)

// Data is the template input for a context update.
type Data struct {
	CurrentContext string // Serialized prior context or "No prior context."
	Summary        string
	Extraction     string
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

// Build renders the context update prompt.
func Build(ctx context.Context, r *prompts.Resolver, bookDir string, c book.Category, d Data) (*prompts.Built, error) {
	return r.Build(ctx, bookDir, SystemPromptKey, UserPromptKey(c), d, Schema(c))
}

// RegisterPrompts registers the rolling context prompts with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         SystemPromptKey,
		Text:        systemPrompt,
		Description: "Rolling context system prompt",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         FictionPromptKey,
		Text:        fictionPrompt,
		Description: "Fiction context update - story so far, characters, threads, themes, facts",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         NonfictionPromptKey,
		Text:        nonfictionPrompt,
		Description: "Nonfiction context update - argument so far, concepts, evidence, themes, facts",
	})
}
