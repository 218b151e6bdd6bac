// Package prompts provides prompt management with embedded defaults and
// per-book file overrides.
//
// Resolution order for a book:
//  1. <book-dir>/prompts/<key>.tmpl
//  2. <home>/prompts/<key>.tmpl
//  3. Embedded default (from .tmpl files in code)
//
// Every prompt is a text/template rendered with missingkey=error, so a
// template that references data the stage does not provide fails loudly.
package prompts

import (
	"encoding/json"
)

// EmbeddedPrompt represents a prompt loaded from an embedded .tmpl file.
type EmbeddedPrompt struct {
	Key         string   // Hierarchical key: stages.summary.fiction
	Text        string   // The prompt text (Go template)
	Description string   // Human-readable description
	Variables   []string // Extracted template variables
	Hash        string   // SHA256 hash of the text for change detection
}

// Override is a prompt text found on disk.
type Override struct {
	Key  string
	Text string
	Path string
}

// ResolvedPrompt is the result of resolving a prompt for a specific book.
type ResolvedPrompt struct {
	Key        string   `json:"key"`
	Text       string   `json:"text"`
	Variables  []string `json:"variables,omitempty"`
	IsOverride bool     `json:"is_override"`
	Source     string   `json:"source"` // "embedded" or the override path
	Hash       string   `json:"hash"`
}

// Built is a rendered system/user prompt pair ready for a completion request.
type Built struct {
	Key    string          // Key of the user prompt
	System string
	User   string
	Schema json.RawMessage // response_format json_schema envelope; nil for prose stages
}
