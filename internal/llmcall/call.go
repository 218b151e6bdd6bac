// Package llmcall provides LLM call recording for traceability.
// Every completion request is recorded with its stage, prompt key, response, and metrics.
package llmcall

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/synopsis/internal/providers"
)

// Call represents a recorded LLM API call.
type Call struct {
	ID string `json:"id"`

	Timestamp time.Time `json:"timestamp"`
	LatencyMs int       `json:"latency_ms"`

	// Context references
	RunID     string `json:"run_id,omitempty"`
	BookID    string `json:"book_id,omitempty"`
	ChapterID string `json:"chapter_id,omitempty"`
	Stage     string `json:"stage"`

	// Prompt traceability
	PromptKey  string `json:"prompt_key"`
	PromptHash string `json:"prompt_hash,omitempty"` // sha256 of the rendered prompt

	Provider    string   `json:"provider"`
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature,omitempty"`

	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd,omitempty"`

	Response string `json:"response"`
	Cached   bool   `json:"cached,omitempty"`
	Attempts int    `json:"attempts"`

	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// RecordOptions provides context for recording an LLM call.
type RecordOptions struct {
	RunID     string
	BookID    string
	ChapterID string
	Stage     string

	PromptKey string
	Prompt    string // Rendered prompt; only its hash is stored

	// Pointer to distinguish "not set" from "set to 0"
	Temperature *float64

	Cached bool
}

// HashPrompt returns the hex sha256 of a rendered prompt.
func HashPrompt(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}

// FromChatResult creates a Call from a ChatResult.
// Returns nil if result is nil.
func FromChatResult(result *providers.ChatResult, opts RecordOptions) *Call {
	if result == nil {
		return nil
	}

	call := &Call{
		ID:           uuid.New().String(),
		Timestamp:    time.Now().UTC(),
		LatencyMs:    int(result.ExecutionTime.Milliseconds()),
		RunID:        opts.RunID,
		BookID:       opts.BookID,
		ChapterID:    opts.ChapterID,
		Stage:        opts.Stage,
		PromptKey:    opts.PromptKey,
		Provider:     result.Provider,
		Model:        result.ModelUsed,
		Temperature:  opts.Temperature,
		InputTokens:  result.PromptTokens,
		OutputTokens: result.CompletionTokens,
		CostUSD:      result.CostUSD,
		Response:     result.Content,
		Cached:       opts.Cached,
		Attempts:     result.Attempts,
		Success:      result.Success,
	}
	if opts.Prompt != "" {
		call.PromptHash = HashPrompt(opts.Prompt)
	}
	if !result.Success {
		call.Error = result.ErrorMessage
	}
	return call
}

// QueryFilter specifies filters for listing recorded calls.
type QueryFilter struct {
	RunID     string
	BookID    string
	ChapterID string
	Stage     string
	PromptKey string
	Success   *bool
	Limit     int
}
