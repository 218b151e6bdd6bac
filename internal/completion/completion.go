// Package completion adapts a providers.LLMClient into the single request
// shape the pipeline stages use: a rendered prompt in, prose or validated
// JSON out.
package completion

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrMalformedOutput is returned when a structured response cannot be
	// parsed or validated even after repair attempts.
	ErrMalformedOutput = errors.New("malformed structured output")

	// ErrServiceUnavailable is returned when transient failures persist past
	// the retry budget.
	ErrServiceUnavailable = errors.New("completion service unavailable")
)

// Stage names used for request labelling, logging, and the call ledger.
const (
	StageExtract   = "extract"
	StageSummarize = "summarize"
	StageCombine   = "combine"
	StageAnalyze   = "analyze"
	StageContext   = "context_update"
)

// Request is one completion request.
type Request struct {
	Stage     string
	PromptKey string

	RunID     string
	BookID    string
	ChapterID string

	System string
	Prompt string

	// Structured requests return JSON. Schema is a response_format
	// json_schema envelope ({name, strict, schema}); when empty only
	// well-formed JSON is required.
	Structured bool
	Schema     json.RawMessage
	// Lenient sends Schema to the provider but only requires a JSON object
	// back; the caller decodes field by field.
	Lenient bool

	Temperature float64
}

// Response is the outcome of a completion request.
type Response struct {
	Text     string
	JSON     json.RawMessage // Set for structured requests
	Cached   bool
	Attempts int
}

// Service produces completions.
type Service interface {
	Complete(ctx context.Context, req *Request) (*Response, error)
}

// Func adapts a function into a Service.
type Func func(ctx context.Context, req *Request) (*Response, error)

// Complete calls f.
func (f Func) Complete(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}
