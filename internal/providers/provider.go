package providers

import (
	"context"
	"encoding/json"
	"time"
)

// LLMClient is the interface every text-generation backend implements.
type LLMClient interface {
	// Chat sends a chat completion request.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error)

	// Name returns the client identifier (e.g., "openrouter").
	Name() string
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// ResponseFormat specifies structured output format.
type ResponseFormat struct {
	Type       string          `json:"type"` // "json_schema" or "json_object"
	JSONSchema json.RawMessage `json:"json_schema,omitempty"`
}

// ChatRequest is a request to an LLM.
type ChatRequest struct {
	Messages []Message `json:"messages"`

	// Model selection (uses client default if empty)
	Model string `json:"model,omitempty"`

	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Timeout     time.Duration

	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`

	RequestID string `json:"-"`
}

// ChatResult is the complete response from an LLM call.
type ChatResult struct {
	Content    string          `json:"content"`
	ParsedJSON json.RawMessage `json:"parsed_json,omitempty"` // Set when ResponseFormat was requested and content parsed

	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`

	CostUSD       float64       `json:"cost_usd"`
	ExecutionTime time.Duration `json:"execution_time"`
	TotalTime     time.Duration `json:"total_time"`

	Provider  string `json:"provider"`
	ModelUsed string `json:"model_used"`

	RequestID string `json:"request_id"`
	Attempts  int    `json:"attempts"`

	Success      bool   `json:"success"`
	ErrorType    string `json:"error_type,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// Error types reported in ChatResult.ErrorType.
const (
	ErrorTypeHTTP          = "http_error"
	ErrorTypeEmpty         = "empty_response"
	ErrorTypeJSONParse     = "json_parse"
	ErrorTypeRateLimited   = "rate_limited"
	ErrorTypeCancelled     = "context_cancelled"
	ErrorTypeMockFailure   = "mock_failure"
	ErrorTypeContentFormat = "content_marshal_error"
)

// failed fills the error fields of r and returns err.
func (r *ChatResult) failed(start time.Time, errType string, err error) (*ChatResult, error) {
	r.Success = false
	r.ErrorType = errType
	r.ErrorMessage = err.Error()
	r.TotalTime = time.Since(start)
	return r, err
}

// SystemAndUser builds the common two-message conversation.
func SystemAndUser(system, user string) []Message {
	msgs := make([]Message, 0, 2)
	if system != "" {
		msgs = append(msgs, Message{Role: "system", Content: system})
	}
	return append(msgs, Message{Role: "user", Content: user})
}
