package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"
)

const (
	AnthropicName         = "anthropic"
	AnthropicDefaultModel = "claude-sonnet-4-5"

	// anthropicMaxTokens is required by the Messages API.
	anthropicMaxTokens = 8192
)

// jsonOnlyInstruction is appended to the system prompt for structured requests,
// since the Messages API has no json_object response mode.
const jsonOnlyInstruction = "Respond with a single JSON object and nothing else: no markdown fences, no commentary."

// AnthropicConfig configures the Anthropic Messages client.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration
	MaxRetries   int
}

// AnthropicClient implements LLMClient using anthropic-sdk-go.
type AnthropicClient struct {
	client       anthropic.Client
	apiKey       string
	defaultModel string
}

// NewAnthropicClient creates a new Anthropic client.
func NewAnthropicClient(cfg AnthropicConfig) *AnthropicClient {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = AnthropicDefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 180 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicClient{
		client:       anthropic.NewClient(opts...),
		apiKey:       cfg.APIKey,
		defaultModel: cfg.DefaultModel,
	}
}

// Name returns the client identifier.
func (c *AnthropicClient) Name() string {
	return AnthropicName
}

// Model returns the default model.
func (c *AnthropicClient) Model() string {
	return c.defaultModel
}

// Chat sends a Messages API request.
func (c *AnthropicClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = anthropicMaxTokens
	}

	var system []string
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
	}
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			system = append(system, m.Content)
		case "assistant":
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	if req.ResponseFormat != nil {
		system = append(system, jsonOnlyInstruction)
	}
	if len(system) > 0 {
		params.System = []anthropic.TextBlockParam{{Text: strings.Join(system, "\n\n")}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	result := &ChatResult{
		RequestID: requestID,
		Provider:  AnthropicName,
		Attempts:  1,
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		mapped := mapAnthropicError(err)
		errType := ErrorTypeHTTP
		var rl *RateLimitError
		if errors.As(mapped, &rl) {
			errType = ErrorTypeRateLimited
		}
		return result.failed(start, errType, mapped)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	content := text.String()
	if content == "" {
		return result.failed(start, ErrorTypeEmpty, fmt.Errorf("no text content in response"))
	}

	result.Success = true
	result.Content = content
	result.ModelUsed = string(msg.Model)
	result.PromptTokens = int(msg.Usage.InputTokens)
	result.CompletionTokens = int(msg.Usage.OutputTokens)
	result.TotalTokens = result.PromptTokens + result.CompletionTokens
	result.ExecutionTime = time.Since(start)
	result.TotalTime = result.ExecutionTime

	if req.ResponseFormat != nil {
		if parsed, err := ParseStructuredJSON(content); err == nil {
			result.ParsedJSON = parsed
		} else {
			result.ErrorType = ErrorTypeJSONParse
			result.ErrorMessage = err.Error()
		}
	}
	return result, nil
}

func mapAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	if apiErr.StatusCode == http.StatusTooManyRequests {
		retryAfter := time.Duration(0)
		if apiErr.Response != nil {
			retryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
		}
		return &RateLimitError{
			Message:    "Anthropic rate limited",
			RetryAfter: retryAfter,
			StatusCode: apiErr.StatusCode,
		}
	}
	return &StatusError{Provider: "Anthropic", StatusCode: apiErr.StatusCode, Message: apiErr.Error()}
}

var _ LLMClient = (*AnthropicClient)(nil)
