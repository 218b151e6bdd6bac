package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

const (
	OpenAIName         = "openai"
	OpenAIDefaultModel = "gpt-4o"
)

// OpenAIConfig configures the OpenAI chat client.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string // Optional; for compatible gateways and tests
	DefaultModel string
	Timeout      time.Duration
	MaxRetries   int // SDK-level retries (default: 2)
}

// OpenAIClient implements LLMClient using the official openai-go SDK.
type OpenAIClient struct {
	client       openai.Client
	apiKey       string
	defaultModel string
}

// NewOpenAIClient creates a new OpenAI chat client.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = OpenAIDefaultModel
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

	return &OpenAIClient{
		client:       openai.NewClient(opts...),
		apiKey:       cfg.APIKey,
		defaultModel: cfg.DefaultModel,
	}
}

// Name returns the client identifier.
func (c *OpenAIClient) Name() string {
	return OpenAIName
}

// Model returns the default model.
func (c *OpenAIClient) Model() string {
	return c.defaultModel
}

// Chat sends a chat completion request.
func (c *OpenAIClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)),
	}
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		case "assistant":
			params.Messages = append(params.Messages, openai.AssistantMessage(m.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		}
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.ResponseFormat != nil {
		rf, err := openAIResponseFormat(req.ResponseFormat)
		if err != nil {
			return nil, err
		}
		params.ResponseFormat = rf
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	result := &ChatResult{
		RequestID: requestID,
		Provider:  OpenAIName,
		Attempts:  1,
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		mapped := mapOpenAIError(err)
		errType := ErrorTypeHTTP
		var rl *RateLimitError
		if errors.As(mapped, &rl) {
			errType = ErrorTypeRateLimited
		}
		return result.failed(start, errType, mapped)
	}
	if len(resp.Choices) == 0 {
		return result.failed(start, ErrorTypeEmpty, fmt.Errorf("no choices in response"))
	}

	content := resp.Choices[0].Message.Content
	result.Success = true
	result.Content = content
	result.ModelUsed = resp.Model
	result.PromptTokens = int(resp.Usage.PromptTokens)
	result.CompletionTokens = int(resp.Usage.CompletionTokens)
	result.TotalTokens = int(resp.Usage.TotalTokens)
	result.ExecutionTime = time.Since(start)
	result.TotalTime = result.ExecutionTime

	if req.ResponseFormat != nil && content != "" {
		if parsed, err := ParseStructuredJSON(content); err == nil {
			result.ParsedJSON = parsed
		} else {
			result.ErrorType = ErrorTypeJSONParse
			result.ErrorMessage = err.Error()
		}
	}
	return result, nil
}

// openAIResponseFormat converts a response_format envelope into SDK params.
func openAIResponseFormat(rf *ResponseFormat) (openai.ChatCompletionNewParamsResponseFormatUnion, error) {
	if rf.Type != "json_schema" || len(rf.JSONSchema) == 0 {
		return openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}, nil
	}

	var envelope struct {
		Name   string         `json:"name"`
		Strict bool           `json:"strict"`
		Schema map[string]any `json:"schema"`
	}
	if err := json.Unmarshal(rf.JSONSchema, &envelope); err != nil {
		return openai.ChatCompletionNewParamsResponseFormatUnion{}, fmt.Errorf("invalid json_schema response format: %w", err)
	}
	if envelope.Name == "" {
		envelope.Name = "response"
	}

	return openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
			JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
				Name:   envelope.Name,
				Strict: openai.Bool(envelope.Strict),
				Schema: envelope.Schema,
			},
		},
	}, nil
}

// mapOpenAIError converts SDK errors into provider error types.
func mapOpenAIError(err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	if apiErr.StatusCode == http.StatusTooManyRequests {
		retryAfter := time.Duration(0)
		if apiErr.Response != nil {
			retryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
		}
		return &RateLimitError{
			Message:    fmt.Sprintf("OpenAI rate limited: %s", apiErr.Message),
			RetryAfter: retryAfter,
			StatusCode: apiErr.StatusCode,
		}
	}
	return &StatusError{Provider: "OpenAI", StatusCode: apiErr.StatusCode, Message: apiErr.Message}
}

var _ LLMClient = (*OpenAIClient)(nil)
