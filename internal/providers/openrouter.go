package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	OpenRouterName    = "openrouter"
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
)

// OpenRouterConfig holds configuration for the OpenRouter client.
type OpenRouterConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration
	MaxRetries   int           // Max HTTP attempts per request (default: 3)
	RetryDelay   time.Duration // Base delay between attempts (default: 1s)
}

// OpenRouterClient implements LLMClient against the OpenRouter HTTP API.
type OpenRouterClient struct {
	apiKey       string
	baseURL      string
	defaultModel string
	client       *http.Client
	maxRetries   int
	retryDelay   time.Duration
}

// NewOpenRouterClient creates a new OpenRouter client.
func NewOpenRouterClient(cfg OpenRouterConfig) *OpenRouterClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = OpenRouterBaseURL
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "openai/gpt-4o"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 180 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}

	return &OpenRouterClient{
		apiKey:       cfg.APIKey,
		baseURL:      cfg.BaseURL,
		defaultModel: cfg.DefaultModel,
		client:       &http.Client{Timeout: cfg.Timeout},
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
	}
}

// Name returns the client identifier.
func (c *OpenRouterClient) Name() string {
	return OpenRouterName
}

// Model returns the default model.
func (c *OpenRouterClient) Model() string {
	return c.defaultModel
}

// Chat sends a chat completion request.
func (c *OpenRouterClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	orReq := openRouterRequest{
		Model:       model,
		Messages:    make([]openRouterMessage, 0, len(req.Messages)),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Usage:       &openRouterUsageRequest{Include: true},
	}
	for _, m := range req.Messages {
		orReq.Messages = append(orReq.Messages, openRouterMessage{Role: m.Role, Content: m.Content})
	}

	rf, err := adaptedResponseFormat(model, req.ResponseFormat)
	if err != nil {
		return nil, err
	}
	orReq.ResponseFormat = rf

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	result := &ChatResult{
		RequestID: requestID,
		Provider:  OpenRouterName,
	}

	orResp, attempts, httpErr := c.doRequest(ctx, &orReq)
	result.Attempts = attempts
	if httpErr != nil {
		errType := ErrorTypeHTTP
		var rl *RateLimitError
		if errors.As(httpErr, &rl) {
			errType = ErrorTypeRateLimited
		}
		return result.failed(start, errType, httpErr)
	}
	if len(orResp.Choices) == 0 {
		return result.failed(start, ErrorTypeEmpty, fmt.Errorf("no choices in response"))
	}

	content := ""
	switch v := orResp.Choices[0].Message.Content.(type) {
	case nil:
	case string:
		content = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return result.failed(start, ErrorTypeContentFormat, fmt.Errorf("failed to marshal content: %w", err))
		}
		content = string(b)
	}

	result.Success = true
	result.Content = content
	result.ModelUsed = orResp.Model
	result.PromptTokens = orResp.Usage.PromptTokens
	result.CompletionTokens = orResp.Usage.CompletionTokens
	result.TotalTokens = orResp.Usage.TotalTokens
	result.CostUSD = orResp.Usage.Cost
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

// doRequest posts to /chat/completions, retrying transient failures.
// It returns the number of attempts made.
func (c *OpenRouterClient) doRequest(ctx context.Context, orReq *openRouterRequest) (*openRouterResponse, int, error) {
	var lastErr error
	attempt := 0
	for ; attempt < c.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, attempt, err
		}

		// 413/422 retries are often fixed by making the request body unique.
		if attempt > 0 && lastErr != nil {
			c.injectNonce(orReq, attempt)
		}

		bodyBytes, err := json.Marshal(orReq)
		if err != nil {
			return nil, attempt + 1, fmt.Errorf("failed to marshal request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
		if err != nil {
			return nil, attempt + 1, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("HTTP-Referer", "https://github.com/jackzampolin/synopsis")
		req.Header.Set("X-Title", "Synopsis")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			c.sleepWithJitter(ctx, attempt, 0)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			c.sleepWithJitter(ctx, attempt, 0)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
			lastErr = &RateLimitError{
				Message:    fmt.Sprintf("OpenRouter rate limited: %s", string(respBody)),
				RetryAfter: retryAfter,
				StatusCode: resp.StatusCode,
			}
			c.sleepWithJitter(ctx, attempt, retryAfter)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			statusErr := &StatusError{Provider: "OpenRouter", StatusCode: resp.StatusCode, Message: string(respBody)}
			if !retryableStatus(resp.StatusCode) {
				return nil, attempt + 1, statusErr
			}
			lastErr = statusErr
			c.sleepWithJitter(ctx, attempt, 0)
			continue
		}

		var orResp openRouterResponse
		if err := json.Unmarshal(respBody, &orResp); err != nil {
			return nil, attempt + 1, fmt.Errorf("failed to unmarshal response: %w", err)
		}

		if retryable, err := c.checkResponse(&orResp); err != nil {
			if !retryable {
				return nil, attempt + 1, err
			}
			lastErr = err
			c.sleepWithJitter(ctx, attempt, 0)
			continue
		}

		return &orResp, attempt + 1, nil
	}

	return nil, attempt, fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// checkResponse inspects a 200 OK body for API-level errors.
func (c *OpenRouterClient) checkResponse(resp *openRouterResponse) (retryable bool, err error) {
	if resp.Error != nil {
		code := fmt.Sprintf("%v", resp.Error.Code)
		switch code {
		case "overloaded", "rate_limit_exceeded", "500", "502", "503":
			return true, fmt.Errorf("OpenRouter API error (retryable): %s", resp.Error.Message)
		}
		return false, fmt.Errorf("OpenRouter API error (%s): %s", code, resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return true, fmt.Errorf("empty choices in response (model=%s, id=%s)", resp.Model, resp.ID)
	}
	return false, nil
}

// injectNonce appends a unique comment to the last user message.
func (c *OpenRouterClient) injectNonce(req *openRouterRequest, attempt int) {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			nonce := uuid.New().String()[:16]
			req.Messages[i].Content += fmt.Sprintf("\n<!-- retry_%d_id: %s -->", attempt, nonce)
			return
		}
	}
}

// sleepWithJitter backs off exponentially (capped at 10s) with jitter, or
// for the server-provided delay when one was given.
func (c *OpenRouterClient) sleepWithJitter(ctx context.Context, attempt int, floor time.Duration) {
	delay := c.retryDelay * time.Duration(1<<attempt)
	if delay > 10*time.Second {
		delay = 10 * time.Second
	}
	delay = time.Duration(float64(delay) * (0.8 + 0.5*float64(time.Now().UnixNano()%1000)/1000))
	if delay < floor {
		delay = floor
	}

	select {
	case <-ctx.Done():
	case <-time.After(delay):
	}
}

var _ LLMClient = (*OpenRouterClient)(nil)
