package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const MockClientName = "mock"

// MockClient is an LLMClient for testing. It records every request.
type MockClient struct {
	Latency      time.Duration
	ShouldFail   bool
	FailAfter    int // Fail after N requests (0 = never)
	ResponseText string
	ResponseJSON json.RawMessage

	// Respond, when set, produces the response content for each request and
	// takes precedence over ResponseText/ResponseJSON.
	Respond func(req *ChatRequest) (string, error)

	requestCount atomic.Int64
	mu           sync.Mutex
	requests     []ChatRequest
}

// NewMockClient creates a new mock client with sensible defaults.
func NewMockClient() *MockClient {
	return &MockClient{
		ResponseText: "mock response",
	}
}

// Name returns the client identifier.
func (c *MockClient) Name() string {
	return MockClientName
}

// Chat records the request and returns the configured response.
func (c *MockClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()
	count := c.requestCount.Add(1)

	c.mu.Lock()
	c.requests = append(c.requests, *req)
	c.mu.Unlock()

	result := &ChatResult{
		RequestID: fmt.Sprintf("mock-%d", count),
		Provider:  MockClientName,
		ModelUsed: req.Model,
		Attempts:  1,
	}

	if c.ShouldFail {
		return result.failed(start, ErrorTypeMockFailure, fmt.Errorf("mock client configured to fail"))
	}
	if c.FailAfter > 0 && int(count) > c.FailAfter {
		return result.failed(start, ErrorTypeMockFailure, fmt.Errorf("mock client failed after %d requests", c.FailAfter))
	}

	if c.Latency > 0 {
		select {
		case <-time.After(c.Latency):
		case <-ctx.Done():
			return result.failed(start, ErrorTypeCancelled, ctx.Err())
		}
	} else if err := ctx.Err(); err != nil {
		return result.failed(start, ErrorTypeCancelled, err)
	}

	content := c.ResponseText
	if req.ResponseFormat != nil && len(c.ResponseJSON) > 0 {
		content = string(c.ResponseJSON)
	}
	if c.Respond != nil {
		var err error
		content, err = c.Respond(req)
		if err != nil {
			return result.failed(start, ErrorTypeMockFailure, err)
		}
	}

	result.Success = true
	result.Content = content
	result.ExecutionTime = time.Since(start)
	result.TotalTime = result.ExecutionTime

	promptTokens := 0
	for _, m := range req.Messages {
		promptTokens += len(m.Content) / 4
	}
	result.PromptTokens = promptTokens
	result.CompletionTokens = len(content) / 4
	result.TotalTokens = result.PromptTokens + result.CompletionTokens

	if req.ResponseFormat != nil {
		if parsed, err := ParseStructuredJSON(content); err == nil {
			result.ParsedJSON = parsed
		}
	}
	return result, nil
}

// RequestCount returns the number of requests made.
func (c *MockClient) RequestCount() int64 {
	return c.requestCount.Load()
}

// Requests returns a copy of every request received, in order.
func (c *MockClient) Requests() []ChatRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ChatRequest, len(c.requests))
	copy(out, c.requests)
	return out
}

// Reset clears recorded requests and the request counter.
func (c *MockClient) Reset() {
	c.requestCount.Store(0)
	c.mu.Lock()
	c.requests = nil
	c.mu.Unlock()
}

var _ LLMClient = (*MockClient)(nil)
