package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func openRouterReply(content string) map[string]any {
	return map[string]any{
		"id":    "test-id",
		"model": "openai/gpt-4o",
		"choices": []map[string]any{
			{
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]any{
			"prompt_tokens":     10,
			"completion_tokens": 8,
			"total_tokens":      18,
			"cost":              0.0004,
		},
	}
}

func TestOpenRouterClient_Chat(t *testing.T) {
	t.Run("successful chat", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/chat/completions" {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
			if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
				t.Errorf("unexpected authorization: %s", auth)
			}
			var req openRouterRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode request: %v", err)
			}
			if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
				t.Errorf("unexpected messages: %+v", req.Messages)
			}
			if req.Temperature != 0.3 {
				t.Errorf("Temperature = %v, want 0.3", req.Temperature)
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(openRouterReply("The inspector arrives."))
		}))
		defer server.Close()

		client := NewOpenRouterClient(OpenRouterConfig{APIKey: "test-key", BaseURL: server.URL})
		result, err := client.Chat(context.Background(), &ChatRequest{
			Messages:    SystemAndUser("You summarize books.", "Summarize chapter one."),
			Temperature: 0.3,
		})
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if !result.Success {
			t.Error("expected Success = true")
		}
		if result.Content != "The inspector arrives." {
			t.Errorf("Content = %q", result.Content)
		}
		if result.TotalTokens != 18 || result.CostUSD != 0.0004 {
			t.Errorf("usage not recorded: %+v", result)
		}
		if result.Attempts != 1 {
			t.Errorf("Attempts = %d, want 1", result.Attempts)
		}
	})

	t.Run("structured output", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req openRouterRequest
			json.NewDecoder(r.Body).Decode(&req)
			if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_schema" {
				t.Errorf("response_format not forwarded: %+v", req.ResponseFormat)
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(openRouterReply("```json\n{\"story_so_far\": \"x\"}\n```"))
		}))
		defer server.Close()

		client := NewOpenRouterClient(OpenRouterConfig{APIKey: "test-key", BaseURL: server.URL})
		result, err := client.Chat(context.Background(), &ChatRequest{
			Messages: []Message{{Role: "user", Content: "update context"}},
			ResponseFormat: &ResponseFormat{
				Type:       "json_schema",
				JSONSchema: json.RawMessage(`{"name":"ctx","strict":true,"schema":{"type":"object"}}`),
			},
		})
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if string(result.ParsedJSON) != `{"story_so_far":"x"}` {
			t.Errorf("ParsedJSON = %s", result.ParsedJSON)
		}
	})

	t.Run("retries server errors with nonce", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req openRouterRequest
			json.NewDecoder(r.Body).Decode(&req)
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			if !strings.Contains(req.Messages[0].Content, "retry_1_id") {
				t.Errorf("retry should carry a nonce, got %q", req.Messages[0].Content)
			}
			json.NewEncoder(w).Encode(openRouterReply("ok"))
		}))
		defer server.Close()

		client := NewOpenRouterClient(OpenRouterConfig{APIKey: "k", BaseURL: server.URL, RetryDelay: time.Millisecond})
		result, err := client.Chat(context.Background(), &ChatRequest{
			Messages: []Message{{Role: "user", Content: "hello"}},
		})
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if result.Attempts != 2 {
			t.Errorf("Attempts = %d, want 2", result.Attempts)
		}
	})

	t.Run("client error is not retried", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":{"message":"bad key"}}`))
		}))
		defer server.Close()

		client := NewOpenRouterClient(OpenRouterConfig{APIKey: "k", BaseURL: server.URL, RetryDelay: time.Millisecond})
		result, err := client.Chat(context.Background(), &ChatRequest{
			Messages: []Message{{Role: "user", Content: "hello"}},
		})
		var se *StatusError
		if !errors.As(err, &se) || se.StatusCode != http.StatusUnauthorized {
			t.Fatalf("expected 401 StatusError, got %v", err)
		}
		if IsTransient(err) {
			t.Error("401 should not be transient")
		}
		if calls.Load() != 1 {
			t.Errorf("server called %d times, want 1", calls.Load())
		}
		if result.Success || result.ErrorType != ErrorTypeHTTP {
			t.Errorf("unexpected result: %+v", result)
		}
	})

	t.Run("rate limited", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error": {"message": "Rate limit exceeded"}}`))
		}))
		defer server.Close()

		client := NewOpenRouterClient(OpenRouterConfig{
			APIKey:     "k",
			BaseURL:    server.URL,
			MaxRetries: 1,
			RetryDelay: time.Millisecond,
		})
		result, err := client.Chat(context.Background(), &ChatRequest{
			Messages: []Message{{Role: "user", Content: "test"}},
		})
		var rl *RateLimitError
		if !errors.As(err, &rl) {
			t.Fatalf("expected RateLimitError, got %v", err)
		}
		if !IsTransient(err) {
			t.Error("rate limit should be transient")
		}
		if result.ErrorType != ErrorTypeRateLimited {
			t.Errorf("ErrorType = %s, want %s", result.ErrorType, ErrorTypeRateLimited)
		}
	})

	t.Run("context cancellation", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := NewOpenRouterClient(OpenRouterConfig{APIKey: "k", BaseURL: server.URL})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := client.Chat(ctx, &ChatRequest{Messages: []Message{{Role: "user", Content: "test"}}})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if IsTransient(err) {
			t.Error("cancellation should not be transient")
		}
	})
}

func TestOpenRouterClient_Defaults(t *testing.T) {
	client := NewOpenRouterClient(OpenRouterConfig{APIKey: "test-key"})
	if client.Name() != OpenRouterName {
		t.Errorf("Name() = %s, want %s", client.Name(), OpenRouterName)
	}
	if client.baseURL != OpenRouterBaseURL {
		t.Errorf("baseURL = %s, want %s", client.baseURL, OpenRouterBaseURL)
	}
	if client.Model() != "openai/gpt-4o" {
		t.Errorf("Model() = %s", client.Model())
	}
	if client.maxRetries != 3 || client.retryDelay != time.Second {
		t.Errorf("unexpected retry defaults: %d, %v", client.maxRetries, client.retryDelay)
	}
}

// TestOpenRouterIntegration runs a real call against the OpenRouter API.
// Requires OPENROUTER_API_KEY.
func TestOpenRouterIntegration(t *testing.T) {
	cfg := LoadTestConfig()
	if !cfg.HasOpenRouter() {
		t.Skip("OPENROUTER_API_KEY not set - skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	result, err := cfg.NewOpenRouterClient().Chat(ctx, &ChatRequest{
		Messages:    []Message{{Role: "user", Content: "Reply with the single word: ready"}},
		Temperature: 0.3,
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if !result.Success || result.Content == "" {
		t.Errorf("unexpected result: %+v", result)
	}
}
