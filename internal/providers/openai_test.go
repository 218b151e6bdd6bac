package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOpenAIClient_Chat(t *testing.T) {
	t.Run("json schema request", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decode request: %v", err)
			}
			if body["model"] != "gpt-4o" {
				t.Errorf("model = %v", body["model"])
			}
			rf, _ := body["response_format"].(map[string]any)
			if rf["type"] != "json_schema" {
				t.Errorf("response_format = %v", body["response_format"])
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-4o",
				"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"{\"story_so_far\":\"x\"}"}}],
				"usage":{"prompt_tokens":12,"completion_tokens":6,"total_tokens":18}
			}`))
		}))
		defer server.Close()

		client := NewOpenAIClient(OpenAIConfig{APIKey: "test-key", BaseURL: server.URL})
		result, err := client.Chat(context.Background(), &ChatRequest{
			Messages:    SystemAndUser("system", "update the context"),
			Temperature: 0.3,
			ResponseFormat: &ResponseFormat{
				Type:       "json_schema",
				JSONSchema: json.RawMessage(`{"name":"ctx","strict":true,"schema":{"type":"object"}}`),
			},
		})
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if result.Provider != OpenAIName || result.TotalTokens != 18 {
			t.Errorf("unexpected result: %+v", result)
		}
		if string(result.ParsedJSON) != `{"story_so_far":"x"}` {
			t.Errorf("ParsedJSON = %s", result.ParsedJSON)
		}
	})

	t.Run("api error maps to StatusError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"message":"bad request","type":"invalid_request_error","code":"bad","param":""}}`))
		}))
		defer server.Close()

		client := NewOpenAIClient(OpenAIConfig{APIKey: "test-key", BaseURL: server.URL})
		result, err := client.Chat(context.Background(), &ChatRequest{
			Messages: []Message{{Role: "user", Content: "hi"}},
		})
		var se *StatusError
		if !errors.As(err, &se) || se.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400 StatusError, got %v", err)
		}
		if result.Success {
			t.Error("expected Success = false")
		}
	})
}

func TestOpenAIResponseFormat(t *testing.T) {
	rf, err := openAIResponseFormat(&ResponseFormat{Type: "json_object"})
	if err != nil {
		t.Fatal(err)
	}
	if rf.OfJSONObject == nil || rf.OfJSONSchema != nil {
		t.Errorf("expected json_object format, got %+v", rf)
	}

	rf, err = openAIResponseFormat(&ResponseFormat{
		Type:       "json_schema",
		JSONSchema: json.RawMessage(`{"name":"fiction_extraction","strict":true,"schema":{"type":"object"}}`),
	})
	if err != nil {
		t.Fatal(err)
	}
	if rf.OfJSONSchema == nil || rf.OfJSONSchema.JSONSchema.Name != "fiction_extraction" {
		t.Errorf("expected named json_schema format, got %+v", rf)
	}
}
