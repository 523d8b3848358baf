package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAnthropicChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %s, want /v1/messages", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("expected x-api-key=test-key, got %s", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") != "2023-06-01" {
			t.Errorf("expected anthropic-version=2023-06-01, got %s", r.Header.Get("anthropic-version"))
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("expected Content-Type=application/json, got %s", r.Header.Get("Content-Type"))
		}

		var req anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		if req.Model != "claude-3-5-sonnet-20240620" {
			t.Errorf("expected model claude-3-5-sonnet-20240620, got %s", req.Model)
		}
		if req.MaxTokens != 1000 {
			t.Errorf("expected max_tokens 1000, got %d", req.MaxTokens)
		}
		if req.Temperature == nil || *req.Temperature != 0.6 {
			t.Errorf("expected temperature 0.6, got %v", req.Temperature)
		}
		if req.System != "You follow tasks exactly." {
			t.Errorf("expected system prompt, got %q", req.System)
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Errorf("expected 1 user message, got %+v", req.Messages)
		}

		resp := anthropicResponse{
			ID:   "msg_123",
			Type: "message",
			Content: []anthropicRespItem{
				{Type: "text", Text: "ASSIGNMENT:\n"},
				{Type: "text", Text: "Emma"},
			},
			Usage: anthropicUsage{InputTokens: 15, OutputTokens: 8},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	p := NewAnthropicProvider(AnthropicConfig{
		APIKey:      "test-key",
		BaseURL:     server.URL,
		Temperature: 0.6,
	})

	resp, err := p.Chat(context.Background(), []Message{
		{Role: RoleSystem, Content: "You follow tasks exactly."},
		{Role: RoleUser, Content: "Who should take the API task?"},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if resp.Content != "ASSIGNMENT:\nEmma" {
		t.Errorf("expected joined text content, got %q", resp.Content)
	}
	if resp.Usage.InputTokens != 15 || resp.Usage.OutputTokens != 8 {
		t.Errorf("usage = %+v, want 15/8", resp.Usage)
	}
}

func TestAnthropicChatOmitsUnsetTemperature(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]any
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		if _, ok := raw["temperature"]; ok {
			t.Error("temperature sent although unset")
		}
		_, _ = fmt.Fprint(w, `{"id":"m","content":[{"type":"text","text":"ok"}]}`)
	}))
	defer server.Close()

	p := NewAnthropicProvider(AnthropicConfig{BaseURL: server.URL})
	if _, err := p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}); err != nil {
		t.Fatalf("Chat: %v", err)
	}
}

func TestAnthropicChatAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = fmt.Fprint(w, `{"error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
	}))
	defer server.Close()

	p := NewAnthropicProvider(AnthropicConfig{
		APIKey:  "bad-key",
		BaseURL: server.URL,
	})

	_, err := p.Chat(context.Background(), []Message{
		{Role: RoleUser, Content: "Hello"},
	})
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("expected error to mention 401, got: %v", err)
	}
}

func TestAnthropicChatEmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, `{"id":"msg_empty","content":[]}`)
	}))
	defer server.Close()

	p := NewAnthropicProvider(AnthropicConfig{BaseURL: server.URL})
	if _, err := p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}); err == nil {
		t.Fatal("expected error for response without text")
	}
}

func TestAnthropicProviderName(t *testing.T) {
	p := NewAnthropicProvider(AnthropicConfig{})
	if p.Name() != "anthropic" {
		t.Errorf("expected name 'anthropic', got %q", p.Name())
	}
}

func TestAnthropicDefaults(t *testing.T) {
	p := NewAnthropicProvider(AnthropicConfig{})
	if p.config.Model != defaultAnthropicModel {
		t.Errorf("expected default model %s, got %s", defaultAnthropicModel, p.config.Model)
	}
	if p.config.BaseURL != defaultAnthropicBaseURL {
		t.Errorf("expected default base URL %s, got %s", defaultAnthropicBaseURL, p.config.BaseURL)
	}
	if p.config.MaxTokens != defaultAnthropicMaxTokens {
		t.Errorf("expected default max tokens %d, got %d", defaultAnthropicMaxTokens, p.config.MaxTokens)
	}
}
