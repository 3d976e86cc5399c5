package openai

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/brandcraft/brandcraft/internal/provider"
)

func TestGenerateText_Mock(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "Hello from mock!"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 8, "total_tokens": 20}
		}`))
	}))
	defer server.Close()

	c, err := New(Config{APIKey: "test-key", BaseURL: server.URL, Model: "gpt-4o-mini"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	gen, err := c.GenerateText(context.Background(), "hi")
	if err != nil {
		t.Fatalf("GenerateText failed: %v", err)
	}
	if gen.Text != "Hello from mock!" {
		t.Errorf("expected 'Hello from mock!', got %s", gen.Text)
	}
	if gen.Usage.TotalTokens != 20 {
		t.Errorf("expected 20 total tokens, got %d", gen.Usage.TotalTokens)
	}
}

func TestGenerateText_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "chatcmpl-2", "object": "chat.completion", "choices": []}`))
	}))
	defer server.Close()

	c, err := New(Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "gpt-4o-mini",
		Retry:   provider.RetryPolicy{MaxAttempts: 1},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = c.GenerateText(context.Background(), "hi")
	if !errors.Is(err, provider.ErrEmptyResponse) {
		t.Errorf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestNew_MissingKey(t *testing.T) {
	_, err := New(Config{})
	if !errors.Is(err, provider.ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}
