package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sashabaranov/go-openai"

	"github.com/ZaguanLabs/potlai"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenAIClient(OpenAIConfig{APIKey: "test", BaseURL: srv.URL + "/v1"})
}

func writeCompletion(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"model": "gpt-4o-mini",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": %q}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 42, "completion_tokens": 7, "total_tokens": 49}
	}`, content)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error": {"message": %q, "type": "error"}}`, message)
}

func TestOpenAIClient_Complete(t *testing.T) {
	var got openai.ChatCompletionRequest
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		writeCompletion(w, "Кут $x$")
	})

	resp, err := client.Complete(context.Background(), CompletionRequest{
		System:  "translate",
		User:    "Angle $x$",
		Options: potlai.CompletionOptions{Temperature: 0.3, MaxOutputTokens: 300},
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if resp.Text != "Кут $x$" || resp.PromptTokens != 42 || resp.CompletionTokens != 7 {
		t.Errorf("unexpected completion: %+v", resp)
	}
	if got.Model != potlai.DefaultModel {
		t.Errorf("model = %q", got.Model)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "Angle $x$" {
		t.Errorf("messages = %+v", got.Messages)
	}
	if got.MaxTokens != 300 {
		t.Errorf("max_tokens = %d", got.MaxTokens)
	}
	if got.ResponseFormat != nil {
		t.Errorf("raw mode should not set a response format")
	}
}

func TestOpenAIClient_JSONMode(t *testing.T) {
	var got openai.ChatCompletionRequest
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		writeCompletion(w, `{"final_translation": "Кут"}`)
	})

	_, err := client.Complete(context.Background(), CompletionRequest{
		User:    "Angle",
		Options: potlai.CompletionOptions{JSON: true},
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got.ResponseFormat == nil || got.ResponseFormat.Type != openai.ChatCompletionResponseFormatTypeJSONObject {
		t.Errorf("response format = %+v", got.ResponseFormat)
	}
	if got.Temperature == 0 {
		t.Error("zero temperature must still be sent")
	}
}

func TestOpenAIClient_ErrorKinds(t *testing.T) {
	tests := []struct {
		status int
		want   potlai.ErrorKind
	}{
		{http.StatusTooManyRequests, potlai.KindRateLimit},
		{http.StatusInternalServerError, potlai.KindTransient},
		{http.StatusBadGateway, potlai.KindTransient},
		{http.StatusUnauthorized, potlai.KindFatal},
		{http.StatusBadRequest, potlai.KindFatal},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				writeError(w, tt.status, "backend says no")
			})

			_, err := client.Complete(context.Background(), CompletionRequest{User: "x"})
			var providerErr *potlai.ProviderError
			if !errors.As(err, &providerErr) {
				t.Fatalf("expected ProviderError, got %v", err)
			}
			if providerErr.Kind != tt.want {
				t.Errorf("kind = %s, want %s", providerErr.Kind, tt.want)
			}
		})
	}
}

func TestOpenAIClient_NoChoices(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id": "x", "choices": [], "usage": {"prompt_tokens": 1}}`)
	})

	_, err := client.Complete(context.Background(), CompletionRequest{User: "x"})
	if !potlai.IsRetryable(err) || potlai.IsRateLimited(err) {
		t.Errorf("empty choices should be transient, got %v", err)
	}
}

func TestKindForMessage(t *testing.T) {
	tests := []struct {
		msg  string
		want potlai.ErrorKind
	}{
		{"Rate limit reached for requests", potlai.KindRateLimit},
		{"dial tcp: connection refused", potlai.KindTransient},
		{"unexpected EOF", potlai.KindTransient},
		{"invalid model", potlai.KindFatal},
	}

	for _, tt := range tests {
		if got := kindForMessage(tt.msg); got != tt.want {
			t.Errorf("kindForMessage(%q) = %s, want %s", tt.msg, got, tt.want)
		}
	}
}

func TestMockClient(t *testing.T) {
	m := NewMockClient()
	m.Errors = []error{&potlai.ProviderError{Message: "slow down", Kind: potlai.KindRateLimit}}

	ctx := context.Background()
	if _, err := m.Complete(ctx, CompletionRequest{User: "Hello"}); !potlai.IsRateLimited(err) {
		t.Fatalf("first call should fail with the scripted error, got %v", err)
	}

	resp, err := m.Complete(ctx, CompletionRequest{User: "Hello"})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Text != "Привіт" || resp.PromptTokens != 10 || resp.CompletionTokens != 5 {
		t.Errorf("unexpected completion: %+v", resp)
	}

	resp, _ = m.Complete(ctx, CompletionRequest{User: "Unknown text"})
	if resp.Text != "[Unknown text]" {
		t.Errorf("Expected '[Unknown text]', got %q", resp.Text)
	}

	if m.CallCount() != 3 {
		t.Errorf("Expected CallCount 3, got %d", m.CallCount())
	}
	if m.LastRequest().User != "Unknown text" {
		t.Errorf("LastRequest = %+v", m.LastRequest())
	}

	m.Reset()
	if m.CallCount() != 0 {
		t.Error("Reset should clear the call count")
	}
}
