package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/johnquangdev/meeting-intelligence/pkg/config"
)

func TestGroqComplete_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/openai/v1/chat/completions" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Fatalf("unexpected auth header %q", got)
		}
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("invalid payload: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Fatalf("unexpected messages %+v", req.Messages)
		}
		if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_object" {
			t.Fatalf("expected json response format")
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"topics\":[\"budget\"]}"}}]}`))
	}))
	defer ts.Close()

	client := NewGroqClient(&config.GroqConfig{APIKey: "test-key", BaseURL: ts.URL, Model: "test-model"})
	out, err := client.Complete(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if out != `{"topics":["budget"]}` {
		t.Fatalf("unexpected content %s", out)
	}
}

func TestGroqComplete_StatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer ts.Close()

	client := NewGroqClient(&config.GroqConfig{APIKey: "k", BaseURL: ts.URL})
	_, err := client.Complete(context.Background(), "s", "u")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusTooManyRequests || !statusErr.Temporary() {
		t.Fatalf("expected temporary 429, got %+v", statusErr)
	}
}

func TestGroqComplete_EmptyChoices(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer ts.Close()

	client := NewGroqClient(&config.GroqConfig{APIKey: "k", BaseURL: ts.URL})
	if _, err := client.Complete(context.Background(), "s", "u"); err == nil {
		t.Fatalf("expected error for empty choices")
	}
}
