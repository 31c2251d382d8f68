package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/johnquangdev/meeting-intelligence/pkg/config"
)

func TestOllamaEmbedBatch_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("invalid payload: %v", err)
		}
		if req.Model != "nomic-embed-text" || len(req.Input) != 2 {
			t.Fatalf("unexpected request %+v", req)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"embeddings": [][]float32{{0.1, 0.2}, {0.3, 0.4}},
		})
	}))
	defer ts.Close()

	client := NewOllamaClient(&config.OllamaConfig{BaseURL: ts.URL, EmbeddingModel: "nomic-embed-text"})
	vectors, err := client.EmbedBatch(context.Background(), []string{"hello", "world"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vectors) != 2 || vectors[1][0] != 0.3 {
		t.Fatalf("unexpected vectors %v", vectors)
	}
}

func TestOllamaEmbed_FallsBackToLegacyEndpoint(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/embed":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"not found"}`))
		case "/api/embeddings":
			_, _ = w.Write([]byte(`{"embedding":[0.5,0.6,0.7]}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer ts.Close()

	client := NewOllamaClient(&config.OllamaConfig{BaseURL: ts.URL})
	vec, err := client.Embed(context.Background(), "budget review")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("unexpected vector %v", vec)
	}
}

func TestOllamaEmbedBatch_RejectsBlankText(t *testing.T) {
	client := NewOllamaClient(nil)
	if _, err := client.EmbedBatch(context.Background(), []string{"ok", "  "}); err == nil {
		t.Fatalf("expected error for blank text")
	}
}

func TestOllamaEmbedBatch_CountMismatch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[[0.1]]}`))
	}))
	defer ts.Close()

	client := NewOllamaClient(&config.OllamaConfig{BaseURL: ts.URL})
	if _, err := client.EmbedBatch(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatalf("expected mismatch error")
	}
}
