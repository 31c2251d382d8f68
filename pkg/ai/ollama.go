package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/johnquangdev/meeting-intelligence/pkg/config"
)

const (
	defaultOllamaBaseURL = "http://127.0.0.1:11434"
	defaultOllamaModel   = "nomic-embed-text"
)

// OllamaClient calls the Ollama HTTP API for embeddings.
type OllamaClient struct {
	baseURL    string
	model      string
	dimensions int
	httpClient *http.Client
}

// NewOllamaClient constructs an embedding client from config.
func NewOllamaClient(cfg *config.OllamaConfig) *OllamaClient {
	baseURL := defaultOllamaBaseURL
	model := defaultOllamaModel
	timeout := 60 * time.Second
	var dimensions int
	if cfg != nil {
		if v := strings.TrimSpace(cfg.BaseURL); v != "" {
			baseURL = v
		}
		if v := strings.TrimSpace(cfg.EmbeddingModel); v != "" {
			model = v
		}
		if cfg.Timeout > 0 {
			timeout = cfg.Timeout
		}
		dimensions = cfg.Dimensions
	}
	return &OllamaClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		dimensions: dimensions,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Embed generates an embedding for one text.
func (c *OllamaClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for several texts in one call, preserving order.
func (c *OllamaClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("embedding texts required")
	}
	for _, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("embedding text required")
		}
	}

	reqBody := ollamaEmbedRequest{
		Model: c.model,
		Input: texts,
	}
	if c.dimensions > 0 {
		reqBody.Dimensions = c.dimensions
	}

	var resp ollamaEmbedResponse
	status, err := c.doJSON(ctx, "/api/embed", reqBody, &resp)
	if err != nil {
		if status == http.StatusNotFound || status == http.StatusMethodNotAllowed {
			return c.embedLegacy(ctx, texts)
		}
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}
	return resp.Embeddings, nil
}

// embedLegacy uses /api/embeddings which accepts a single prompt per call.
func (c *OllamaClient) embedLegacy(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		var resp ollamaLegacyEmbedResponse
		if _, err := c.doJSON(ctx, "/api/embeddings", ollamaLegacyEmbedRequest{Model: c.model, Prompt: text}, &resp); err != nil {
			return nil, err
		}
		if len(resp.Embedding) == 0 {
			return nil, fmt.Errorf("ollama embedding response missing embedding")
		}
		out = append(out, resp.Embedding)
	}
	return out, nil
}

func (c *OllamaClient) doJSON(ctx context.Context, path string, payload any, out any) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp ollamaErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return resp.StatusCode, &StatusError{Service: "ollama", StatusCode: resp.StatusCode, Body: errResp.Error}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode ollama response: %w", err)
	}
	return resp.StatusCode, nil
}

type ollamaEmbedRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

type ollamaLegacyEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaLegacyEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

type ollamaErrorResponse struct {
	Error string `json:"error"`
}
