package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/arturoeanton/go-survey-indexer/internal/port"
)

// OllamaEndpointConfig holds the configuration for a single Ollama endpoint.
type OllamaEndpointConfig struct {
	BaseURL string // e.g. http://localhost:11434 or https://api.ollama.com
	Model   string // e.g. nomic-embed-text, qwen3
	Token   string // Bearer token for Ollama Cloud (empty = no auth)
}

// ollamaClient is the shared REST transport for the embed and chat adapters.
type ollamaClient struct {
	cfg        OllamaEndpointConfig
	httpClient *http.Client
}

// post is a helper for POST requests to an Ollama endpoint (with optional bearer token).
func (c *ollamaClient) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama API error (%d): %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}

// OllamaEmbedder implements port.Embedder using the Ollama /api/embed endpoint.
type OllamaEmbedder struct {
	client    ollamaClient
	dimension int
}

// NewOllamaEmbedder creates an embedder. A positive dimension makes every
// returned vector length-checked.
func NewOllamaEmbedder(cfg OllamaEndpointConfig, dimension int) *OllamaEmbedder {
	return &OllamaEmbedder{
		client:    ollamaClient{cfg: cfg, httpClient: &http.Client{}},
		dimension: dimension,
	}
}

// ModelName returns the embedding model identifier.
func (o *OllamaEmbedder) ModelName() string {
	return o.client.cfg.Model
}

// Embed generates a vector embedding for the given text.
func (o *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := o.embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("ollama embed: %w", port.ErrEmptyEmbedding)
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one call.
func (o *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors, err := o.embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("ollama embed batch: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("ollama embed batch: got %d embeddings for %d inputs", len(vectors), len(texts))
	}
	return vectors, nil
}

func (o *OllamaEmbedder) embed(ctx context.Context, input interface{}) ([][]float32, error) {
	payload := map[string]interface{}{
		"model": o.client.cfg.Model,
		"input": input,
	}

	body, err := o.client.post(ctx, "/api/embed", payload)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	if o.dimension > 0 {
		for _, v := range resp.Embeddings {
			if len(v) != o.dimension {
				return nil, fmt.Errorf("%w: model %s returned %d, want %d", port.ErrDimensionMismatch, o.client.cfg.Model, len(v), o.dimension)
			}
		}
	}
	return resp.Embeddings, nil
}

// OllamaSummarizer implements port.Summarizer using the Ollama /api/chat endpoint.
type OllamaSummarizer struct {
	client       ollamaClient
	systemPrompt string
}

// NewOllamaSummarizer creates a chat-backed summarizer.
func NewOllamaSummarizer(cfg OllamaEndpointConfig) *OllamaSummarizer {
	return &OllamaSummarizer{
		client:       ollamaClient{cfg: cfg, httpClient: &http.Client{}},
		systemPrompt: summarySystemPrompt,
	}
}

// ModelName returns the chat model identifier.
func (o *OllamaSummarizer) ModelName() string {
	return o.client.cfg.Model
}

// Summarize sends the prompt as a single non-streaming chat turn.
func (o *OllamaSummarizer) Summarize(ctx context.Context, prompt string) (string, error) {
	messages := []map[string]string{
		{"role": "system", "content": o.systemPrompt},
		{"role": "user", "content": prompt},
	}

	payload := map[string]interface{}{
		"model":    o.client.cfg.Model,
		"messages": messages,
		"stream":   false,
	}

	body, err := o.client.post(ctx, "/api/chat", payload)
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}

	var resp struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("ollama chat decode: %w", err)
	}

	return strings.TrimSpace(stripThinking(resp.Message.Content)), nil
}

// stripThinking drops a leading <think>...</think> block emitted by reasoning models.
func stripThinking(s string) string {
	const openTag, closeTag = "<think>", "</think>"
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, openTag) {
		return s
	}
	if i := strings.Index(t, closeTag); i >= 0 {
		return t[i+len(closeTag):]
	}
	return s
}
