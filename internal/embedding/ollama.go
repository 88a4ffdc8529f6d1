package embedding

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/hyperjump/hiddenclasses/internal/config"
	ollama "github.com/ollama/ollama/api"
)

// OllamaEmbedder embeds text with a local Ollama server.
type OllamaEmbedder struct {
	client     *ollama.Client
	model      string
	dimensions int
	batchSize  int
}

var _ Embedder = (*OllamaEmbedder)(nil)

// NewOllamaEmbedder connects to cfg.BaseURL, falling back to OLLAMA_HOST and then localhost.
func NewOllamaEmbedder(cfg *config.EmbeddingConfig) (*OllamaEmbedder, error) {
	host := cfg.BaseURL
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	if host == "" {
		host = "http://localhost:11434"
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}
	model := cfg.Model
	if model == "" {
		model = "nomic-embed-text"
	}
	return &OllamaEmbedder{
		client:     ollama.NewClient(u, &http.Client{Timeout: 60 * time.Second}),
		model:      model,
		dimensions: cfg.Dimensions,
		batchSize:  cfg.BatchSize,
	}, nil
}

// Embed returns the embedding of a single text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds texts in batches, preserving order.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, batch := range batches(texts, e.batchSize) {
		res, err := e.client.Embed(ctx, &ollama.EmbedRequest{
			Model: e.model,
			Input: batch,
		})
		if err != nil {
			return nil, fmt.Errorf("ollama embed: %w", err)
		}
		if res == nil || len(res.Embeddings) != len(batch) {
			return nil, ErrEmptyResponse
		}
		out = append(out, res.Embeddings...)
	}
	return out, nil
}

// Dimensions returns the configured embedding dimension.
func (e *OllamaEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op.
func (e *OllamaEmbedder) Close() error {
	return nil
}
