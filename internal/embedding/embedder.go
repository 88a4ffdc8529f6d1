// Package embedding provides text embedding through remote providers, a
// deterministic mock, and an LRU cache.
package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/hiddenclasses/internal/config"
	"go.uber.org/zap"
)

// ErrEmptyResponse is returned when a provider answers without vectors.
var ErrEmptyResponse = errors.New("embedding provider returned no vectors")

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// New builds the embedder selected by cfg.Provider, wrapped in an LRU cache
// when cfg.CacheSize is positive.
func New(cfg *config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	var e Embedder
	switch cfg.Provider {
	case "openai", "":
		e = NewOpenAIEmbedder(cfg)
	case "ollama":
		oe, err := NewOllamaEmbedder(cfg)
		if err != nil {
			return nil, err
		}
		e = oe
	case "mock":
		e = NewMockEmbedder(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
	if logger != nil {
		logger.Debug("embedder ready",
			zap.String("provider", cfg.Provider),
			zap.String("model", cfg.Model),
			zap.Int("dimensions", e.Dimensions()))
	}
	if cfg.CacheSize > 0 {
		return NewCachedEmbedder(e, cfg.CacheSize), nil
	}
	return e, nil
}

// batches splits texts into consecutive slices of at most size elements.
func batches(texts []string, size int) [][]string {
	if size <= 0 {
		size = len(texts)
	}
	var out [][]string
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		out = append(out, texts[start:end])
	}
	return out
}
