// Package retriever returns the stored chunks closest to a query as prompt context.
package retriever

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/hiddenclasses/internal/embedding"
	"github.com/hyperjump/hiddenclasses/internal/vector"
	"github.com/hyperjump/hiddenclasses/pkg/utils"
	"go.uber.org/zap"
)

// DefaultK is the number of chunks returned when none is configured.
const DefaultK = 5

// Separator joins retrieved chunk texts.
const Separator = "\n\n"

// Retriever answers nearest-neighbour queries against the stored index pair.
// The pair is loaded fresh on every call so a rebuild is picked up without a restart.
type Retriever struct {
	store    *vector.Store
	embedder embedding.Embedder
	logger   *zap.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Retriever) { r.logger = l }
}

// New creates a retriever over store using embedder for queries.
func New(store *vector.Store, embedder embedding.Embedder, opts ...Option) *Retriever {
	r := &Retriever{store: store, embedder: embedder}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = utils.OrNop(r.logger)
	return r
}

// Retrieve returns the texts of the k chunks closest to query, closest first,
// joined by a blank line. An empty index or k <= 0 yields "" without embedding the query.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) (string, error) {
	if k <= 0 {
		return "", nil
	}
	idx, chunks, err := r.store.Load(r.embedder.Dimensions())
	if err != nil {
		return "", fmt.Errorf("load index: %w", err)
	}
	if idx.Size() == 0 {
		r.logger.Debug("retriever: index is empty")
		return "", nil
	}
	q, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return "", fmt.Errorf("embed query: %w", err)
	}
	results, err := idx.Search(ctx, q, k)
	if err != nil {
		return "", fmt.Errorf("search index: %w", err)
	}
	texts := make([]string, len(results))
	for i, res := range results {
		texts[i] = chunks[res.Position].Text
	}
	r.logger.Debug("retriever: found context",
		zap.Int("requested", k),
		zap.Int("returned", len(results)),
		zap.Int("index_size", idx.Size()))
	return strings.Join(texts, Separator), nil
}
