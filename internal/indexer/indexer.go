package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperjump/hiddenclasses/internal/config"
	"github.com/hyperjump/hiddenclasses/internal/embedding"
	"github.com/hyperjump/hiddenclasses/internal/models"
	"github.com/hyperjump/hiddenclasses/internal/vector"
	"github.com/hyperjump/hiddenclasses/pkg/utils"
	"go.uber.org/zap"
)

// DefaultBatchSize is the number of chunk texts sent per embedding request.
const DefaultBatchSize = 96

// DocumentSource lists every document to index.
type DocumentSource interface {
	FetchAll(ctx context.Context) ([]models.Document, error)
}

// BuildStats summarizes one index build.
type BuildStats struct {
	Documents int           `json:"documents"`
	Chunks    int           `json:"chunks"`
	Skipped   bool          `json:"skipped"`
	Duration  time.Duration `json:"duration"`
}

// Indexer rebuilds the vector index from the document source.
type Indexer struct {
	source    DocumentSource
	embedder  embedding.Embedder
	store     *vector.Store
	chunker   *Chunker
	batchSize int
	logger    *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for build progress.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithBatchSize sets the number of texts per embedding request.
func WithBatchSize(n int) IndexerOption {
	return func(idx *Indexer) {
		if n > 0 {
			idx.batchSize = n
		}
	}
}

// NewIndexer creates an indexer with the given dependencies.
func NewIndexer(
	source DocumentSource,
	embedder embedding.Embedder,
	store *vector.Store,
	cfg *config.SearchConfig,
	opts ...IndexerOption,
) *Indexer {
	idx := &Indexer{
		source:    source,
		embedder:  embedder,
		store:     store,
		chunker:   NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(idx)
	}
	idx.logger = utils.OrNop(idx.logger)
	return idx
}

// Build re-embeds every document and replaces the stored index pair.
// With no documents the existing files are left untouched and Skipped is set.
func (idx *Indexer) Build(ctx context.Context) (BuildStats, error) {
	start := time.Now()
	docs, err := idx.source.FetchAll(ctx)
	if err != nil {
		return BuildStats{}, fmt.Errorf("fetch documents: %w", err)
	}
	if len(docs) == 0 {
		idx.logger.Info("no documents to index; existing index left untouched")
		return BuildStats{Skipped: true, Duration: time.Since(start)}, nil
	}

	var chunks []models.Chunk
	for _, doc := range docs {
		doc.Content = Preprocess(doc.Content)
		docChunks := idx.chunker.Split(doc)
		idx.logger.Debug("indexer chunked document",
			zap.String("page_id", doc.ID),
			zap.String("title", doc.Title),
			zap.Int("chunks", len(docChunks)))
		chunks = append(chunks, docChunks...)
	}
	if len(chunks) == 0 {
		idx.logger.Info("documents produced no chunks; existing index left untouched", zap.Int("documents", len(docs)))
		return BuildStats{Documents: len(docs), Skipped: true, Duration: time.Since(start)}, nil
	}

	vectors, err := idx.embedChunks(ctx, chunks)
	if err != nil {
		return BuildStats{}, err
	}

	vecIndex, err := vector.NewMemoryIndex(idx.embedder.Dimensions())
	if err != nil {
		return BuildStats{}, err
	}
	ids := make([]string, len(chunks))
	for i, ch := range chunks {
		ids[i] = ch.ID
	}
	if err := vecIndex.Add(ctx, ids, vectors); err != nil {
		return BuildStats{}, fmt.Errorf("failed to index vectors: %w", err)
	}
	if err := idx.store.Save(vecIndex, chunks); err != nil {
		return BuildStats{}, fmt.Errorf("save index: %w", err)
	}

	stats := BuildStats{Documents: len(docs), Chunks: len(chunks), Duration: time.Since(start)}
	idx.logger.Info("index built",
		zap.Int("documents", stats.Documents),
		zap.Int("chunks", stats.Chunks),
		zap.String("index_path", idx.store.IndexPath),
		zap.Duration("duration", stats.Duration))
	return stats, nil
}

// embedChunks embeds chunk texts in batches and checks every vector against the
// embedder's declared dimension.
func (idx *Indexer) embedChunks(ctx context.Context, chunks []models.Chunk) ([][]float32, error) {
	dims := idx.embedder.Dimensions()
	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += idx.batchSize {
		end := min(start+idx.batchSize, len(chunks))
		texts := make([]string, 0, end-start)
		for _, ch := range chunks[start:end] {
			texts = append(texts, ch.Text)
		}
		embeddings, err := idx.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("failed to generate embeddings: %w", err)
		}
		if len(embeddings) != len(texts) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(embeddings), len(texts))
		}
		for i, v := range embeddings {
			if len(v) != dims {
				return nil, fmt.Errorf("%w: chunk %d embedded to %d dimensions, expected %d",
					vector.ErrDimensionMismatch, start+i, len(v), dims)
			}
		}
		vectors = append(vectors, embeddings...)
		idx.logger.Debug("indexer embedded batch", zap.Int("from", start), zap.Int("to", end))
	}
	return vectors, nil
}
