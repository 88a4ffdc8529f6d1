package main

import (
	"context"
	"fmt"
	"io"

	"github.com/hyperjump/hiddenclasses/internal/approval"
	"github.com/hyperjump/hiddenclasses/internal/config"
	"github.com/hyperjump/hiddenclasses/internal/embedding"
	"github.com/hyperjump/hiddenclasses/internal/generate"
	"github.com/hyperjump/hiddenclasses/internal/indexer"
	"github.com/hyperjump/hiddenclasses/internal/llm"
	"github.com/hyperjump/hiddenclasses/internal/notion"
	"github.com/hyperjump/hiddenclasses/internal/pipeline"
	"github.com/hyperjump/hiddenclasses/internal/reply"
	"github.com/hyperjump/hiddenclasses/internal/retriever"
	"github.com/hyperjump/hiddenclasses/internal/social"
	"github.com/hyperjump/hiddenclasses/internal/storage"
	"github.com/hyperjump/hiddenclasses/internal/vector"
	"go.uber.org/zap"
)

// Components holds the shared collaborators and builds the flows on demand,
// so a command only needs credentials for the services it touches.
type Components struct {
	cfg    *config.Config
	logger *zap.Logger

	Source   *notion.Source
	Embedder embedding.Embedder
	Store    *vector.Store

	mastodon *social.Client
	closers  []io.Closer
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	source, err := notion.NewSource(&cfg.Notion, notion.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize notion: %w", err)
	}
	embedder, err := embedding.New(&cfg.Embedding, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	return &Components{
		cfg:      cfg,
		logger:   logger,
		Source:   source,
		Embedder: embedder,
		Store:    vector.NewStore(cfg.Storage.IndexPath, cfg.Storage.MetadataPath),
		closers:  []io.Closer{embedder},
	}, nil
}

// Close releases every client opened by the components.
func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			c.logger.Warn("close failed", zap.Error(err))
		}
	}
	c.closers = nil
}

// Indexer builds the index from the content database.
func (c *Components) Indexer() *indexer.Indexer {
	return indexer.NewIndexer(c.Source, c.Embedder, c.Store, &c.cfg.Search,
		indexer.WithLogger(c.logger),
		indexer.WithBatchSize(c.cfg.Embedding.BatchSize),
	)
}

// Status reports the persisted state.
func (c *Components) Status() (*storage.Status, error) {
	return storage.Inspect(&c.cfg.Storage, c.Embedder.Dimensions())
}

func (c *Components) social() (*social.Client, error) {
	if c.mastodon != nil {
		return c.mastodon, nil
	}
	client, err := social.NewClient(&c.cfg.Mastodon, social.WithLogger(c.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize mastodon: %w", err)
	}
	c.mastodon = client
	return client, nil
}

func (c *Components) llm(ctx context.Context, model string) (llm.Client, error) {
	client, err := llm.New(ctx, &c.cfg.LLM, model, c.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize llm: %w", err)
	}
	c.closers = append(c.closers, client)
	return client, nil
}

// Pipeline builds the publish flow.
func (c *Components) Pipeline(ctx context.Context) (*pipeline.Pipeline, error) {
	model, err := c.llm(ctx, c.cfg.LLM.Model)
	if err != nil {
		return nil, err
	}
	masto, err := c.social()
	if err != nil {
		return nil, err
	}
	channel, err := approval.NewTelegramChannel(&c.cfg.Telegram, approval.WithTelegramLogger(c.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telegram: %w", err)
	}

	stages := pipeline.Stages{
		Source: c.Source,
		Writer: generate.NewPostGenerator(model, generate.WithPostLogger(c.logger)),
		Reviewer: approval.NewGate(channel,
			approval.WithLogger(c.logger),
			approval.WithPollInterval(c.cfg.Telegram.PollInterval),
			approval.WithTimeout(c.cfg.Telegram.ReviewTimeout),
		),
		Publisher: social.NewPublisher(masto),
	}
	if c.cfg.Search.EnabledOrDefault() {
		stages.Retriever = retriever.New(c.Store, c.Embedder, retriever.WithLogger(c.logger))
	}
	if c.cfg.Image.EnabledOrDefault() {
		images, err := generate.NewImageGenerator(&c.cfg.Image, c.cfg.Storage.ImageDir, generate.WithImageLogger(c.logger))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize image generator: %w", err)
		}
		stages.Illustrator = images
	}
	return pipeline.New(stages, pipeline.WithLogger(c.logger), pipeline.WithTopK(c.cfg.Search.TopK))
}

// ReplyEngine builds the reply flow.
func (c *Components) ReplyEngine(ctx context.Context) (*reply.Engine, error) {
	model, err := c.llm(ctx, c.cfg.LLM.ReplyModel)
	if err != nil {
		return nil, err
	}
	masto, err := c.social()
	if err != nil {
		return nil, err
	}
	return reply.NewEngine(c.Source, masto, model, &c.cfg.Reply, reply.WithLogger(c.logger)), nil
}
