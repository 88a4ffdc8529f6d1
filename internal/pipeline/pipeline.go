// Package pipeline runs one pass of the publish flow: load content, retrieve
// context, write the post, illustrate it, wait for review and publish.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hyperjump/hiddenclasses/internal/approval"
	"github.com/hyperjump/hiddenclasses/internal/models"
	"github.com/hyperjump/hiddenclasses/internal/notion"
	"github.com/hyperjump/hiddenclasses/pkg/utils"
	"go.uber.org/zap"
)

// EntrySource loads the row to post about.
type EntrySource interface {
	FetchFirst(ctx context.Context) (models.Entry, error)
}

// Retriever returns related context for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) (string, error)
}

// PostWriter writes the post text.
type PostWriter interface {
	Generate(ctx context.Context, content, examples, retrieved string) (string, error)
}

// Illustrator renders an image for a post and returns its path.
type Illustrator interface {
	Generate(ctx context.Context, postText string) (string, error)
}

// Reviewer blocks until a human approves or rejects the post.
type Reviewer interface {
	Review(ctx context.Context, postText string) (approval.Decision, error)
}

// Publisher posts approved content.
type Publisher interface {
	Publish(ctx context.Context, text, imagePath string) (*models.Published, error)
}

// Stages are the collaborators of a run. Retriever and Illustrator are optional;
// a nil stage is skipped.
type Stages struct {
	Source      EntrySource
	Retriever   Retriever
	Writer      PostWriter
	Illustrator Illustrator
	Reviewer    Reviewer
	Publisher   Publisher
}

// Result describes the outcome of one run.
type Result struct {
	Skipped   bool                  `json:"skipped"`
	Post      *models.GeneratedPost `json:"post,omitempty"`
	Decision  *approval.Decision    `json:"decision,omitempty"`
	Published *models.Published     `json:"published,omitempty"`
	Duration  time.Duration         `json:"duration"`
}

// Pipeline wires the stages together.
type Pipeline struct {
	stages Stages
	topK   int
	logger *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithTopK sets how many chunks are retrieved as context.
func WithTopK(k int) Option {
	return func(p *Pipeline) { p.topK = k }
}

// New creates a pipeline. Source, Writer, Reviewer and Publisher are required.
func New(stages Stages, opts ...Option) (*Pipeline, error) {
	if stages.Source == nil || stages.Writer == nil || stages.Reviewer == nil || stages.Publisher == nil {
		return nil, errors.New("pipeline: source, writer, reviewer and publisher are required")
	}
	p := &Pipeline{stages: stages, topK: 5}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = utils.OrNop(p.logger)
	return p, nil
}

// Run executes the flow once. An empty content database is not an error: the
// run is reported as skipped. A rejected post is dropped and the decision returned.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	res := &Result{}
	defer func() { res.Duration = time.Since(start) }()

	entry, err := p.stages.Source.FetchFirst(ctx)
	if errors.Is(err, notion.ErrNoRows) {
		p.logger.Info("no content to post; skipping run")
		res.Skipped = true
		return res, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch content: %w", err)
	}

	var retrieved string
	if p.stages.Retriever != nil {
		retrieved, err = p.stages.Retriever.Retrieve(ctx, entry.Content, p.topK)
		if err != nil {
			return nil, fmt.Errorf("retrieve context: %w", err)
		}
		p.logger.Debug("context retrieved", zap.Int("chars", utils.CharCount(retrieved)))
	}

	text, err := p.stages.Writer.Generate(ctx, entry.Content, entry.Examples, retrieved)
	if err != nil {
		return nil, fmt.Errorf("write post: %w", err)
	}
	res.Post = &models.GeneratedPost{Text: text}

	if p.stages.Illustrator != nil {
		path, err := p.stages.Illustrator.Generate(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("generate image: %w", err)
		}
		res.Post.ImagePath = path
	}

	decision, err := p.stages.Reviewer.Review(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("review post: %w", err)
	}
	res.Decision = &decision
	if decision.Verdict != approval.Approve {
		p.logger.Info("post rejected", zap.String("reason", decision.Reason))
		return res, nil
	}

	pub, err := p.stages.Publisher.Publish(ctx, text, res.Post.ImagePath)
	if err != nil {
		return nil, fmt.Errorf("publish post: %w", err)
	}
	res.Published = pub
	return res, nil
}
