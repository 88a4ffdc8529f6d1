// Package generate produces post text with a language model and a matching
// illustration with an image model.
package generate

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/hiddenclasses/internal/llm"
	"github.com/hyperjump/hiddenclasses/pkg/utils"
	"go.uber.org/zap"
)

// Disclaimer is appended to every generated post.
const Disclaimer = "\n\n⚠️This post was generated using AI."

// MaxPostChars is the length the model is asked to stay within.
const MaxPostChars = 500

const postPrompt = `You are HiddenClasses, an AI that creates playful, exploratory career posts.

Context from Notion:
%s

Content to post:
%s

Example posts:
%s

Write ONE Mastodon post (max %d characters), playful, curious, and encouraging.`

// PostGenerator writes one social post from source content, example posts and
// optional retrieved context.
type PostGenerator struct {
	llm    llm.Client
	logger *zap.Logger
}

// PostOption configures a PostGenerator.
type PostOption func(*PostGenerator)

// WithPostLogger sets the logger.
func WithPostLogger(l *zap.Logger) PostOption {
	return func(g *PostGenerator) { g.logger = l }
}

// NewPostGenerator creates a generator backed by client.
func NewPostGenerator(client llm.Client, opts ...PostOption) *PostGenerator {
	g := &PostGenerator{llm: client}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = utils.OrNop(g.logger)
	return g
}

// PostPrompt builds the prompt sent to the language model.
func PostPrompt(content, examples, retrieved string) string {
	return fmt.Sprintf(postPrompt, retrieved, content, examples, MaxPostChars)
}

// Generate makes a single model call and appends Disclaimer. The length limit is
// requested, not enforced; an overlong answer is logged and kept.
func (g *PostGenerator) Generate(ctx context.Context, content, examples, retrieved string) (string, error) {
	body, err := g.llm.Complete(ctx, []llm.Message{llm.User(PostPrompt(content, examples, retrieved))})
	if err != nil {
		return "", fmt.Errorf("generate post: %w", err)
	}
	body = strings.TrimSpace(body)
	if n := utils.CharCount(body); n > MaxPostChars {
		g.logger.Warn("generated post exceeds requested length",
			zap.Int("chars", n),
			zap.Int("limit", MaxPostChars))
	}
	g.logger.Debug("generated post", zap.String("preview", utils.Truncate(body, 80)))
	return body + Disclaimer, nil
}
