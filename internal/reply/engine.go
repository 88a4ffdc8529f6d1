// Package reply finds career-related posts on the social network and drafts,
// and optionally publishes, short replies in the HiddenClasses voice.
package reply

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperjump/hiddenclasses/internal/config"
	"github.com/hyperjump/hiddenclasses/internal/llm"
	"github.com/hyperjump/hiddenclasses/internal/models"
	"github.com/hyperjump/hiddenclasses/internal/notion"
	"github.com/hyperjump/hiddenclasses/pkg/utils"
	"go.uber.org/zap"
)

// MaxReplyChars is the reply length the model is asked to stay within.
const MaxReplyChars = 400

const systemPrompt = `You are the voice of HiddenClasses.

HiddenClasses is an AI-run media project that surfaces overlooked,
adjacent, and unusual career paths and micro-skills.
Careers are framed as exploratory, non-linear, and optional.

About HiddenClasses:
%s

Guidelines:
- Be curious, not corrective
- Avoid hustle or optimization language
- Never tell someone what they *should* do
- Replies should feel like a thoughtful side note
- Mention HiddenClasses only if genuinely relevant
- Max %d characters
- Calm, warm, human tone

For each post:
- Decide whether replying makes sense
- Assign a relevance score (0.0-1.0)
- Explain your reasoning briefly
- Write the reply text`

const userPrompt = `Generate responses for the following Mastodon posts.
Return one response per post in order.

Posts:
%s`

// ContextSource supplies the business description used in the system prompt.
type ContextSource interface {
	FetchFirst(ctx context.Context) (models.Entry, error)
}

// Network searches statuses and posts replies.
type Network interface {
	SearchStatuses(ctx context.Context, query string) ([]models.Candidate, error)
	Reply(ctx context.Context, inReplyToID, text string) (*models.Published, error)
}

// batch is the structured answer: one judgment per post, in order.
type batch struct {
	Responses []models.Judgment `json:"responses"`
}

// Engine runs the reply flow.
type Engine struct {
	source  ContextSource
	network Network
	llm     llm.Client
	cfg     config.ReplyConfig
	logger  *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates a reply engine.
func NewEngine(source ContextSource, network Network, client llm.Client, cfg *config.ReplyConfig, opts ...Option) *Engine {
	e := &Engine{source: source, network: network, llm: client, cfg: *cfg}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = utils.OrNop(e.logger)
	if len(e.cfg.Keywords) == 0 {
		e.cfg.Keywords = config.DefaultKeywords
	}
	if e.cfg.MaxPosts <= 0 {
		e.cfg.MaxPosts = 5
	}
	return e
}

// MinRelevance is the score a reply needs before it is published.
func (e *Engine) MinRelevance() float64 { return e.cfg.MinRelevance }

// Run searches for candidates, asks the model for one judgment per candidate,
// and, when publish is true, posts every reply that clears the relevance bar.
// With no candidates it returns an empty list without calling the model.
func (e *Engine) Run(ctx context.Context, publish bool) ([]models.GeneratedReply, error) {
	candidates, err := e.Candidates(ctx)
	if err != nil {
		return nil, err
	}
	e.logger.Info("reply candidates found", zap.Int("count", len(candidates)))
	if len(candidates) == 0 {
		return []models.GeneratedReply{}, nil
	}

	business, err := e.businessContext(ctx)
	if err != nil {
		return nil, err
	}
	judgments, err := e.judge(ctx, candidates, business)
	if err != nil {
		return nil, err
	}

	n := min(len(candidates), len(judgments))
	if len(candidates) != len(judgments) {
		e.logger.Warn("judgment count does not match post count",
			zap.Int("posts", len(candidates)),
			zap.Int("judgments", len(judgments)))
	}
	replies := make([]models.GeneratedReply, 0, n)
	for i := range n {
		j := judgments[i]
		j.RelevanceScore = utils.Clamp01(j.RelevanceScore)
		replies = append(replies, models.GeneratedReply{Candidate: candidates[i], Judgment: j})
	}

	if !publish {
		return replies, nil
	}
	for i := range replies {
		r := &replies[i]
		if !r.Publishable(e.cfg.MinRelevance) {
			e.logger.Debug("reply below threshold",
				zap.String("status", r.Candidate.ID),
				zap.Float64("relevance", r.Judgment.RelevanceScore))
			continue
		}
		pub, err := e.network.Reply(ctx, r.Candidate.ID, r.Judgment.ResponseText)
		if err != nil {
			return replies, fmt.Errorf("reply to %s: %w", r.Candidate.ID, err)
		}
		r.Published = pub
		e.logger.Info("reply posted", zap.String("status", r.Candidate.ID), zap.String("url", pub.URL))
	}
	return replies, nil
}

// Candidates searches each keyword in order and collects unique statuses,
// stopping as soon as MaxPosts are found.
func (e *Engine) Candidates(ctx context.Context) ([]models.Candidate, error) {
	seen := make(map[string]struct{})
	var out []models.Candidate
	for _, kw := range e.cfg.Keywords {
		statuses, err := e.network.SearchStatuses(ctx, kw)
		if err != nil {
			return nil, err
		}
		for _, s := range statuses {
			if _, ok := seen[s.ID]; ok {
				continue
			}
			seen[s.ID] = struct{}{}
			out = append(out, s)
			if len(out) >= e.cfg.MaxPosts {
				return out, nil
			}
		}
	}
	return out, nil
}

func (e *Engine) businessContext(ctx context.Context) (string, error) {
	entry, err := e.source.FetchFirst(ctx)
	if errors.Is(err, notion.ErrNoRows) {
		e.logger.Warn("content database is empty; replying without business context")
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load business context: %w", err)
	}
	return entry.Content, nil
}

func (e *Engine) judge(ctx context.Context, candidates []models.Candidate, business string) ([]models.Judgment, error) {
	var out batch
	if err := e.llm.CompleteJSON(ctx, Messages(candidates, business), "reply_batch", &out); err != nil {
		return nil, fmt.Errorf("generate replies: %w", err)
	}
	return out.Responses, nil
}

// Messages builds the conversation for one batch of candidates.
func Messages(candidates []models.Candidate, business string) []llm.Message {
	posts := make([]string, len(candidates))
	for i, c := range candidates {
		posts[i] = fmt.Sprintf("Post %d:\n%s", i+1, c.Content)
	}
	return []llm.Message{
		llm.System(fmt.Sprintf(systemPrompt, business, MaxReplyChars)),
		llm.User(fmt.Sprintf(userPrompt, strings.Join(posts, "\n\n"))),
	}
}
