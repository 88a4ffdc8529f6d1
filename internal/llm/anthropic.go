package llm

import (
	"context"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/hyperjump/hiddenclasses/internal/config"
)

// Anthropic uses the Messages API.
type Anthropic struct {
	client    *anthropic.Client
	model     string
	maxTokens int
}

var _ Client = (*Anthropic)(nil)

// NewAnthropic creates a client authenticated with cfg.APIKey.
func NewAnthropic(cfg *config.LLMConfig, model string) *Anthropic {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	cl := anthropic.NewClient(opts...)
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Anthropic{client: &cl, model: model, maxTokens: maxTokens}
}

// Complete returns the concatenated text blocks of the answer.
func (a *Anthropic) Complete(ctx context.Context, msgs []Message) (string, error) {
	system, turns := splitSystem(msgs)
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: int64(a.maxTokens),
		Messages:  make([]anthropic.MessageParam, 0, len(turns)),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	for _, m := range turns {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == RoleAssistant {
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(block))
		} else {
			params.Messages = append(params.Messages, anthropic.NewUserMessage(block))
		}
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}
	var b strings.Builder
	for _, cb := range msg.Content {
		if tb, ok := cb.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(tb.Text)
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", ErrEmptyResponse
	}
	return b.String(), nil
}

// CompleteJSON asks for JSON matching out's schema and decodes the answer.
func (a *Anthropic) CompleteJSON(ctx context.Context, msgs []Message, _ string, out any) error {
	withSchema, err := jsonInstruction(msgs, out)
	if err != nil {
		return err
	}
	text, err := a.Complete(ctx, withSchema)
	if err != nil {
		return err
	}
	return DecodeJSON(text, out)
}

// Close is a no-op.
func (a *Anthropic) Close() error { return nil }
