package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	genai "github.com/google/generative-ai-go/genai"
	"github.com/hyperjump/hiddenclasses/internal/config"
	"google.golang.org/api/option"
)

// Gemini uses Google's Generative Language API.
type Gemini struct {
	client    *genai.Client
	model     string
	maxTokens int
}

var _ Client = (*Gemini)(nil)

// NewGemini creates a client authenticated with cfg.APIKey.
func NewGemini(ctx context.Context, cfg *config.LLMConfig, model string) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("missing gemini api key")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("gemini init: %w", err)
	}
	return &Gemini{client: client, model: model, maxTokens: cfg.MaxTokens}, nil
}

func (g *Gemini) generate(ctx context.Context, msgs []Message, mimeType string) (string, error) {
	model := g.client.GenerativeModel(g.model)
	if g.maxTokens > 0 {
		model.SetMaxOutputTokens(int32(g.maxTokens))
	}
	model.ResponseMIMEType = mimeType
	system, turns := splitSystem(msgs)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	parts := make([]genai.Part, 0, len(turns))
	for _, m := range turns {
		parts = append(parts, genai.Text(m.Content))
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", ErrEmptyResponse
	}
	return b.String(), nil
}

// Complete returns the first candidate's text.
func (g *Gemini) Complete(ctx context.Context, msgs []Message) (string, error) {
	return g.generate(ctx, msgs, "")
}

// CompleteJSON requests an application/json answer matching out's schema.
func (g *Gemini) CompleteJSON(ctx context.Context, msgs []Message, _ string, out any) error {
	withSchema, err := jsonInstruction(msgs, out)
	if err != nil {
		return err
	}
	text, err := g.generate(ctx, withSchema, "application/json")
	if err != nil {
		return err
	}
	return DecodeJSON(text, out)
}

// Close releases the underlying connection.
func (g *Gemini) Close() error {
	return g.client.Close()
}
