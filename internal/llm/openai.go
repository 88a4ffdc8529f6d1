package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/hiddenclasses/internal/config"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAI talks to any OpenAI-compatible chat completions API (OpenAI, OpenRouter).
type OpenAI struct {
	client    *openai.Client
	model     string
	maxTokens int
}

var _ Client = (*OpenAI)(nil)

// NewOpenAI creates a client for cfg.BaseURL authenticated with cfg.APIKey.
func NewOpenAI(cfg *config.LLMConfig, model string) *OpenAI {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &OpenAI{client: openai.NewClientWithConfig(oc), model: model, maxTokens: cfg.MaxTokens}
}

func (o *OpenAI) request(msgs []Message) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:     o.model,
		MaxTokens: o.maxTokens,
		Messages:  make([]openai.ChatCompletionMessage, len(msgs)),
	}
	for i, m := range msgs {
		req.Messages[i] = openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content}
	}
	return req
}

func (o *OpenAI) send(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

// Complete returns the model's answer to msgs.
func (o *OpenAI) Complete(ctx context.Context, msgs []Message) (string, error) {
	return o.send(ctx, o.request(msgs))
}

// CompleteJSON requests a strict JSON-schema response and decodes it into out.
func (o *OpenAI) CompleteJSON(ctx context.Context, msgs []Message, name string, out any) error {
	schema, err := Schema(out)
	if err != nil {
		return fmt.Errorf("build schema: %w", err)
	}
	req := o.request(msgs)
	req.ResponseFormat = &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
		JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
			Name:   name,
			Schema: schema,
			Strict: true,
		},
	}
	text, err := o.send(ctx, req)
	if err != nil {
		return err
	}
	return DecodeJSON(text, out)
}

// Close is a no-op.
func (o *OpenAI) Close() error { return nil }
