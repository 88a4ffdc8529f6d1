package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/hyperjump/hiddenclasses/internal/config"
	ollama "github.com/ollama/ollama/api"
)

// Ollama talks to a local Ollama server.
type Ollama struct {
	client *ollama.Client
	model  string
}

var _ Client = (*Ollama)(nil)

// NewOllama connects to cfg.BaseURL, falling back to OLLAMA_HOST and then localhost.
func NewOllama(cfg *config.LLMConfig, model string) (*Ollama, error) {
	host := cfg.BaseURL
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	if host == "" {
		host = "http://localhost:11434"
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}
	return &Ollama{
		client: ollama.NewClient(u, &http.Client{Timeout: 120 * time.Second}),
		model:  model,
	}, nil
}

func (o *Ollama) chat(ctx context.Context, msgs []Message, format json.RawMessage) (string, error) {
	stream := false
	req := &ollama.ChatRequest{
		Model:    o.model,
		Messages: make([]ollama.Message, len(msgs)),
		Stream:   &stream,
		Format:   format,
	}
	for i, m := range msgs {
		req.Messages[i] = ollama.Message{Role: string(m.Role), Content: m.Content}
	}
	var b strings.Builder
	if err := o.client.Chat(ctx, req, func(resp ollama.ChatResponse) error {
		b.WriteString(resp.Message.Content)
		return nil
	}); err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", ErrEmptyResponse
	}
	return b.String(), nil
}

// Complete returns the model's answer to msgs.
func (o *Ollama) Complete(ctx context.Context, msgs []Message) (string, error) {
	return o.chat(ctx, msgs, nil)
}

// CompleteJSON uses Ollama's JSON mode and decodes the answer into out.
func (o *Ollama) CompleteJSON(ctx context.Context, msgs []Message, _ string, out any) error {
	withSchema, err := jsonInstruction(msgs, out)
	if err != nil {
		return err
	}
	text, err := o.chat(ctx, withSchema, json.RawMessage(`"json"`))
	if err != nil {
		return err
	}
	return DecodeJSON(text, out)
}

// Close is a no-op.
func (o *Ollama) Close() error { return nil }
