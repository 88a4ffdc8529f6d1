// Package llm wraps the chat-completion providers behind one small interface.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/hyperjump/hiddenclasses/internal/config"
	"github.com/sashabaranov/go-openai/jsonschema"
	"go.uber.org/zap"
)

// ErrEmptyResponse is returned when a provider answers with no text.
var ErrEmptyResponse = errors.New("language model returned an empty response")

// Role is the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    Role
	Content string
}

// System returns a system message.
func System(content string) Message { return Message{Role: RoleSystem, Content: content} }

// User returns a user message.
func User(content string) Message { return Message{Role: RoleUser, Content: content} }

// Client completes conversations. CompleteJSON decodes a structured answer into
// out, which must be a pointer to a struct describing the expected object.
type Client interface {
	Complete(ctx context.Context, msgs []Message) (string, error)
	CompleteJSON(ctx context.Context, msgs []Message, name string, out any) error
	Close() error
}

// New builds the client selected by cfg.Provider for the given model.
func New(ctx context.Context, cfg *config.LLMConfig, model string, logger *zap.Logger) (Client, error) {
	if model == "" {
		model = cfg.Model
	}
	if logger != nil {
		logger.Debug("llm client ready", zap.String("provider", cfg.Provider), zap.String("model", model))
	}
	switch cfg.Provider {
	case "openai", "":
		return NewOpenAI(cfg, model), nil
	case "anthropic":
		return NewAnthropic(cfg, model), nil
	case "gemini":
		return NewGemini(ctx, cfg, model)
	case "ollama":
		return NewOllama(cfg, model)
	case "dummy":
		return NewDummy(""), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// Schema returns the JSON schema of the value out points to.
func Schema(out any) (*jsonschema.Definition, error) {
	v := reflect.Indirect(reflect.ValueOf(out))
	if !v.IsValid() {
		return nil, errors.New("schema target must not be nil")
	}
	return jsonschema.GenerateSchemaForType(v.Interface())
}

// jsonInstruction appends the schema to the conversation for providers without
// native structured output.
func jsonInstruction(msgs []Message, out any) ([]Message, error) {
	schema, err := Schema(out)
	if err != nil {
		return nil, fmt.Errorf("build schema: %w", err)
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	instruction := "Respond with a single JSON object that matches this JSON schema and nothing else:\n" + string(raw)
	withSchema := make([]Message, 0, len(msgs)+1)
	withSchema = append(withSchema, msgs...)
	return append(withSchema, User(instruction)), nil
}

// DecodeJSON unmarshals a model answer into out, tolerating surrounding
// markdown code fences and prose before the first brace.
func DecodeJSON(text string, out any) error {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	if i := strings.IndexAny(s, "{["); i > 0 {
		s = s[i:]
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), out); err != nil {
		return fmt.Errorf("decode model json: %w", err)
	}
	return nil
}

// splitSystem separates system messages (joined) from the conversation turns.
func splitSystem(msgs []Message) (string, []Message) {
	var system []string
	turns := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		turns = append(turns, m)
	}
	return strings.Join(system, "\n\n"), turns
}
