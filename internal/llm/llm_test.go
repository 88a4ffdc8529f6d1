package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hyperjump/hiddenclasses/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type verdict struct {
	Answer string  `json:"answer"`
	Score  float64 `json:"score"`
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"plain", `{"answer":"yes","score":0.5}`},
		{"fenced", "```json\n{\"answer\":\"yes\",\"score\":0.5}\n```"},
		{"bare fence", "```\n{\"answer\":\"yes\",\"score\":0.5}\n```"},
		{"prose first", "Here you go:\n{\"answer\":\"yes\",\"score\":0.5}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v verdict
			require.NoError(t, DecodeJSON(tt.in, &v))
			assert.Equal(t, verdict{Answer: "yes", Score: 0.5}, v)
		})
	}
	var v verdict
	assert.Error(t, DecodeJSON("not json", &v))
}

func TestSchema(t *testing.T) {
	schema, err := Schema(&verdict{})
	require.NoError(t, err)
	raw, err := json.Marshal(schema)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"answer"`)
	assert.Contains(t, string(raw), `"score"`)

	_, err = Schema(nil)
	assert.Error(t, err)
}

func TestSplitSystem(t *testing.T) {
	system, turns := splitSystem([]Message{System("a"), User("u1"), System("b"), {Role: RoleAssistant, Content: "x"}})
	assert.Equal(t, "a\n\nb", system)
	require.Len(t, turns, 2)
	assert.Equal(t, RoleUser, turns[0].Role)
	assert.Equal(t, RoleAssistant, turns[1].Role)
}

func TestDummy(t *testing.T) {
	d := NewDummy("")
	got, err := d.Complete(context.Background(), []Message{System("sys"), User("first\nlast line\n\n")})
	require.NoError(t, err)
	assert.Equal(t, "Dummy response: last line", got)

	d.JSON = `{"answer":"ok","score":1}`
	var v verdict
	require.NoError(t, d.CompleteJSON(context.Background(), nil, "verdict", &v))
	assert.Equal(t, "ok", v.Answer)
}

func TestNew(t *testing.T) {
	ctx := context.Background()
	for _, provider := range []string{"openai", "anthropic", "ollama", "dummy"} {
		c, err := New(ctx, &config.LLMConfig{Provider: provider, Model: "m", BaseURL: "http://localhost:1"}, "", nil)
		require.NoError(t, err, provider)
		require.NotNil(t, c, provider)
		assert.NoError(t, c.Close())
	}
	_, err := New(ctx, &config.LLMConfig{Provider: "gemini"}, "m", nil)
	assert.Error(t, err, "gemini without api key")
	_, err = New(ctx, &config.LLMConfig{Provider: "eliza"}, "m", nil)
	assert.Error(t, err)
}

func TestOpenAI_CompleteJSON(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		data, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(data, &body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","model":"m","choices":[{"index":0,"message":{"role":"assistant","content":"{\"answer\":\"yes\",\"score\":0.9}"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	c := NewOpenAI(&config.LLMConfig{BaseURL: srv.URL, APIKey: "k", MaxTokens: 100}, "test-model")
	var v verdict
	require.NoError(t, c.CompleteJSON(context.Background(), []Message{System("s"), User("u")}, "verdict", &v))
	assert.Equal(t, verdict{Answer: "yes", Score: 0.9}, v)

	assert.Equal(t, "test-model", body["model"])
	format, ok := body["response_format"].(map[string]any)
	require.True(t, ok, "response_format should be sent")
	assert.Equal(t, "json_schema", format["type"])
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
}

func TestOpenAI_emptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","model":"m","choices":[]}`)
	}))
	defer srv.Close()
	c := NewOpenAI(&config.LLMConfig{BaseURL: srv.URL, APIKey: "k"}, "m")
	_, err := c.Complete(context.Background(), []Message{User("u")})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestAnthropic_Complete(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		data, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(data, &body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"msg_1","type":"message","role":"assistant","model":"m","content":[{"type":"text","text":"Hello "},{"type":"text","text":"there"}],"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":2}}`)
	}))
	defer srv.Close()

	c := NewAnthropic(&config.LLMConfig{BaseURL: srv.URL, APIKey: "k", MaxTokens: 50}, "claude-test")
	got, err := c.Complete(context.Background(), []Message{System("be nice"), User("hi")})
	require.NoError(t, err)
	assert.Equal(t, "Hello there", got)
	assert.NotNil(t, body["system"], "system prompt is sent separately")
	assert.Len(t, body["messages"], 1)
}

func TestOllama_CompleteJSON(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		data, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(data, &body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"model":"m","created_at":"2024-01-01T00:00:00Z","message":{"role":"assistant","content":"{\"answer\":\"local\",\"score\":0.1}"},"done":true}`+"\n")
	}))
	defer srv.Close()

	c, err := NewOllama(&config.LLMConfig{BaseURL: srv.URL}, "llama")
	require.NoError(t, err)
	var v verdict
	require.NoError(t, c.CompleteJSON(context.Background(), []Message{User("u")}, "verdict", &v))
	assert.Equal(t, "local", v.Answer)
	assert.Equal(t, "json", body["format"])
	assert.Equal(t, false, body["stream"])
}
