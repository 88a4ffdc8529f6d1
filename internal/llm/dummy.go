package llm

import (
	"context"
	"fmt"
	"strings"
)

// Dummy answers without calling any API, for offline runs and tests.
// Complete echoes the last non-blank line of the last message after Prefix;
// CompleteJSON decodes JSON, which defaults to an empty object.
type Dummy struct {
	Prefix string
	JSON   string
}

var _ Client = (*Dummy)(nil)

// NewDummy returns a dummy client with the given answer prefix.
func NewDummy(prefix string) *Dummy {
	if strings.TrimSpace(prefix) == "" {
		prefix = "Dummy response:"
	}
	return &Dummy{Prefix: prefix, JSON: "{}"}
}

// Complete returns Prefix followed by the last non-blank line of the conversation.
func (d *Dummy) Complete(_ context.Context, msgs []Message) (string, error) {
	last := "<empty prompt>"
	if len(msgs) > 0 {
		lines := strings.Split(msgs[len(msgs)-1].Content, "\n")
		for i := len(lines) - 1; i >= 0; i-- {
			if candidate := strings.TrimSpace(lines[i]); candidate != "" {
				last = candidate
				break
			}
		}
	}
	return fmt.Sprintf("%s %s", d.Prefix, last), nil
}

// CompleteJSON decodes the configured JSON into out.
func (d *Dummy) CompleteJSON(_ context.Context, _ []Message, _ string, out any) error {
	return DecodeJSON(d.JSON, out)
}

// Close is a no-op.
func (d *Dummy) Close() error { return nil }
