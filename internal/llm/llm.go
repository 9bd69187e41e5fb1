// Package llm talks to the text completion service behind the assistant.
//
// The rest of the application sees only the Completer interface: an ordered
// list of role-tagged messages goes in, one reply comes out. The concrete
// client speaks the OpenAI-compatible /v1/chat/completions protocol, which
// OpenAI, Azure, vLLM, Ollama and most hosted gateways accept.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// Roles understood by chat completion endpoints.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of the conversation sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer produces the next assistant turn for a conversation.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// ErrNotConfigured is returned by Disabled.
var ErrNotConfigured = errors.New("llm: completion service not configured")

// Disabled is the Completer used when no LLM_BASE_URL is set. Every call
// fails, and the chat service reports it as an upstream failure.
type Disabled struct{}

func (Disabled) Complete(context.Context, []Message) (string, error) {
	return "", ErrNotConfigured
}

// HTTPError is a non-2xx answer from the completion endpoint. Body is
// truncated to 1 MiB.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("llm: completion endpoint returned %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the same request may succeed later.
func (e *HTTPError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
