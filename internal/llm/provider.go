package llm

import (
	"context"

	"github.com/nulzo/reliability-forge/internal/config"
)

// DefaultMaxTokens is sent when a caller does not set ChatOptions.MaxTokens.
const DefaultMaxTokens = 512

// ChatOptions tunes a single chat round trip.
type ChatOptions struct {
	// Model overrides the upstream model name. Empty means the model the
	// client was built for.
	Model     string
	MaxTokens int
}

func (o ChatOptions) maxTokens() int {
	if o.MaxTokens <= 0 {
		return DefaultMaxTokens
	}
	return o.MaxTokens
}

// Client is a live handle bound to exactly one model descriptor.
type Client interface {
	// Name is the registered model name.
	Name() string
	Provider() config.Provider
	// Chat sends prompt as a single user message and returns the first
	// choice's message content.
	Chat(ctx context.Context, prompt string, opts ChatOptions) (string, error)
}

// TokenSource yields bearer tokens for identity-backed providers.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Message is the wire shape of one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the OpenAI-compatible request body. Field order is kept
// stable on the wire: model, messages, max_tokens.
type ChatRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens"`
}

// NewChatRequest builds the body for a single-prompt completion.
func NewChatRequest(model, prompt string, opts ChatOptions) ChatRequest {
	if opts.Model != "" {
		model = opts.Model
	}
	return ChatRequest{
		Model:     model,
		Messages:  []Message{{Role: "user", Content: prompt}},
		MaxTokens: opts.maxTokens(),
	}
}
