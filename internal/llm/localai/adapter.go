package localai

import (
	"context"
	"strings"

	"github.com/nulzo/reliability-forge/internal/config"
	"github.com/nulzo/reliability-forge/internal/llm"
)

func init() {
	llm.Register(config.ProviderLocalAI, NewAdapter)
}

// Adapter talks to a self-hosted server exposing /v1/chat/completions.
type Adapter struct {
	name      string
	url       string
	apiKey    string
	transport *llm.Transport
}

func NewAdapter(desc config.ModelDescriptor, deps llm.Deps) (llm.Client, error) {
	return &Adapter{
		name:      desc.Name,
		url:       strings.TrimRight(desc.Endpoint, "/") + "/v1/chat/completions",
		apiKey:    deps.Credentials.APIKey,
		transport: llm.NewTransport(desc.Name, deps.Transport, deps.Logger),
	}, nil
}

func (a *Adapter) Name() string {
	return a.name
}

func (a *Adapter) Provider() config.Provider {
	return config.ProviderLocalAI
}

func (a *Adapter) Chat(ctx context.Context, prompt string, opts llm.ChatOptions) (string, error) {
	var headers map[string]string
	if a.apiKey != "" {
		// the raw token, servers differ on the scheme they expect
		headers = map[string]string{"Authorization": a.apiKey}
	}

	return a.transport.PostChat(ctx, a.url, headers, llm.NewChatRequest(a.name, prompt, opts))
}
