package v1

import (
	"context"

	"github.com/nulzo/reliability-forge/internal/agent"
	"github.com/nulzo/reliability-forge/internal/config"
	"github.com/nulzo/reliability-forge/internal/gateway"
	"github.com/nulzo/reliability-forge/internal/llm"
)

// Gateway is the part of *gateway.Router the handlers use.
type Gateway interface {
	Chat(ctx context.Context, prompt, model string, opts llm.ChatOptions) (string, error)
	Dispatch(ctx context.Context, prompt string, models []string, opts llm.ChatOptions) (gateway.Result, error)
	Models() []config.ModelDescriptor
	DefaultModel() string
}

// Agent is satisfied by *agent.Agent.
type Agent interface {
	Run(ctx context.Context, messages []agent.Message) (*agent.Response, error)
}

// PatternCatalog is satisfied by *templates.Resolver.
type PatternCatalog interface {
	Patterns() ([]string, error)
	Manifest(name string) (map[string]string, bool, error)
}
