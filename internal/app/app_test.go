package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/nulzo/reliability-forge/internal/agent"
	"github.com/nulzo/reliability-forge/internal/config"
	"github.com/nulzo/reliability-forge/internal/gateway"
	"github.com/nulzo/reliability-forge/internal/llm"
	"github.com/nulzo/reliability-forge/internal/store/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// scriptedClient answers each pipeline stage by the key its prompt asks for.
type scriptedClient struct {
	name  string
	calls int
}

func (c *scriptedClient) Name() string              { return c.name }
func (c *scriptedClient) Provider() config.Provider { return config.ProviderLocalAI }

func (c *scriptedClient) Chat(_ context.Context, prompt string, _ llm.ChatOptions) (string, error) {
	c.calls++
	switch {
	case strings.Contains(prompt, "selected_design_pattern"):
		return `{"selected_design_pattern": "Circuit Breaker", "source_code": "class Api {}"}`, nil
	case strings.Contains(prompt, "formatted_design_pattern_name"):
		return "```json\n{\"formatted_design_pattern_name\": \"circuit_breaker\"}\n```", nil
	default:
		return "```csharp\nclass Api { /* breaker */ }\n```", nil
	}
}

func testConfig() *config.Config {
	return &config.Config{
		LLM:      config.LLMConfig{MaxTokens: 128},
		Pipeline: config.PipelineConfig{TemplatesDir: "../../templates"},
		Store:    config.StoreConfig{Enabled: true, DSN: ":memory:"},
		Cache:    config.CacheConfig{Enabled: true, Backend: "memory", TTL: time.Hour},
		Models: []config.ModelDescriptor{
			{Name: "local", Provider: config.ProviderLocalAI, Endpoint: "http://localhost:8080"},
		},
		Credentials: config.Credentials{DefaultModel: "local"},
	}
}

func TestApp_EndToEnd(t *testing.T) {
	client := &scriptedClient{name: "local"}
	factory := func(desc config.ModelDescriptor, _ llm.Deps) (llm.Client, error) { return client, nil }

	ctx := context.Background()
	a, err := New(ctx, testConfig(), zap.NewNop(), WithGatewayOptions(gateway.WithClientFactory(factory)))
	require.NoError(t, err)
	defer func() { assert.NoError(t, a.Close()) }()
	a.Start(ctx)

	resp, err := a.Agent.Run(ctx, []agent.Message{{Role: agent.RoleUser, Content: "Add a circuit breaker to class Api {}"}})
	require.NoError(t, err)
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "class Api { /* breaker */ }", resp.Messages[0].Content)
	assert.Equal(t, 3, client.calls)

	a.Ingestor.Stop()
	runs, err := a.Analytics.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.SourceAgent, runs[0].Source)
	assert.Equal(t, model.RunSucceeded, runs[0].Status)
	assert.Equal(t, "circuit_breaker", runs[0].Pattern)
	assert.Equal(t, "Circuit Breaker", runs[0].RequestedPattern)
}

func TestApp_CacheServesRepeats(t *testing.T) {
	client := &scriptedClient{name: "local"}
	factory := func(config.ModelDescriptor, llm.Deps) (llm.Client, error) { return client, nil }

	cfg := testConfig()
	cfg.Store.Enabled = false
	a, err := New(context.Background(), cfg, zap.NewNop(), WithGatewayOptions(gateway.WithClientFactory(factory)))
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Analytics)
	for i := 0; i < 3; i++ {
		out, err := a.Router.Chat(context.Background(), "hello", "", llm.ChatOptions{})
		require.NoError(t, err)
		assert.Contains(t, out, "breaker")
	}
	assert.Equal(t, 1, client.calls)
}

func TestApp_UnknownCacheBackend(t *testing.T) {
	cfg := testConfig()
	cfg.Cache.Backend = "memcached"

	_, err := New(context.Background(), cfg, zap.NewNop())
	assert.ErrorContains(t, err, "unknown cache backend")
}
