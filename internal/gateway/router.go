package gateway

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/nulzo/reliability-forge/internal/config"
	"github.com/nulzo/reliability-forge/internal/llm"
	"github.com/nulzo/reliability-forge/internal/platform/metrics"
	"github.com/nulzo/reliability-forge/internal/store/cache"
	"go.uber.org/zap"
)

var ErrUnknownModel = errors.New("unknown model")

// Result is what Dispatch returns. Exactly one of Text or ByModel is set,
// according to FanOut.
type Result struct {
	Text    string
	ByModel map[string]string
	FanOut  bool
}

// Router owns one client per configured model and routes prompts to them.
// The set of clients is fixed at construction and safe for concurrent use.
type Router struct {
	logger       *zap.Logger
	clients      map[string]llm.Client
	models       []config.ModelDescriptor
	defaultModel string
	maxTokens    int
}

type options struct {
	logger   *zap.Logger
	metrics  *metrics.Metrics
	cache    cache.CacheService
	cacheTTL time.Duration
	factory  llm.Factory
	tokens   llm.TokenSource
}

type Option func(*options)

func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics records per-model request counts and latency.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithCache serves repeated identical prompts from c.
func WithCache(c cache.CacheService, ttl time.Duration) Option {
	return func(o *options) {
		o.cache = c
		o.cacheTTL = ttl
	}
}

// WithClientFactory bypasses the provider registry. Used by tests and tools
// that bring their own clients.
func WithClientFactory(f llm.Factory) Option {
	return func(o *options) { o.factory = f }
}

// WithTokenSource replaces the Azure CLI identity for key-less cloud models.
func WithTokenSource(ts llm.TokenSource) Option {
	return func(o *options) { o.tokens = ts }
}

// New validates cfg.Models and builds every client up front. Any invalid
// descriptor, duplicate name or unknown provider fails construction.
func New(cfg *config.Config, opts ...Option) (*Router, error) {
	if cfg == nil {
		return nil, errors.New("router: nil config")
	}

	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.factory == nil {
		o.factory = llm.New
	}

	if err := config.ValidateModels(cfg.Models); err != nil {
		return nil, err
	}

	deps := llm.Deps{
		Credentials: cfg.Credentials,
		Transport:   llm.TransportConfigFrom(cfg.LLM),
		Logger:      o.logger,
		Tokens:      o.tokens,
	}

	r := &Router{
		logger:       o.logger,
		clients:      make(map[string]llm.Client, len(cfg.Models)),
		models:       append([]config.ModelDescriptor(nil), cfg.Models...),
		defaultModel: cfg.Credentials.DefaultModel,
		maxTokens:    cfg.LLM.MaxTokens,
	}

	for _, desc := range cfg.Models {
		client, err := o.factory(desc, deps)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize model %s: %w", desc.Name, err)
		}

		client = instrument(client, o.metrics)
		if o.cache != nil {
			client = withCache(client, o.cache, o.cacheTTL, o.metrics, o.logger)
		}
		r.clients[desc.Name] = client

		r.logger.Debug("Registered model",
			zap.String("model", desc.Name),
			zap.String("provider", string(desc.Provider)),
		)
	}

	sort.Slice(r.models, func(i, j int) bool { return r.models[i].Name < r.models[j].Name })

	if r.defaultModel != "" {
		if _, ok := r.clients[r.defaultModel]; !ok {
			r.logger.Warn("Default model is not configured", zap.String("model", r.defaultModel))
		}
	}

	return r, nil
}

// GetClient returns the handle for model, or for the default model when
// model is empty. Repeated calls return the same instance.
func (r *Router) GetClient(model string) (llm.Client, error) {
	if model == "" {
		model = r.defaultModel
	}
	client, ok := r.clients[model]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, model)
	}
	return client, nil
}

// OpenAIClient exposes the underlying handle for hosting layers that expect
// an OpenAI-style chat client.
func (r *Router) OpenAIClient(model string) (llm.Client, error) {
	return r.GetClient(model)
}

// DefaultModel is the model used when a caller names none.
func (r *Router) DefaultModel() string {
	return r.defaultModel
}

// Models lists the configured descriptors sorted by name.
func (r *Router) Models() []config.ModelDescriptor {
	return append([]config.ModelDescriptor(nil), r.models...)
}

// Chat sends prompt to a single model.
func (r *Router) Chat(ctx context.Context, prompt, model string, opts llm.ChatOptions) (string, error) {
	client, err := r.GetClient(model)
	if err != nil {
		return "", err
	}
	return client.Chat(ctx, prompt, r.withDefaults(opts))
}

// ChatAll sends prompt to each model in order and keys the answers by model
// name. The first failure aborts the fan-out and no partial map is returned.
func (r *Router) ChatAll(ctx context.Context, prompt string, models []string, opts llm.ChatOptions) (map[string]string, error) {
	clients := make([]llm.Client, 0, len(models))
	for _, name := range models {
		client, err := r.GetClient(name)
		if err != nil {
			return nil, err
		}
		clients = append(clients, client)
	}

	opts = r.withDefaults(opts)
	out := make(map[string]string, len(clients))
	for i, client := range clients {
		text, err := client.Chat(ctx, prompt, opts)
		if err != nil {
			r.logger.Warn("Fan-out aborted",
				zap.String("model", models[i]),
				zap.Int("completed", i),
				zap.Int("total", len(clients)),
				zap.Error(err),
			)
			return nil, err
		}
		out[models[i]] = text
	}
	return out, nil
}

// Dispatch picks single or fan-out mode from the shape of models: nil means
// one call to the default model, anything else fans out.
func (r *Router) Dispatch(ctx context.Context, prompt string, models []string, opts llm.ChatOptions) (Result, error) {
	if models == nil {
		text, err := r.Chat(ctx, prompt, "", opts)
		if err != nil {
			return Result{}, err
		}
		return Result{Text: text}, nil
	}

	byModel, err := r.ChatAll(ctx, prompt, models, opts)
	if err != nil {
		return Result{}, err
	}
	return Result{ByModel: byModel, FanOut: true}, nil
}

func (r *Router) withDefaults(opts llm.ChatOptions) llm.ChatOptions {
	if opts.MaxTokens <= 0 && r.maxTokens > 0 {
		opts.MaxTokens = r.maxTokens
	}
	return opts
}
