package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/nulzo/reliability-forge/internal/llm"
	"github.com/nulzo/reliability-forge/internal/platform/metrics"
	"github.com/nulzo/reliability-forge/internal/store/cache"
	"go.uber.org/zap"
)

// instrumentedClient records one observation per Chat call.
type instrumentedClient struct {
	llm.Client
	metrics *metrics.Metrics
}

func instrument(c llm.Client, m *metrics.Metrics) llm.Client {
	if m == nil {
		return c
	}
	return &instrumentedClient{Client: c, metrics: m}
}

func (c *instrumentedClient) Chat(ctx context.Context, prompt string, opts llm.ChatOptions) (string, error) {
	start := time.Now()
	text, err := c.Client.Chat(ctx, prompt, opts)
	c.metrics.ObserveLLMRequest(c.Name(), outcome(err), time.Since(start))
	return text, err
}

// outcome turns an error into a metric label, e.g. "request_failure".
func outcome(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	if kind := llm.KindOf(err); kind != 0 {
		return strings.ReplaceAll(kind.String(), " ", "_")
	}
	return metrics.OutcomeError
}

// cachedClient answers identical (model, max_tokens, prompt) triples from a
// cache. Only successful completions are stored.
type cachedClient struct {
	llm.Client
	cache   cache.CacheService
	ttl     time.Duration
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func withCache(c llm.Client, store cache.CacheService, ttl time.Duration, m *metrics.Metrics, logger *zap.Logger) llm.Client {
	return &cachedClient{Client: c, cache: store, ttl: ttl, metrics: m, logger: logger}
}

func (c *cachedClient) Chat(ctx context.Context, prompt string, opts llm.ChatOptions) (string, error) {
	key := cacheKey(c.Name(), opts, prompt)

	var cached string
	err := c.cache.Get(ctx, key, &cached)
	switch {
	case err == nil:
		c.metrics.IncCacheLookup(true)
		return cached, nil
	case !errors.Is(err, cache.ErrMiss):
		c.logger.Warn("Cache lookup failed", zap.String("model", c.Name()), zap.Error(err))
	}
	c.metrics.IncCacheLookup(false)

	text, err := c.Client.Chat(ctx, prompt, opts)
	if err != nil {
		return "", err
	}

	if err := c.cache.Set(ctx, key, text, c.ttl); err != nil {
		c.logger.Warn("Cache store failed", zap.String("model", c.Name()), zap.Error(err))
	}
	return text, nil
}

func cacheKey(model string, opts llm.ChatOptions, prompt string) string {
	upstream := model
	if opts.Model != "" {
		upstream = opts.Model
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = llm.DefaultMaxTokens
	}

	h := sha256.New()
	h.Write([]byte(model + "|" + upstream + "|" + strconv.Itoa(maxTokens) + "|"))
	h.Write([]byte(prompt))
	return "chat:" + hex.EncodeToString(h.Sum(nil))
}
