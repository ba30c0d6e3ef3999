package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/nulzo/reliability-forge/internal/config"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	// DefaultConnectTimeout bounds dialing and the TLS handshake. It is not configurable.
	DefaultConnectTimeout = 10 * time.Second
	DefaultReadTimeout    = 600 * time.Second
	DefaultMaxRetries     = 3

	// contentPath is the only response shape accepted.
	contentPath = "choices.0.message.content"

	maxErrorBody = 512
)

// retryableStatus lists the statuses retried at the transport layer.
var retryableStatus = map[int]struct{}{
	http.StatusTooManyRequests:     {},
	http.StatusInternalServerError: {},
	http.StatusBadGateway:          {},
	http.StatusServiceUnavailable:  {},
	http.StatusGatewayTimeout:      {},
}

// TransportConfig holds timeout and retry policy for one client.
type TransportConfig struct {
	ReadTimeout  time.Duration
	MaxRetries   int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// TransportConfigFrom maps the llm config section, keeping defaults for zero values.
func TransportConfigFrom(c config.LLMConfig) TransportConfig {
	return TransportConfig{
		ReadTimeout:  c.ReadTimeout,
		MaxRetries:   c.MaxRetries,
		RetryWaitMin: c.RetryWaitMin,
		RetryWaitMax: c.RetryWaitMax,
	}
}

func (c TransportConfig) withDefaults() TransportConfig {
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryWaitMin <= 0 {
		c.RetryWaitMin = 500 * time.Millisecond
	}
	if c.RetryWaitMax < c.RetryWaitMin {
		c.RetryWaitMax = 16 * c.RetryWaitMin
	}
	return c
}

// Transport performs chat completion POSTs over one pooled connection set.
type Transport struct {
	model  string
	client *retryablehttp.Client
	logger *zap.Logger
}

// NewTransport builds a pooled HTTP client with the retry policy attached.
// model is only used to annotate errors and logs.
func NewTransport(model string, cfg TransportConfig, logger *zap.Logger) *Transport {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	dialer := &net.Dialer{
		Timeout:   DefaultConnectTimeout,
		KeepAlive: 30 * time.Second,
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = &http.Client{
		Timeout: DefaultConnectTimeout + cfg.ReadTimeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   DefaultConnectTimeout,
			ResponseHeaderTimeout: cfg.ReadTimeout,
		},
	}
	rc.RetryMax = cfg.MaxRetries
	rc.RetryWaitMin = cfg.RetryWaitMin
	rc.RetryWaitMax = cfg.RetryWaitMax
	rc.Backoff = cappedBackoff
	rc.CheckRetry = checkRetry
	// hand the last response back so its status can be reported
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = leveledLogger{logger.With(zap.String("model", model)).Sugar()}

	return &Transport{model: model, client: rc, logger: logger}
}

// checkRetry retries POSTs on throttling and gateway statuses only.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil || resp == nil {
		return false, nil
	}
	if resp.Request != nil && resp.Request.Method != http.MethodPost {
		return false, nil
	}
	_, retry := retryableStatus[resp.StatusCode]
	return retry, nil
}

// cappedBackoff honors Retry-After on 429/503 but never waits longer than max.
func cappedBackoff(min, max time.Duration, attempt int, resp *http.Response) time.Duration {
	wait := retryablehttp.DefaultBackoff(min, max, attempt, resp)
	if wait > max {
		return max
	}
	return wait
}

// PostChat sends body as JSON to url and returns choices[0].message.content.
func (t *Transport) PostChat(ctx context.Context, url string, headers map[string]string, body any) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", newError(UnexpectedFailure, t.model, "failed to marshal request body", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, payload)
	if err != nil {
		return "", newError(UnexpectedFailure, t.model, "failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
		}
		return "", classify(t.model, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", classify(t.model, fmt.Errorf("failed to read response: %w", err))
	}

	t.logger.Debug("Chat completion round trip",
		zap.String("model", t.model),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		e := newError(RequestFailure, t.model, upstreamMessage(raw), nil)
		e.Status = resp.StatusCode
		return "", e
	}

	return ExtractContent(t.model, raw)
}

// ExtractContent pulls choices[0].message.content out of a completion body.
// Any other shape is an UnexpectedFailure.
func ExtractContent(model string, raw []byte) (string, error) {
	if !gjson.ValidBytes(raw) {
		return "", newError(UnexpectedFailure, model, "response body is not valid JSON", nil)
	}
	content := gjson.GetBytes(raw, contentPath)
	if !content.Exists() {
		return "", newError(UnexpectedFailure, model, "response has no "+contentPath, nil)
	}
	if content.Type != gjson.String {
		return "", newError(UnexpectedFailure, model, fmt.Sprintf("%s is %s, not a string", contentPath, content.Type), nil)
	}
	if content.Str == "" {
		return "", newError(UnexpectedFailure, model, contentPath+" is empty", nil)
	}
	return content.Str, nil
}

// upstreamMessage prefers the OpenAI error shape and falls back to the raw body.
func upstreamMessage(raw []byte) string {
	if msg := gjson.GetBytes(raw, "error.message"); msg.Exists() && msg.String() != "" {
		return msg.String()
	}
	if len(raw) > maxErrorBody {
		return string(raw[:maxErrorBody]) + "..."
	}
	return string(raw)
}

// leveledLogger adapts zap to retryablehttp.LeveledLogger.
type leveledLogger struct {
	s *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
