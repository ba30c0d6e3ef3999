package llm

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/nulzo/reliability-forge/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChatRequest(t *testing.T) {
	req := NewChatRequest("localai", "ping", ChatOptions{})
	assert.Equal(t, "localai", req.Model)
	assert.Equal(t, DefaultMaxTokens, req.MaxTokens)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, Message{Role: "user", Content: "ping"}, req.Messages[0])

	req = NewChatRequest("localai", "ping", ChatOptions{Model: "override", MaxTokens: 10})
	assert.Equal(t, "override", req.Model)
	assert.Equal(t, 10, req.MaxTokens)
}

func TestErrorMatching(t *testing.T) {
	err := fmt.Errorf("stage failed: %w", &Error{Kind: RequestFailure, Model: "m", Status: 503, Cause: "busy"})

	assert.True(t, errors.Is(err, ErrChat))
	assert.Equal(t, RequestFailure, KindOf(err))
	assert.Equal(t, ErrorKind(0), KindOf(errors.New("plain")))
	assert.Equal(t, "llm request failure (model m) status 503: busy", errors.Unwrap(err).Error())
}

func TestExtractContent(t *testing.T) {
	got, err := ExtractContent("m", []byte(`{"choices":[{"message":{"content":"x"}},{"message":{"content":"y"}}]}`))
	require.NoError(t, err)
	assert.Equal(t, "x", got)

	_, err = ExtractContent("m", []byte(`{"choices":[{"message":{"content":42}}]}`))
	assert.Equal(t, UnexpectedFailure, KindOf(err))
}

func TestGetUnknownFactory(t *testing.T) {
	_, err := Get(config.Provider("Bedrock"))
	assert.Error(t, err)
}

func TestTransportConfigDefaults(t *testing.T) {
	c := TransportConfig{}.withDefaults()
	assert.Equal(t, DefaultReadTimeout, c.ReadTimeout)
	assert.Equal(t, 0, c.MaxRetries)
	assert.GreaterOrEqual(t, c.RetryWaitMax, c.RetryWaitMin)
}

func TestNewTransport_FixedConnectTimeout(t *testing.T) {
	tr := NewTransport("m", TransportConfigFrom(config.LLMConfig{ReadTimeout: time.Second}), nil)

	ht, ok := tr.client.HTTPClient.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, DefaultConnectTimeout, ht.TLSHandshakeTimeout)
	assert.Equal(t, time.Second, ht.ResponseHeaderTimeout)
	assert.Equal(t, DefaultConnectTimeout+time.Second, tr.client.HTTPClient.Timeout)
}

func TestCappedBackoff_RetryAfter(t *testing.T) {
	lo, hi := 10*time.Millisecond, 50*time.Millisecond

	for _, status := range []int{http.StatusTooManyRequests, http.StatusServiceUnavailable} {
		resp := &http.Response{StatusCode: status, Header: http.Header{"Retry-After": []string{"3600"}}}
		assert.Equal(t, hi, cappedBackoff(lo, hi, 1, resp), status)
	}

	resp := &http.Response{StatusCode: http.StatusBadGateway, Header: http.Header{}}
	for attempt := 0; attempt < 10; attempt++ {
		wait := cappedBackoff(lo, hi, attempt, resp)
		assert.GreaterOrEqual(t, wait, lo)
		assert.LessOrEqual(t, wait, hi)
	}
}
