package localai_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nulzo/reliability-forge/internal/config"
	"github.com/nulzo/reliability-forge/internal/llm"
	"github.com/nulzo/reliability-forge/internal/llm/localai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastRetries = llm.TransportConfig{
	MaxRetries:   3,
	RetryWaitMin: time.Millisecond,
	RetryWaitMax: 2 * time.Millisecond,
}

func newClient(t *testing.T, endpoint, apiKey string, tc llm.TransportConfig) llm.Client {
	t.Helper()
	c, err := localai.NewAdapter(config.ModelDescriptor{
		Name:     "localai",
		Provider: config.ProviderLocalAI,
		Endpoint: endpoint,
	}, llm.Deps{
		Credentials: config.Credentials{APIKey: apiKey},
		Transport:   tc,
	})
	require.NoError(t, err)
	return c
}

func TestLocalAIChat_PingPong(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Empty(t, r.Header.Get("Authorization"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.JSONEq(t, `{"model":"localai","messages":[{"role":"user","content":"ping"}],"max_tokens":512}`, string(body))

		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"pong"}}]}`))
	}))
	defer server.Close()

	client := newClient(t, server.URL, "", fastRetries)

	got, err := client.Chat(context.Background(), "ping", llm.ChatOptions{})
	require.NoError(t, err)
	assert.Equal(t, "pong", got)
	assert.Equal(t, "localai", client.Name())
	assert.Equal(t, config.ProviderLocalAI, client.Provider())
}

func TestLocalAIChat_RawAuthorizationAndOptions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sk-raw-token", r.Header.Get("Authorization"))

		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"model":"other","messages":[{"role":"user","content":"hi"}],"max_tokens":64}`, string(body))

		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hello"}}]}`))
	}))
	defer server.Close()

	client := newClient(t, server.URL+"/", "sk-raw-token", fastRetries)

	got, err := client.Chat(context.Background(), "hi", llm.ChatOptions{Model: "other", MaxTokens: 64})
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestLocalAIChat_RetriesThenSucceeds(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"recovered"}}]}`))
	}))
	defer server.Close()

	client := newClient(t, server.URL, "", fastRetries)

	got, err := client.Chat(context.Background(), "ping", llm.ChatOptions{})
	require.NoError(t, err)
	assert.Equal(t, "recovered", got)
	// one initial attempt plus three retries
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
}

func TestLocalAIChat_RetryBudgetExhausted(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded"}}`))
	}))
	defer server.Close()

	client := newClient(t, server.URL, "", fastRetries)

	_, err := client.Chat(context.Background(), "ping", llm.ChatOptions{})
	require.Error(t, err)

	var llmErr *llm.Error
	require.True(t, errors.As(err, &llmErr))
	assert.Equal(t, llm.RequestFailure, llmErr.Kind)
	assert.Equal(t, http.StatusServiceUnavailable, llmErr.Status)
	assert.Equal(t, "overloaded", llmErr.Cause)
	assert.True(t, errors.Is(err, llm.ErrChat))
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
}

func TestLocalAIChat_NonRetryableStatus(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`bad prompt`))
	}))
	defer server.Close()

	client := newClient(t, server.URL, "", fastRetries)

	_, err := client.Chat(context.Background(), "ping", llm.ChatOptions{})
	require.Error(t, err)
	assert.Equal(t, llm.RequestFailure, llm.KindOf(err))
	assert.Contains(t, err.Error(), "status 400")
	assert.Contains(t, err.Error(), "bad prompt")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestLocalAIChat_TooManyRequestsIsRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer server.Close()

	client := newClient(t, server.URL, "", fastRetries)

	got, err := client.Chat(context.Background(), "ping", llm.ChatOptions{})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestLocalAIChat_UnexpectedShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing content", `{"choices":[{"message":{"role":"assistant"}}]}`},
		{"completion style text", `{"choices":[{"text":"legacy"}]}`},
		{"result field", `{"result":"legacy"}`},
		{"no choices", `{"choices":[]}`},
		{"null content", `{"choices":[{"message":{"content":null}}]}`},
		{"empty content", `{"choices":[{"message":{"content":""}}]}`},
		{"not json", `<html>oops</html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := newClient(t, server.URL, "", fastRetries)

			got, err := client.Chat(context.Background(), "ping", llm.ChatOptions{})
			require.Error(t, err)
			assert.Empty(t, got)
			assert.Equal(t, llm.UnexpectedFailure, llm.KindOf(err))
		})
	}
}

func TestLocalAIChat_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	endpoint := server.URL
	server.Close()

	client := newClient(t, endpoint, "", fastRetries)

	_, err := client.Chat(context.Background(), "ping", llm.ChatOptions{})
	require.Error(t, err)
	assert.Equal(t, llm.ConnectionFailure, llm.KindOf(err))
}

func TestLocalAIChat_ReadTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()
	defer close(release)

	tc := fastRetries
	tc.ReadTimeout = 50 * time.Millisecond
	client := newClient(t, server.URL, "", tc)

	_, err := client.Chat(context.Background(), "ping", llm.ChatOptions{})
	require.Error(t, err)
	assert.Equal(t, llm.Timeout, llm.KindOf(err))
}
