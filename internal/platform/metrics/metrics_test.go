package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveLLMRequest(t *testing.T) {
	m := New()

	m.ObserveLLMRequest("localai", OutcomeSuccess, 150*time.Millisecond)
	m.ObserveLLMRequest("localai", OutcomeSuccess, time.Second)
	m.ObserveLLMRequest("localai", "timeout", time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.LLMRequests.WithLabelValues("localai", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMRequests.WithLabelValues("localai", "timeout")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.LLMRequestDuration))
}

func TestPipelineAndCacheCounters(t *testing.T) {
	m := New()

	m.IncPipelineRun(OutcomeSuccess)
	m.IncPipelineRun(OutcomeError)
	m.IncPipelineRun(OutcomeError)
	m.IncCacheLookup(true)
	m.IncCacheLookup(false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.PipelineRuns.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PipelineRuns.WithLabelValues(OutcomeError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveLLMRequest("x", OutcomeSuccess, time.Millisecond)
		m.IncPipelineRun(OutcomeError)
		m.IncCacheLookup(true)
	})
}

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.IncPipelineRun(OutcomeSuccess)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `forge_pipeline_runs_total{outcome="success"} 1`)
}
