package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "forge"

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Metrics owns a private registry so several instances can coexist in tests.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	LLMRequests        *prometheus.CounterVec
	LLMRequestDuration *prometheus.HistogramVec
	PipelineRuns       *prometheus.CounterVec
	CacheLookups       *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		// LLM
		LLMRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_requests_total",
				Help:      "Chat completion calls by model and outcome",
			},
			[]string{"model", "outcome"}, // outcome: success|<error kind>
		),
		LLMRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "llm_request_duration_seconds",
				Help:      "Chat completion latency including transport retries",
				Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"model"},
		),

		// Pipeline
		PipelineRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pipeline_runs_total",
				Help:      "Pattern pipeline runs by outcome",
			},
			[]string{"outcome"},
		),

		// Cache
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Response cache lookups",
			},
			[]string{"result"}, // result: hit|miss
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.LLMRequests,
		m.LLMRequestDuration,
		m.PipelineRuns,
		m.CacheLookups,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying gatherer, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// LLM
func (m *Metrics) ObserveLLMRequest(model, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.LLMRequests.WithLabelValues(model, outcome).Inc()
	m.LLMRequestDuration.WithLabelValues(model).Observe(d.Seconds())
}

// Pipeline
func (m *Metrics) IncPipelineRun(outcome string) {
	if m == nil {
		return
	}
	m.PipelineRuns.WithLabelValues(outcome).Inc()
}

// Cache
func (m *Metrics) IncCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}
