// Package metrics defines the assistant's Prometheus collectors and serves
// them from a private registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "partselect"

// LLMBuckets cover provider round trips, in seconds.
var LLMBuckets = []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 30}

// ScoreBuckets cover cosine similarity of the top retrieval hit.
var ScoreBuckets = []float64{0, 0.1, 0.2, 0.3, 0.35, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1}

// Registry owns every collector the service exports.
type Registry struct {
	reg *prometheus.Registry

	ChatRequests    *prometheus.CounterVec   // route
	RuleHits        *prometheus.CounterVec   // rule
	LLMRequests     *prometheus.CounterVec   // provider, kind, status
	LLMDuration     *prometheus.HistogramVec // provider, kind
	RetrievalScore  prometheus.Histogram
	IndexDocuments  prometheus.Gauge
	IndexBuilds     *prometheus.CounterVec // status
	BreakerState    *prometheus.GaugeVec   // name
	IngestProcessed *prometheus.CounterVec // status
}

// New creates a Registry with all collectors registered, plus the Go runtime
// and process collectors.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		ChatRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_requests_total",
			Help:      "Chat messages answered, by routing decision.",
		}, []string{"route"}),
		RuleHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_rule_hits_total",
			Help:      "Deterministic rule matches, by rule name.",
		}, []string{"rule"}),
		LLMRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Model provider requests, by provider, kind and outcome.",
		}, []string{"provider", "kind", "status"}),
		LLMDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Model provider request latency.",
			Buckets:   LLMBuckets,
		}, []string{"provider", "kind"}),
		RetrievalScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_top_score",
			Help:      "Cosine score of the best retrieval hit for part-oriented questions.",
			Buckets:   ScoreBuckets,
		}),
		IndexDocuments: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_documents",
			Help:      "Documents in the live retrieval index; zero when not built.",
		}),
		IndexBuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_builds_total",
			Help:      "Index build attempts, by outcome.",
		}, []string{"status"}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Provider circuit breaker state (0 closed, 1 open, 2 half-open).",
		}, []string{"name"}),
		IngestProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_parts_total",
			Help:      "Catalog ingest messages processed, by outcome.",
		}, []string{"status"}),
	}
	r.reg.MustRegister(
		r.ChatRequests, r.RuleHits, r.LLMRequests, r.LLMDuration,
		r.RetrievalScore, r.IndexDocuments, r.IndexBuilds, r.BreakerState,
		r.IngestProcessed,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Gatherer exposes the underlying registry, mainly for tests.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Status maps an error to the status label used on outcome counters.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
