// Package metrics exposes Prometheus instruments for the aggregation pipeline.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Source request outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
)

// Delivery modes of an aggregation response.
const (
	DeliveryFresh     = "fresh"
	DeliveryCached    = "cached"
	DeliveryStale     = "stale"
	DeliveryEmergency = "emergency"
	DeliveryFailed    = "failed"
)

type Metrics struct {
	registry       *prometheus.Registry
	sourceRequests *prometheus.CounterVec
	sourceArticles *prometheus.CounterVec
	sourceLatency  *prometheus.HistogramVec
	deliveries     *prometheus.CounterVec
	fallbackTier   prometheus.Counter
	coalesced      prometheus.Counter
}

// New registers the pipeline instruments on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		sourceRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "newsrelay",
			Name:      "source_requests_total",
			Help:      "Provider requests by source and outcome.",
		}, []string{"source", "outcome"}),
		sourceArticles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "newsrelay",
			Name:      "source_articles_total",
			Help:      "Articles returned by each source before deduplication.",
		}, []string{"source"}),
		sourceLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "newsrelay",
			Name:      "source_request_duration_seconds",
			Help:      "Provider request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "newsrelay",
			Name:      "aggregations_total",
			Help:      "Aggregation responses by delivery mode.",
		}, []string{"mode"}),
		fallbackTier: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "newsrelay",
			Name:      "fallback_tier_runs_total",
			Help:      "Times the primary tier yield fell below the floor.",
		}),
		coalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "newsrelay",
			Name:      "coalesced_requests_total",
			Help:      "Requests that shared an in-flight fetch for the same key.",
		}),
	}

	reg.MustRegister(
		m.sourceRequests,
		m.sourceArticles,
		m.sourceLatency,
		m.deliveries,
		m.fallbackTier,
		m.coalesced,
		collectors.NewGoCollector(),
	)
	return m
}

// ObserveSource records one provider call.
func (m *Metrics) ObserveSource(source, outcome string, articles int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.sourceRequests.WithLabelValues(source, outcome).Inc()
	m.sourceArticles.WithLabelValues(source).Add(float64(articles))
	m.sourceLatency.WithLabelValues(source).Observe(elapsed.Seconds())
}

// ObserveDelivery records how a response was produced.
func (m *Metrics) ObserveDelivery(mode string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(mode).Inc()
}

// FallbackTierUsed counts a fallback tier run.
func (m *Metrics) FallbackTierUsed() {
	if m == nil {
		return
	}
	m.fallbackTier.Inc()
}

// Coalesced counts a request served by another request's fetch.
func (m *Metrics) Coalesced() {
	if m == nil {
		return
	}
	m.coalesced.Inc()
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
