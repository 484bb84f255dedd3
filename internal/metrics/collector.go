// Package metrics exposes Prometheus instrumentation for the ensemble
// core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector bundles the engine's Prometheus metrics. Construct one per
// process with a registerer; tests pass their own registry to avoid
// global registration collisions.
type Collector struct {
	ProviderLatency  *prometheus.HistogramVec
	ProviderFailures *prometheus.CounterVec
	ProviderCalls    *prometheus.CounterVec
	Disagreement     prometheus.Histogram
	FallbackTotal    prometheus.Counter
	RequestsTotal    *prometheus.CounterVec
}

// NewCollector creates and registers the metric set.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		ProviderLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ensemble_provider_latency_seconds",
				Help:    "Provider call latency in seconds",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"provider"},
		),
		ProviderFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ensemble_provider_failures_total",
				Help: "Provider call failures by kind",
			},
			[]string{"provider", "kind"},
		),
		ProviderCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ensemble_provider_calls_total",
				Help: "Provider calls attempted",
			},
			[]string{"provider"},
		),
		Disagreement: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ensemble_disagreement_score",
				Help:    "Per-request ensemble disagreement score",
				Buckets: prometheus.LinearBuckets(0, 0.1, 11),
			},
		),
		FallbackTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ensemble_fallback_total",
				Help: "Requests answered by the local fallback chain",
			},
		),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ensemble_requests_total",
				Help: "Requests by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			c.ProviderLatency,
			c.ProviderFailures,
			c.ProviderCalls,
			c.Disagreement,
			c.FallbackTotal,
			c.RequestsTotal,
		)
	}
	return c
}
