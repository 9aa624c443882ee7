package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/admincache/internal/model"
)

// Metrics are the engine's Prometheus collectors.
type Metrics struct {
	Requests      *prometheus.CounterVec
	Latency       *prometheus.HistogramVec
	InFlight      prometheus.Gauge
	Coalesced     prometheus.Counter
	Stale         prometheus.Counter
	Notifications *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// leaves them unregistered, which is what tests use.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "admincache",
			Name:      "provider_requests_total",
			Help:      "Data-provider calls by verb and outcome.",
		}, []string{"verb", "outcome"}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "admincache",
			Name:      "provider_request_duration_seconds",
			Help:      "Data-provider call latency by verb.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"verb"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "admincache",
			Name:      "fetches_in_flight",
			Help:      "Provider calls currently in flight.",
		}),
		Coalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "admincache",
			Name:      "coalesced_ids_total",
			Help:      "GET_MANY ids saved by accumulation and deduplication.",
		}),
		Stale: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "admincache",
			Name:      "stale_responses_total",
			Help:      "List responses discarded because a newer request superseded them.",
		}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "admincache",
			Name:      "notifications_total",
			Help:      "Notifications emitted by level.",
		}, []string{"level"}),
	}
	if reg != nil {
		reg.MustRegister(m.Requests, m.Latency, m.InFlight, m.Coalesced, m.Stale, m.Notifications)
	}
	return m
}

func (m *Metrics) observe(verb model.Verb, outcome Outcome, elapsed time.Duration) {
	m.Requests.WithLabelValues(string(verb), string(outcome)).Inc()
	m.Latency.WithLabelValues(string(verb)).Observe(elapsed.Seconds())
}
