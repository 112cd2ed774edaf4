// Package metrics exposes the platform's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the platform records into. A single instance
// is shared across services.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	httpInFlight prometheus.Gauge

	questTransitions *prometheus.CounterVec

	hintJobs *prometheus.CounterVec

	rewardTransitions *prometheus.CounterVec

	wsConnections prometheus.Gauge
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dojo_http_requests_total",
			Help: "HTTP requests by method, path and status.",
		}, []string{"method", "path", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dojo_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		httpInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dojo_http_requests_in_flight",
			Help: "HTTP requests currently being served.",
		}),
		questTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dojo_quest_state_transitions_total",
			Help: "Quest instance state transitions, by resulting state.",
		}, []string{"state"}),
		hintJobs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dojo_hint_jobs_total",
			Help: "Hint jobs processed, by outcome.",
		}, []string{"outcome"}),
		rewardTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dojo_reward_transitions_total",
			Help: "Reward transaction transitions, by resulting status.",
		}, []string{"status"}),
		wsConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dojo_ws_connections",
			Help: "Active websocket connections.",
		}),
	}
}

// Handler serves the registry scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.httpRequests.WithLabelValues(method, path, status).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func (m *Metrics) IncrementInFlight() { m.httpInFlight.Inc() }
func (m *Metrics) DecrementInFlight() { m.httpInFlight.Dec() }

func (m *Metrics) RecordQuestTransition(state string) { m.questTransitions.WithLabelValues(state).Inc() }

func (m *Metrics) RecordHintJob(outcome string) { m.hintJobs.WithLabelValues(outcome).Inc() }

func (m *Metrics) RecordRewardTransition(status string) {
	m.rewardTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) WSConnected()    { m.wsConnections.Inc() }
func (m *Metrics) WSDisconnected() { m.wsConnections.Dec() }
