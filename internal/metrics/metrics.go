package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "order_lifecycle"

type ServerMetrics struct {
	Requests          *prometheus.CounterVec
	LatencyMS         *prometheus.HistogramVec
	StatusTransitions *prometheus.CounterVec
	ReviewMutations   *prometheus.CounterVec
	ReviewRefetches   *prometheus.CounterVec
	ActiveSessions    prometheus.GaugeFunc

	gatherer prometheus.Gatherer
}

// NewServerMetrics registers the collectors on reg. sessions reports the
// number of open review sessions and may be nil.
func NewServerMetrics(reg *prometheus.Registry, sessions func() int) *ServerMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "status_transitions_total",
		Help:      "Order status change attempts by source, target and outcome.",
	}, []string{"from", "to", "outcome"})
	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "review",
		Name:      "mutations_total",
		Help:      "Review create/update/delete calls by outcome.",
	}, []string{"kind", "outcome"})
	refetches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "review",
		Name:      "refetches_total",
		Help:      "Background order refetches after review mutations by outcome.",
	}, []string{"outcome"})

	if sessions == nil {
		sessions = func() int { return 0 }
	}
	active := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "review",
		Name:      "active_sessions",
		Help:      "Open review sessions.",
	}, func() float64 { return float64(sessions()) })

	reg.MustRegister(requests, latency, transitions, mutations, refetches, active)
	return &ServerMetrics{
		Requests:          requests,
		LatencyMS:         latency,
		StatusTransitions: transitions,
		ReviewMutations:   mutations,
		ReviewRefetches:   refetches,
		ActiveSessions:    active,
		gatherer:          reg,
	}
}

func (m *ServerMetrics) StatusTransition(from, to, outcome string) {
	m.StatusTransitions.WithLabelValues(from, to, outcome).Inc()
}

func (m *ServerMetrics) ReviewMutation(kind, outcome string) {
	m.ReviewMutations.WithLabelValues(kind, outcome).Inc()
}

func (m *ServerMetrics) ReviewRefetch(outcome string) {
	m.ReviewRefetches.WithLabelValues(outcome).Inc()
}

func (m *ServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
