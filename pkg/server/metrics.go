package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/randalmurphal/codecanvas/pkg/workflow"
)

// LatencyBuckets suit streamed generations, from 100ms to 120s.
var LatencyBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

// Generation outcomes.
const (
	OutcomeChat    = "chat"
	OutcomeCode    = "code"
	OutcomeError   = "error"
	OutcomeAborted = "aborted"
)

// Metrics holds the HTTP collectors and the registry they are exposed from.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal     *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	StreamsActive     prometheus.Gauge
	GenerationsTotal  *prometheus.CounterVec
	RateLimitRejected *prometheus.CounterVec
}

// NewMetrics registers the collectors on a fresh registry. With runtime set,
// Go runtime and process collectors are registered as well.
func NewMetrics(runtime bool) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "codecanvas_http_requests_total",
				Help: "HTTP requests by route and status code",
			},
			[]string{"route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "codecanvas_http_request_duration_seconds",
				Help:    "HTTP request duration including streamed bodies",
				Buckets: LatencyBuckets,
			},
			[]string{"route"},
		),
		StreamsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "codecanvas_streams_active",
				Help: "Generation responses currently streaming",
			},
		),
		GenerationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "codecanvas_generations_total",
				Help: "Generation responses by outcome",
			},
			[]string{"outcome"},
		),
		RateLimitRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "codecanvas_ratelimit_rejected_total",
				Help: "Requests rejected by the rate limiter",
			},
			[]string{"route"},
		),
	}
	m.registry.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.StreamsActive,
		m.GenerationsTotal,
		m.RateLimitRejected,
	)
	if runtime {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return m
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// outcomeOf maps the first chunk of a framed stream to its outcome label.
func outcomeOf(first string) string {
	switch first {
	case workflow.MarkerChat:
		return OutcomeChat
	case workflow.MarkerCode:
		return OutcomeCode
	default:
		return OutcomeError
	}
}
