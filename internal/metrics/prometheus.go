package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder keeps relay metrics in its own registry and serves
// them through Handler.
type PrometheusRecorder struct {
	registry         *prometheus.Registry
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	outcomesTotal    *prometheus.CounterVec
	dispatchTotal    *prometheus.CounterVec
	dispatchDuration prometheus.Histogram
}

var _ Recorder = (*PrometheusRecorder)(nil)

// NewPrometheusRecorder registers the relay collectors, plus the Go runtime
// and process collectors, on a fresh registry.
func NewPrometheusRecorder() *PrometheusRecorder {
	m := &PrometheusRecorder{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_http_requests_total",
				Help: "Total number of inbound HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relay_http_request_duration_seconds",
				Help:    "Duration of inbound HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		outcomesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_notifications_total",
				Help: "Total number of processed notifications by outcome",
			},
			[]string{"status", "event_type"},
		),
		dispatchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_push_dispatch_total",
				Help: "Total number of push dispatch attempts by result",
			},
			[]string{"result"},
		),
		dispatchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "relay_push_dispatch_duration_seconds",
				Help:    "Duration of push dispatch attempts",
				Buckets: prometheus.DefBuckets,
			},
		),
	}

	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.outcomesTotal,
		m.dispatchTotal,
		m.dispatchDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *PrometheusRecorder) RecordRequest(method, endpoint, status string, duration time.Duration) {
	m.requestsTotal.WithLabelValues(method, endpoint, status).Inc()
	m.requestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

func (m *PrometheusRecorder) RecordOutcome(_ context.Context, status, eventType string) {
	m.outcomesTotal.WithLabelValues(status, eventTypeOrNone(eventType)).Inc()
}

func (m *PrometheusRecorder) RecordDispatch(_ context.Context, result string, duration time.Duration) {
	m.dispatchTotal.WithLabelValues(result).Inc()
	m.dispatchDuration.Observe(duration.Seconds())
}

// Registry exposes the underlying registry.
func (m *PrometheusRecorder) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
