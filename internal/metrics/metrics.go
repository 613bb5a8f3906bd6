// Package metrics exposes Prometheus counters for the humanize pipeline
// and the payment flow.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	words    prometheus.Counter
	provider *prometheus.HistogramVec
	payments *prometheus.CounterVec
}

// New registers the inkd collectors plus the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inkd",
			Name:      "humanize_requests_total",
			Help:      "Humanize requests by outcome.",
		}, []string{"outcome"}),
		words: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "inkd",
			Name:      "words_charged_total",
			Help:      "Words debited and not refunded.",
		}),
		provider: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "inkd",
			Name:      "provider_duration_seconds",
			Help:      "Latency of chat-completion calls.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 90},
		}, []string{"result"}),
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inkd",
			Name:      "payments_total",
			Help:      "PayPal payment steps by stage and result.",
		}, []string{"stage", "result"}),
	}
	m.registry.MustRegister(
		m.requests, m.words, m.provider, m.payments,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveRequest counts one finished humanize request.
func (m *Metrics) ObserveRequest(outcome string, charged int64) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(outcome).Inc()
	if charged > 0 {
		m.words.Add(float64(charged))
	}
}

// ObserveProvider records one provider call.
func (m *Metrics) ObserveProvider(took time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.provider.WithLabelValues(result).Observe(took.Seconds())
}

// Payment counts a payment step, e.g. ("create", "ok") or ("execute", "error").
func (m *Metrics) Payment(stage string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.payments.WithLabelValues(stage, result).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
