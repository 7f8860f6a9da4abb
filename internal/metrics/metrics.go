package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Label values used by the storefront collectors.
const (
	OutcomeSuccess        = "success"
	OutcomeInvalid        = "invalid"
	OutcomeEmpty          = "empty"
	OutcomeOutOfStock     = "out_of_stock"
	OutcomeRaceOutOfStock = "race_out_of_stock"
	OutcomeInternal       = "internal"
	NotifyStatusOK        = "ok"
	NotifyStatusFailed    = "failed"
	NotifyStatusDropped   = "dropped"
	NotifyStatusSkipped   = "skipped"
)

type Metrics struct {
	CheckoutAttempts *prometheus.CounterVec
	CheckoutLatency  prometheus.Histogram
	NotifyTasks      *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers the storefront collectors on reg. A nil reg uses a private
// registry, which keeps tests from colliding on the global one.
func New(reg prometheus.Registerer) *Metrics {
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if reg == nil {
		r := prometheus.NewRegistry()
		reg, gatherer = r, r
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Name:      "checkout_attempts_total",
		Help:      "Checkout submissions by outcome.",
	}, []string{"outcome"})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "storefront",
		Name:      "checkout_duration_ms",
		Help:      "Checkout latency in milliseconds, transaction included.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	})
	notify := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Name:      "notify_tasks_total",
		Help:      "Post-commit tasks by task and status.",
	}, []string{"task", "status"})

	reg.MustRegister(attempts, latency, notify)
	return &Metrics{CheckoutAttempts: attempts, CheckoutLatency: latency, NotifyTasks: notify, gatherer: gatherer}
}

// ObserveCheckout records one checkout attempt. Safe on a nil receiver.
func (m *Metrics) ObserveCheckout(outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.CheckoutAttempts.WithLabelValues(outcome).Inc()
	m.CheckoutLatency.Observe(float64(time.Since(started).Milliseconds()))
}

// ObserveNotify records the result of one post-commit task. Safe on a nil receiver.
func (m *Metrics) ObserveNotify(task, status string) {
	if m == nil {
		return
	}
	m.NotifyTasks.WithLabelValues(task, status).Inc()
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
