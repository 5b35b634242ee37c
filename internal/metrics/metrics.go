package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use as a nil pointer; every method then does nothing.
type Metrics struct {
	registry        *prometheus.Registry
	purchases       *prometheus.CounterVec
	refunds         *prometheus.CounterVec
	checkIns        *prometheus.CounterVec
	gatewayDuration *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		purchases: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boxoffice_purchases_total",
				Help: "Purchase attempts by outcome",
			},
			[]string{"outcome"},
		),
		refunds: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boxoffice_refunds_total",
				Help: "Refunds and cancellations by kind",
			},
			[]string{"kind"},
		),
		checkIns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boxoffice_checkins_total",
				Help: "Check-in attempts by outcome",
			},
			[]string{"outcome"},
		),
		gatewayDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "boxoffice_gateway_duration_seconds",
				Help:    "Payment gateway call duration",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
			},
			[]string{"outcome"},
		),
	}
}

// Outcome labels a result: "ok" for success, the error code otherwise.
func Outcome(code string) string {
	if code == "" {
		return "ok"
	}
	return code
}

func (m *Metrics) Purchase(outcome string) {
	if m == nil {
		return
	}
	m.purchases.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Refund(kind string) {
	if m == nil {
		return
	}
	m.refunds.WithLabelValues(kind).Inc()
}

func (m *Metrics) CheckIn(outcome string) {
	if m == nil {
		return
	}
	m.checkIns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) GatewayCall(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.gatewayDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
