package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"payment-service/internal/domain"
)

const namespace = "payments"

// PaymentMetrics implements payments.Metrics on top of Prometheus collectors.
type PaymentMetrics struct {
	processed *prometheus.CounterVec
	refunds   *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	m := &PaymentMetrics{
		processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "processed_total",
			Help:      "Payments processed, by resolved status.",
		}, []string{"status"}),
		refunds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refunds_total",
			Help:      "Refund attempts, by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of payment service operations in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "outcome"}),
	}
	reg.MustRegister(m.processed, m.refunds, m.duration)
	return m
}

func (m *PaymentMetrics) PaymentProcessed(status domain.PaymentStatus) {
	m.processed.WithLabelValues(string(status)).Inc()
}

func (m *PaymentMetrics) RefundAttempted(outcome string) {
	m.refunds.WithLabelValues(outcome).Inc()
}

func (m *PaymentMetrics) ObserveOperation(operation, outcome string, duration time.Duration) {
	m.duration.WithLabelValues(operation, outcome).Observe(duration.Seconds())
}

// HTTPMetrics holds the RED metrics recorded by the HTTP middleware.
type HTTPMetrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(m.Requests, m.Duration)
	return m
}
