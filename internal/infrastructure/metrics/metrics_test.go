package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"payment-service/internal/domain"
)

func TestPaymentMetrics_Counters(t *testing.T) {
	m := NewPaymentMetrics(prometheus.NewRegistry())

	m.PaymentProcessed(domain.PaymentStatusSuccess)
	m.PaymentProcessed(domain.PaymentStatusSuccess)
	m.PaymentProcessed(domain.PaymentStatusFailed)
	m.RefundAttempted("refunded")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.processed.WithLabelValues("SUCCESS")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.processed.WithLabelValues("FAILED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.refunds.WithLabelValues("refunded")))
}

func TestPaymentMetrics_ObserveOperation(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPaymentMetrics(reg)

	m.ObserveOperation("process", "success", 20*time.Millisecond)

	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))
}

func TestNewHTTPMetrics_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	m.Requests.WithLabelValues("GET", "/health", "200").Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("GET", "/health", "200")))
	assert.Panics(t, func() { NewHTTPMetrics(reg) })
}
