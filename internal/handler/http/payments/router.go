package payments_http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"payment-service/internal/app/payments"
	"payment-service/internal/infrastructure/metrics"
)

type RouterOptions struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	// Gatherer backs /metrics; the endpoint is omitted when nil.
	Gatherer    prometheus.Gatherer
	HTTPMetrics *metrics.HTTPMetrics
	Tracer      trace.Tracer
}

func NewRouter(s payments.PaymentService, l *zap.Logger, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(Tracing(opts.Tracer))
	r.Use(AccessLog(l.With(zap.String("component", "HTTPAccessLog"))))
	if opts.HTTPMetrics != nil {
		r.Use(Metrics(opts.HTTPMetrics))
	}
	r.Use(middleware.Recoverer)
	if opts.RequestTimeout > 0 {
		r.Use(middleware.Timeout(opts.RequestTimeout))
	}

	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID", "traceparent", "tracestate"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	if opts.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	RegisterRoutes(r, s, l)
	return r
}

func RegisterRoutes(r chi.Router, s payments.PaymentService, l *zap.Logger) {
	handler := NewPaymentHandler(s, l.With(zap.String("component", "PaymentHTTPHandler")))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"UP"}`))
	})

	r.Route("/api/payments", func(r chi.Router) {
		r.Post("/process", handler.ProcessPaymentHandler)
		r.Post("/refund", handler.RefundPaymentHandler)
		r.Get("/order/{orderId}", handler.GetPaymentByOrderHandler)
		r.Get("/user/{userId}", handler.GetPaymentsByUserHandler)
		r.Get("/{id}", handler.GetPaymentHandler)
	})
}
