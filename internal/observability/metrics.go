package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the Prometheus metrics of the POS server.
type Metrics struct {
	registry           *prometheus.Registry
	handler            http.Handler
	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	salesTotal         *prometheus.CounterVec
	salesAmount        *prometheus.CounterVec
	salesCanceled      *prometheus.CounterVec
	refundsTotal       *prometheus.CounterVec
	refundsAmount      *prometheus.CounterVec
	registerDifference prometheus.Histogram
}

// NewMetrics initialises a private registry with HTTP and domain metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_http_requests_total",
		Help: "HTTP requests by route and status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pos_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	salesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_sales_total",
		Help: "Completed sales by payment method.",
	}, []string{"method"})
	salesAmount := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_sales_amount_total",
		Help: "Sold amount by payment method.",
	}, []string{"method"})
	salesCanceled := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_sales_canceled_total",
		Help: "Canceled sales by payment method.",
	}, []string{"method"})
	refundsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_refunds_total",
		Help: "Refunds by type.",
	}, []string{"type"})
	refundsAmount := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_refunds_amount_total",
		Help: "Refunded amount by type.",
	}, []string{"type"})
	difference := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pos_register_close_difference",
		Help:    "Register close difference (counted minus expected).",
		Buckets: []float64{-1000, -100, -10, -1, -0.01, 0.01, 1, 10, 100, 1000},
	})
	registry.MustRegister(requests, duration, salesTotal, salesAmount, salesCanceled, refundsTotal, refundsAmount, difference)
	return &Metrics{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:      requests,
		requestDuration:    duration,
		salesTotal:         salesTotal,
		salesAmount:        salesAmount,
		salesCanceled:      salesCanceled,
		refundsTotal:       refundsTotal,
		refundsAmount:      refundsAmount,
		registerDifference: difference,
	}
}

// SaleCompleted counts a committed sale.
func (m *Metrics) SaleCompleted(method string, total float64) {
	if m == nil {
		return
	}
	m.salesTotal.WithLabelValues(method).Inc()
	m.salesAmount.WithLabelValues(method).Add(total)
}

// SaleCanceled counts a voided sale.
func (m *Metrics) SaleCanceled(method string) {
	if m == nil {
		return
	}
	m.salesCanceled.WithLabelValues(method).Inc()
}

// RefundCreated counts a refund and its amount.
func (m *Metrics) RefundCreated(refundType string, amount float64) {
	if m == nil {
		return
	}
	m.refundsTotal.WithLabelValues(refundType).Inc()
	m.refundsAmount.WithLabelValues(refundType).Add(amount)
}

// RegisterClosed observes the difference of a closed register.
func (m *Metrics) RegisterClosed(difference float64) {
	if m == nil {
		return
	}
	m.registerDifference.Observe(difference)
}

// Handler serves /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request count and latency by route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry for extra collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
