package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	postingsTotal  *prometheus.CounterVec
	reversalsTotal *prometheus.CounterVec
	driftGauge     *prometheus.GaugeVec
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "halisi_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "halisi_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	postings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "halisi_ledger_postings_total",
		Help: "Journal entries posted, by reference type.",
	}, []string{"reference_type"})
	reversals := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "halisi_ledger_reversals_total",
		Help: "Adjustment reversals posted, by reference type of the original entry.",
	}, []string{"reference_type"})
	drift := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "halisi_balance_drift",
		Help: "Difference between cached and recomputed balance per financial account.",
	}, []string{"account"})
	registry.MustRegister(requests, duration, postings, reversals, drift)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		postingsTotal:   postings,
		reversalsTotal:  reversals,
		driftGauge:      drift,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
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

// ObservePosting counts a posted journal entry. Nil-safe.
func (m *Metrics) ObservePosting(referenceType string) {
	if m == nil {
		return
	}
	m.postingsTotal.WithLabelValues(referenceType).Inc()
}

// ObserveReversal counts a posted adjustment reversal. Nil-safe.
func (m *Metrics) ObserveReversal(referenceType string) {
	if m == nil {
		return
	}
	m.reversalsTotal.WithLabelValues(referenceType).Inc()
}

// SetBalanceDrift records the integrity scan result for an account. Nil-safe.
func (m *Metrics) SetBalanceDrift(account string, drift float64) {
	if m == nil {
		return
	}
	m.driftGauge.WithLabelValues(account).Set(drift)
}

// Registerer exposes the registry for registering custom metrics.
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
