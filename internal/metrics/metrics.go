// Package metrics exposes Prometheus instrumentation for the geomagd
// service: HTTP traffic, field evaluations, grid batches, and the state of
// the loaded coefficient set.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geomag_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "geomag_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	evaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geomag_evaluations_total",
			Help: "Total number of field evaluations.",
		},
		[]string{"result"},
	)

	evaluationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "geomag_evaluation_duration_seconds",
			Help:    "Single field evaluation duration in seconds.",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
		},
	)

	gridDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "geomag_grid_duration_seconds",
			Help:    "Grid batch evaluation duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)

	gridPointsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geomag_grid_points_total",
			Help: "Total grid points evaluated, by result.",
		},
		[]string{"result"},
	)

	modelSetAgeSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "geomag_modelset_age_seconds",
			Help: "Age of the loaded coefficient set in seconds.",
		},
	)

	modelSetSnapshots = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "geomag_modelset_snapshots",
			Help: "Number of coefficient snapshots in the loaded set.",
		},
	)

	coeffFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geomag_coefficient_fetches_total",
			Help: "Coefficient file fetch attempts, by result.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		evaluationsTotal,
		evaluationSeconds,
		gridDurationSeconds,
		gridPointsTotal,
		modelSetAgeSeconds,
		modelSetSnapshots,
		coeffFetchesTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordEvaluation records one field evaluation and its outcome.
func RecordEvaluation(d time.Duration, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	evaluationsTotal.WithLabelValues(result).Inc()
	if ok {
		evaluationSeconds.Observe(d.Seconds())
	}
}

// RecordGrid records a grid batch evaluation.
func RecordGrid(d time.Duration, successCount, errorCount int) {
	gridDurationSeconds.Observe(d.Seconds())
	gridPointsTotal.WithLabelValues("ok").Add(float64(successCount))
	gridPointsTotal.WithLabelValues("error").Add(float64(errorCount))
}

// SetModelSetAge updates the coefficient set age gauge.
func SetModelSetAge(seconds float64) {
	modelSetAgeSeconds.Set(seconds)
}

// SetModelSetSnapshots updates the snapshot count gauge.
func SetModelSetSnapshots(n int) {
	modelSetSnapshots.Set(float64(n))
}

// RecordCoeffFetch records a coefficient file fetch attempt.
func RecordCoeffFetch(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	coeffFetchesTotal.WithLabelValues(result).Inc()
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// normalizeRoute collapses request paths to a bounded label set so bots
// probing random paths cannot blow up metric cardinality.
func normalizeRoute(path string) string {
	switch path {
	case "/healthz", "/readyz", "/metrics", "/",
		"/api/v1/field", "/api/v1/field/geocentric",
		"/api/v1/grid", "/api/v1/model/metadata", "/api/v1/model/fetch":
		return path
	default:
		return "other"
	}
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}
