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
			Name: "opsc_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "opsc_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	propagationDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "opsc_propagation_duration_seconds",
			Help:    "Duration of a single SGP4 propagation to ground geometry.",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
		},
	)

	propagationErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "opsc_propagation_errors_total",
			Help: "Total number of failed propagations.",
		},
	)

	sgp4CacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "opsc_sgp4_cache_entries",
			Help: "Number of initialised SGP4 satellites held in memory.",
		},
	)

	engineSamplesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsc_engine_samples_total",
			Help: "Timestamp samples seen by the geometry engines.",
		},
		[]string{"engine", "outcome"},
	)

	engineRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsc_engine_runs_total",
			Help: "Engine invocations by result.",
		},
		[]string{"engine", "result"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		propagationDurationSeconds,
		propagationErrorsTotal,
		sgp4CacheEntries,
		engineSamplesTotal,
		engineRunsTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordPropagation records one propagator call.
func RecordPropagation(d time.Duration, failed bool) {
	propagationDurationSeconds.Observe(d.Seconds())
	if failed {
		propagationErrorsTotal.Inc()
	}
}

// SetSGP4CacheSize reports the current size of the SGP4 satellite cache.
func SetSGP4CacheSize(n int) {
	sgp4CacheEntries.Set(float64(n))
}

// RecordSamples counts processed and skipped samples for an engine run.
func RecordSamples(engine string, processed, skipped int) {
	engineSamplesTotal.WithLabelValues(engine, "processed").Add(float64(processed))
	engineSamplesTotal.WithLabelValues(engine, "skipped").Add(float64(skipped))
}

// RecordRun counts an engine invocation.
func RecordRun(engine string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	engineRunsTotal.WithLabelValues(engine, result).Inc()
}

// knownRoutes are the only path labels emitted; anything else is "other" so
// scanners cannot blow up label cardinality.
var knownRoutes = map[string]bool{
	"/healthz":          true,
	"/readyz":           true,
	"/metrics":          true,
	"/api/v1/pass":      true,
	"/api/v1/footprint": true,
}

func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	return "other"
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

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		path := normalizeRoute(r.URL.Path)
		httpRequestsTotal.WithLabelValues(path, r.Method, strconv.Itoa(rw.statusCode)).Inc()
		httpDurationSeconds.WithLabelValues(path, r.Method).Observe(time.Since(start).Seconds())
	})
}
