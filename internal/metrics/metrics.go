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
			Name: "keplersim_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "keplersim_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	positionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keplersim_positions_total",
			Help: "Positions computed, by outcome (valid or invalid elements).",
		},
		[]string{"status"},
	)

	rowsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "keplersim_rows_total",
		Help: "Time series rows emitted.",
	})

	rowDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "keplersim_row_duration_seconds",
		Help:    "Time to compute all bodies for one date.",
		Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
	})

	bodies = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "keplersim_bodies",
		Help: "Bodies in the current element set.",
	})

	elementSetAge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "keplersim_element_set_age_seconds",
		Help: "Seconds since the current element set was fetched.",
	})

	horizonsRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keplersim_horizons_requests_total",
			Help: "Horizons API requests by outcome (ok, error, cached).",
		},
		[]string{"outcome"},
	)

	horizonsDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "keplersim_horizons_request_duration_seconds",
		Help:    "Horizons API request duration in seconds, retries included.",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "keplersim_cache_hits_total",
		Help: "Row cache hits.",
	})

	cacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "keplersim_cache_misses_total",
		Help: "Row cache misses.",
	})

	cacheEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "keplersim_cache_evictions_total",
		Help: "Rows evicted from the row cache, cutovers included.",
	})

	cacheEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "keplersim_cache_entries",
		Help: "Rows held in the row cache.",
	})

	streamsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "keplersim_streams_active",
		Help: "Open SSE position streams.",
	})

	streamMessagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "keplersim_stream_messages_total",
		Help: "SSE events sent.",
	})

	streamBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "keplersim_stream_bytes_total",
		Help: "Bytes written to SSE streams.",
	})

	streamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keplersim_stream_errors_total",
			Help: "SSE stream errors by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		positionsTotal,
		rowsTotal,
		rowDurationSeconds,
		bodies,
		elementSetAge,
		horizonsRequestsTotal,
		horizonsDurationSeconds,
		cacheHits,
		cacheMisses,
		cacheEvictions,
		cacheEntries,
		streamsActive,
		streamMessagesTotal,
		streamBytesTotal,
		streamErrorsTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordPropagation records one row's worth of propagations.
func RecordPropagation(d time.Duration, valid, invalid int) {
	rowDurationSeconds.Observe(d.Seconds())
	positionsTotal.WithLabelValues("valid").Add(float64(valid))
	positionsTotal.WithLabelValues("invalid").Add(float64(invalid))
}

// IncRows counts one emitted row.
func IncRows() { rowsTotal.Inc() }

// SetBodies sets the body count of the current element set.
func SetBodies(n int) { bodies.Set(float64(n)) }

// SetElementSetAge sets the age of the current element set.
func SetElementSetAge(seconds float64) { elementSetAge.Set(seconds) }

// RecordHorizonsRequest records a Horizons API call. outcome is "ok",
// "error" or "cached".
func RecordHorizonsRequest(outcome string, d time.Duration) {
	horizonsRequestsTotal.WithLabelValues(outcome).Inc()
	if outcome != "cached" {
		horizonsDurationSeconds.Observe(d.Seconds())
	}
}

func AddCacheHits(n int)      { cacheHits.Add(float64(n)) }
func AddCacheMisses(n int)    { cacheMisses.Add(float64(n)) }
func AddCacheEvictions(n int) { cacheEvictions.Add(float64(n)) }
func SetCacheEntries(n int)   { cacheEntries.Set(float64(n)) }

func IncStreamsActive()             { streamsActive.Inc() }
func DecStreamsActive()             { streamsActive.Dec() }
func IncStreamMessages()            { streamMessagesTotal.Inc() }
func AddStreamBytes(n int64)        { streamBytesTotal.Add(float64(n)) }
func IncStreamErrors(reason string) { streamErrorsTotal.WithLabelValues(reason).Inc() }

// knownRoutes are the fixed paths served by the API.
var knownRoutes = map[string]bool{
	"/":                        true,
	"/healthz":                 true,
	"/readyz":                  true,
	"/metrics":                 true,
	"/api/v1/elements":         true,
	"/api/v1/positions":        true,
	"/api/v1/cache/stats":      true,
	"/api/v1/stream/positions": true,
}

// normalizeRoute maps a request path to a bounded label value.
// Per-body element paths and viewer assets each collapse to one label;
// anything unknown is "other".
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	const bodyPrefix = "/api/v1/elements/"
	if len(path) > len(bodyPrefix) && path[:len(bodyPrefix)] == bodyPrefix {
		return bodyPrefix + "{body}"
	}
	const viewerPrefix = "/viz/"
	if len(path) >= len(viewerPrefix) && path[:len(viewerPrefix)] == viewerPrefix {
		return viewerPrefix
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

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
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
