// Package api serves element sets and generated positions over HTTP.
package api

import (
	"context"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"github.com/dylan7474/planetaryLogger/internal/auth"
	"github.com/dylan7474/planetaryLogger/internal/cache"
	"github.com/dylan7474/planetaryLogger/internal/elements"
	"github.com/dylan7474/planetaryLogger/internal/health"
	"github.com/dylan7474/planetaryLogger/internal/httputil"
	"github.com/dylan7474/planetaryLogger/internal/metrics"
	"github.com/dylan7474/planetaryLogger/internal/stream"
)

// Config holds API server settings.
type Config struct {
	Addr       string
	TrustProxy bool    // honour X-Forwarded-For / X-Real-IP
	Rate       float64 // requests per second per client IP
	Burst      int
	MaxDays    int // largest range served by /api/v1/positions
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	limiter    *httputil.RateLimiter
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server. A nil streams handler leaves
// the SSE endpoint unregistered, and a nil viewer leaves /viz/ unregistered.
func NewServer(cfg Config, logger *slog.Logger, authCfg auth.Config, store *elements.Store, rows *cache.RowCache, streams *stream.Handler, viewer fs.FS) *Server {
	if cfg.MaxDays < 1 {
		cfg.MaxDays = 3660
	}
	if cfg.Rate <= 0 {
		cfg.Rate = 10
	}
	if cfg.Burst < 1 {
		cfg.Burst = 20
	}
	limiter := httputil.NewRateLimiter(cfg.Rate, cfg.Burst, 10*time.Minute)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", indexHandler)
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(store))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /api/v1/elements", elementsHandler(store))
	mux.HandleFunc("GET /api/v1/elements/{body}", bodyHandler(store))
	mux.HandleFunc("GET /api/v1/positions", positionsHandler(logger, rows, cfg.MaxDays))
	mux.HandleFunc("GET /api/v1/cache/stats", cacheStatsHandler(rows))
	if streams != nil {
		mux.HandleFunc("GET /api/v1/stream/positions", streams.HandlePositions)
	}
	if viewer != nil {
		mux.Handle("GET /viz/", http.StripPrefix("/viz", http.FileServerFS(viewer)))
	}

	// Build middleware chain: metrics -> logging -> auth -> rate limit -> mux.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(limiter, cfg.TrustProxy)(handler)
	handler = auth.Middleware(authCfg)(handler)
	handler = loggingMiddleware(logger, cfg.TrustProxy)(handler)
	handler = metrics.Middleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		limiter: limiter,
		logger:  logger,
	}
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Handler returns the full middleware chain.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// SweepLimiter drops idle rate limit buckets every interval until ctx is done.
func (s *Server) SweepLimiter(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			left := s.limiter.Sweep()
			s.logger.Debug("rate limiter sweep", "clients", left)
		}
	}
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func loggingMiddleware(logger *slog.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_ip", httputil.ClientIP(r, trustProxy),
			)
		})
	}
}

// rateLimitMiddleware rejects clients exceeding their request budget.
// Probe and metrics paths are never limited.
func rateLimitMiddleware(limiter *httputil.RateLimiter, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if probePath(r.URL.Path) || r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}
			if !limiter.Allow(httputil.ClientIP(r, trustProxy)) {
				w.Header().Set("Retry-After", "1")
				writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
