// Package api exposes the pass geometry and footprint engines over HTTP.
package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Danselem/dara-opsc/internal/auth"
	"github.com/Danselem/dara-opsc/internal/footprint"
	"github.com/Danselem/dara-opsc/internal/geo"
	"github.com/Danselem/dara-opsc/internal/health"
	"github.com/Danselem/dara-opsc/internal/httputil"
	"github.com/Danselem/dara-opsc/internal/metrics"
	"github.com/Danselem/dara-opsc/internal/passes"
)

// Options configures the server.
type Options struct {
	Addr         string
	MaxBodyBytes int64
	TrustProxy   bool
	Auth         auth.Config
	Observer     geo.Observer // used when a pass request has none
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	opts       Options
	passes     *passes.Engine
	footprint  *footprint.Engine
}

// NewServer creates a configured HTTP server.
func NewServer(opts Options, passEngine *passes.Engine, footprintEngine *footprint.Engine, ready *health.Readiness, logger *slog.Logger) *Server {
	s := &Server{
		logger:    logger,
		opts:      opts,
		passes:    passEngine,
		footprint: footprintEngine,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", ready.Readyz)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("POST /api/v1/pass", s.handlePass)
	mux.HandleFunc("POST /api/v1/footprint", s.handleFootprint)

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(opts.Auth)(handler)
	handler = loggingMiddleware(logger, opts.TrustProxy)(handler)
	handler = metrics.Middleware(handler)

	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Handler returns the full middleware chain, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
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
