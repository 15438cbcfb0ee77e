// Package api implements the geomagd HTTP API: point and grid field
// queries, model metadata, and operational endpoints.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/geomag/geomagd/internal/auth"
	"github.com/geomag/geomagd/internal/field"
	"github.com/geomag/geomagd/internal/health"
	"github.com/geomag/geomagd/internal/httputil"
	"github.com/geomag/geomagd/internal/igrf"
	"github.com/geomag/geomagd/internal/metrics"
)

// Deps are the server's collaborators.
type Deps struct {
	Store         *igrf.Store
	Evaluator     *field.Evaluator
	Pool          *field.WorkerPool
	GridMaxPoints int
	TrustProxy    bool
	// Refresh re-fetches the coefficient file on demand. Nil disables the
	// fetch endpoint.
	Refresh func(ctx context.Context) error
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(addr string, logger *slog.Logger, authCfg auth.Config, deps Deps) *Server {
	mux := http.NewServeMux()

	// Register routes.
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(func() bool {
		return deps.Store.Get() != nil
	}))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /api/v1/field", fieldHandler(logger, deps.Evaluator))
	mux.HandleFunc("GET /api/v1/field/geocentric", fieldGeocentricHandler(logger, deps.Evaluator))
	mux.HandleFunc("POST /api/v1/grid", gridHandler(logger, deps))
	mux.HandleFunc("GET /api/v1/model/metadata", metadataHandler(deps.Store))
	mux.HandleFunc("POST /api/v1/model/fetch", fetchHandler(logger, deps.Refresh))

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(authCfg)(handler)
	handler = loggingMiddleware(logger, deps.TrustProxy)(handler)
	handler = metrics.Middleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
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

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", httputil.ClientIP(r, trustProxy),
			)
		})
	}
}
