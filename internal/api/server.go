// Package api serves the geometry engine over HTTP/JSON.
package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/GRID-datagroup/GRID-Data-tools/internal/auth"
	"github.com/GRID-datagroup/GRID-Data-tools/internal/geometry"
	"github.com/GRID-datagroup/GRID-Data-tools/internal/gtistore"
	"github.com/GRID-datagroup/GRID-Data-tools/internal/health"
	"github.com/GRID-datagroup/GRID-Data-tools/internal/metrics"
	"github.com/GRID-datagroup/GRID-Data-tools/internal/stream"
)

// DefaultMaxSamples caps the number of evaluation times per request.
const DefaultMaxSamples = 20000

// Config configures the HTTP server.
type Config struct {
	Addr       string
	Auth       auth.Config
	MaxSamples int // per-request sample budget, DefaultMaxSamples when <= 0
	Workers    int // pointing worker pool size, service default when <= 0
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server. archive and streams may be
// nil, in which case their routes are not registered.
func NewServer(cfg Config, logger *slog.Logger, store *geometry.Store, archive *gtistore.Store, streams *stream.Handler) *Server {
	if cfg.MaxSamples <= 0 {
		cfg.MaxSamples = DefaultMaxSamples
	}
	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           NewHandler(cfg, logger, store, archive, streams),
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// NewHandler builds the routed handler with its middleware chain:
// metrics -> logging -> auth -> mux.
func NewHandler(cfg Config, logger *slog.Logger, store *geometry.Store, archive *gtistore.Store, streams *stream.Handler) http.Handler {
	if cfg.MaxSamples <= 0 {
		cfg.MaxSamples = DefaultMaxSamples
	}
	h := &handlers{
		store:      store,
		archive:    archive,
		maxSamples: cfg.MaxSamples,
		workers:    cfg.Workers,
		logger:     logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(store.Ready))
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/v1/dataset", h.dataset)
	mux.HandleFunc("GET /api/v1/pointing", h.pointing)
	mux.HandleFunc("GET /api/v1/geocenter", h.geocenter)
	mux.HandleFunc("GET /api/v1/earth-radius", h.earthRadius)
	mux.HandleFunc("GET /api/v1/track", h.track)
	mux.HandleFunc("GET /api/v1/gti/sun", h.gtiSun)
	mux.HandleFunc("GET /api/v1/gti/saa", h.gtiSAA)
	mux.HandleFunc("GET /api/v1/gti/good", h.gtiGood)
	mux.HandleFunc("GET /api/v1/passes", h.passages)
	mux.HandleFunc("GET /api/v1/hia", h.hiaLookup)
	if archive != nil {
		mux.HandleFunc("POST /api/v1/runs", h.createRun)
		mux.HandleFunc("GET /api/v1/runs", h.listRuns)
		mux.HandleFunc("GET /api/v1/runs/{run_id}", h.getRun)
	}
	if streams != nil {
		mux.HandleFunc("GET /api/v1/stream/track", streams.HandleTrack)
	}

	var handler http.Handler = mux
	handler = auth.Middleware(cfg.Auth)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = metrics.Middleware(handler)
	return handler
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

// Flush keeps SSE working through the recorder.
func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
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
				"remote_ip", r.RemoteAddr,
			)
		})
	}
}
