// Package api provides the REST API server of the directory sync service.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/stitchflow-website/dirsync/internal/api/stages"
	v1 "github.com/stitchflow-website/dirsync/internal/api/v1"
	"github.com/stitchflow-website/dirsync/internal/service"
	pkgsync "github.com/stitchflow-website/dirsync/internal/sync"
)

// StagesPath is where the internal stage endpoint is mounted
const StagesPath = "/internal/v1/stages"

// ServerOption configures the API server
type ServerOption func(*serverConfig)

// serverConfig holds the server configuration
type serverConfig struct {
	middlewares    []func(http.Handler) http.Handler
	stageTrigger   pkgsync.Trigger
	metricsHandler http.Handler
}

// WithMiddlewares adds middleware to the server
func WithMiddlewares(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithStageEndpoint mounts the internal stage endpoint, handing accepted tasks to trigger
func WithStageEndpoint(trigger pkgsync.Trigger) ServerOption {
	return func(cfg *serverConfig) {
		cfg.stageTrigger = trigger
	}
}

// WithMetricsHandler serves handler at /metrics
func WithMetricsHandler(handler http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.metricsHandler = handler
	}
}

// NewServer returns the router: probes at the root, the public API under /v1,
// and the optional stage and scrape endpoints.
func NewServer(svc service.SyncService, opts ...ServerOption) *chi.Mux {
	cfg := &serverConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	r := chi.NewRouter()
	r.Use(cfg.middlewares...)

	r.Mount("/", v1.HealthRouter(svc))
	r.Mount("/v1", v1.Router(svc))
	if cfg.stageTrigger != nil {
		r.Mount(StagesPath, stages.Router(cfg.stageTrigger))
	}
	if cfg.metricsHandler != nil {
		r.Handle("/metrics", cfg.metricsHandler)
	}
	return r
}

// LoggingMiddleware logs one line per request. Server errors are logged at
// warn level and everything else at debug level.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		level := slog.LevelDebug
		if ww.Status() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		slog.Log(r.Context(), level, "HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
