// Package server exposes churn predictions over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/churn-cli/internal/artifact"
	"github.com/sells-group/churn-cli/internal/churn"
	"github.com/sells-group/churn-cli/internal/config"
	"github.com/sells-group/churn-cli/internal/store"
)

// maxBodyBytes caps a /predict request body.
const maxBodyBytes = 64 << 10

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 10 * time.Second

// Server routes HTTP requests to the prediction service.
type Server struct {
	cfg     config.ServerConfig
	art     *artifact.Artifact
	svc     churn.Service
	store   store.Store
	metrics *Metrics
	router  *chi.Mux
}

// Option configures a Server.
type Option func(*Server)

// WithStore enables the prediction audit log and the history endpoints.
func WithStore(st store.Store) Option {
	return func(s *Server) { s.store = st }
}

// WithMetrics serves m at /metrics and records request counts into it.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// New builds a Server for art, scoring through svc.
func New(cfg config.ServerConfig, art *artifact.Artifact, svc churn.Service, opts ...Option) *Server {
	s := &Server{cfg: cfg, art: art, svc: svc}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(s.metrics.instrument)
	}
	if s.cfg.TimeoutSecs > 0 {
		r.Use(middleware.Timeout(time.Duration(s.cfg.TimeoutSecs) * time.Second))
	}
	if len(s.cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader},
			ExposedHeaders: []string{predictionIDHeader},
			MaxAge:         300,
		}))
	}
	if s.cfg.RateLimit > 0 {
		r.Use(rateLimit(s.cfg.RateLimit, s.cfg.RateBurst))
	}

	r.Get("/health", s.handleHealth)
	r.Post("/predict", s.handlePredict)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/predict", s.handlePredict)
		r.Get("/defaults", s.handleDefaults)
		r.Get("/form", s.handleForm)
		r.Get("/model", s.handleModel)
		r.Get("/predictions", s.handleListPredictions)
		r.Get("/predictions/{id}", s.handleGetPrediction)
	})

	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on port until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		zap.L().Info("server: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("server: shutdown", zap.Error(err))
		}
	}()

	zap.L().Info("server: listening",
		zap.Int("port", port),
		zap.String("model", s.art.Name()),
		zap.Bool("history", s.store != nil),
	)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server: listen")
	}
	<-done
	return nil
}
