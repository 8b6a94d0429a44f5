package api

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/quayside-labs/quayscrape/internal/config"
	"github.com/quayside-labs/quayscrape/internal/observability"
	"github.com/quayside-labs/quayscrape/internal/storage"
)

// Server hosts the JSON API around the scrape orchestrator.
type Server struct {
	cfg        config.APIConfig
	logger     *zap.Logger
	handlers   *Handlers
	httpServer *http.Server
}

// NewServer wires the API server from its dependencies.
func NewServer(cfg config.APIConfig, logger *zap.Logger, runner Runner, store *storage.JSONStore) *Server {
	s := &Server{
		cfg:      cfg,
		logger:   logger.Named("api"),
		handlers: NewHandlers(logger, runner, store),
	}
	s.httpServer = &http.Server{
		Addr:    cfg.Addr,
		Handler: s.router(),
	}
	return s
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Scrape runs hold the request open while the browser works, so the
	// per-request timeout must outlast a full challenge poll window.
	r.Use(middleware.Timeout(10 * time.Minute))
	r.Use(s.requestLogger)

	s.handlers.RegisterRoutes(r)
	return r
}

// requestLogger records each request through the structured logger.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("Request handled",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// Start runs the HTTP listener and blocks until a shutdown signal or a
// listener error.
func (s *Server) Start() error {
	defer observability.Sync()

	s.logger.Info("API server starting", zap.String("address", s.cfg.Addr))

	idleConnsClosed := make(chan struct{})
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		s.logger.Info("Received shutdown signal, shutting down gracefully...")

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
		close(idleConnsClosed)
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("HTTP server ListenAndServe error", zap.Error(err))
		return err
	}

	<-idleConnsClosed
	s.logger.Info("API server stopped.")
	return nil
}
