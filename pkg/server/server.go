// Package server runs the keep-alive HTTP endpoint that hosting platforms
// probe, along with health and Prometheus metrics routes.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"snapbot/pkg/config"
	"snapbot/pkg/logger"
)

const shutdownTimeout = 5 * time.Second

// Server is the keep-alive HTTP server
type Server struct {
	srv    *http.Server
	logger logger.Logger
}

// New creates a Server listening on cfg.ListenAddr
func New(cfg config.ServerConfig, log logger.Logger) *Server {
	if log == nil {
		log = logger.GetLogger()
	}
	log = log.WithField("component", "server")

	return &Server{
		srv: &http.Server{
			Addr:         cfg.ListenAddr,
			Handler:      NewRouter(log),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 20 * time.Second,
		},
		logger: log,
	}
}

// NewRouter builds the route table
func NewRouter(log logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(requestLogger(log))
	r.Use(chimw.Recoverer)

	r.Get("/", home)
	r.Get("/healthz", health)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.srv.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", ln.Addr().String()).Info("Keep-alive server listening")
		errCh <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.logger.Info("Keep-alive server stopped")
	return nil
}

func home(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("Bot is running!"))
}

func health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func requestLogger(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.DebugWithFields("HTTP request served", map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status_code": ww.Status(),
				"duration_ms": time.Since(start).Milliseconds(),
				"remote":      r.RemoteAddr,
			})
		})
	}
}
