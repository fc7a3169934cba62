// Package server wires the HTTP surface: router, CORS, middleware, and
// lifecycle.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cookingcrypto/backend/api/handlers"
	"github.com/cookingcrypto/backend/api/metrics"
)

// Config holds the server configuration.
type Config struct {
	Logger      *slog.Logger
	Port        string
	CORSOrigins []string

	Payout   *handlers.PayoutHandler
	Ranking  *handlers.RankingHandler
	Lottery  *handlers.LotteryHandler
	Projects *handlers.ProjectsHandler

	// Ready reports whether downstream dependencies are reachable. Used by
	// the health endpoint; nil means always healthy.
	Ready func(ctx context.Context) error
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if cfg.Port == "" {
		return fmt.Errorf("port is required")
	}
	if cfg.Payout == nil || cfg.Ranking == nil || cfg.Lottery == nil || cfg.Projects == nil {
		return fmt.Errorf("all handlers are required")
	}
	return nil
}

// Server is the backend HTTP server.
type Server struct {
	log    *slog.Logger
	cfg    Config
	router *chi.Mux
	srv    *http.Server
}

// New creates the HTTP server.
func New(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("api/server: invalid config: %w", err)
	}

	s := &Server{
		log:    cfg.Logger,
		cfg:    cfg,
		router: chi.NewRouter(),
	}
	s.setupRoutes()

	s.srv = &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute, // payout confirmation can take a while
	}
	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(metrics.Middleware)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	// Payout endpoints, rate limited per IP.
	s.router.Group(func(r chi.Router) {
		r.Use(handlers.PayoutRateLimitMiddleware)
		r.Post("/payout", s.cfg.Payout.Reward)
		r.Post("/presale-payout", s.cfg.Payout.Presale)
	})

	// Leaderboard
	s.router.Get("/ranking", s.cfg.Ranking.Get)
	s.router.Post("/ranking", s.cfg.Ranking.Upsert)
	s.router.Post("/shopping", s.cfg.Ranking.Shopping)
	s.router.Post("/refresh-balances", s.cfg.Ranking.Refresh)

	// Lottery
	s.router.Route("/api/lottery", func(r chi.Router) {
		r.Post("/add", s.cfg.Lottery.Add)
		r.Get("/count", s.cfg.Lottery.Count)
	})

	// Project board
	s.router.Route("/projects", func(r chi.Router) {
		r.Post("/add", s.cfg.Projects.Add)
		r.Get("/top", s.cfg.Projects.Top)
		r.Post("/vote", s.cfg.Projects.Vote)
	})

	// Ops
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/version", handlers.GetVersion)
	s.router.Handle("/metrics", promhttp.Handler())
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.cfg.Ready(ctx); err != nil {
			s.log.Warn("api/server: health check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("unhealthy"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Router returns the configured router, for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Run serves HTTP until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("api/server: listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("api/server: serve: %w", err)
	case <-ctx.Done():
	}

	s.log.Info("api/server: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api/server: shutdown: %w", err)
	}
	return nil
}
