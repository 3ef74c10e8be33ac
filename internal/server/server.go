// Package server exposes articles, briefings and jobs over a JSON HTTP API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"meridian/internal/config"
	"meridian/internal/persistence"
)

// Deps are the components the handlers call. Jobs and Transcriptions may be
// nil, in which case their endpoints answer 503.
type Deps struct {
	Health         Pinger
	Articles       persistence.ArticleRepository
	Briefings      persistence.BriefingRepository
	Transcriptions persistence.TranscriptionRepository
	Profiles       ProfileLister
	Scraper        URLScraper
	Briefs         BriefGenerator
	Jobs           JobQueue
}

// Server represents the HTTP server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	deps       Deps
	config     config.Server
	perPage    int
	log        zerolog.Logger
}

// New creates a new HTTP server instance
func New(deps Deps, cfg config.Server, perPage int, log zerolog.Logger) *Server {
	if perPage <= 0 {
		perPage = defaultPerPage
	}

	s := &Server{
		router:  chi.NewRouter(),
		deps:    deps,
		config:  cfg,
		perPage: perPage,
		log:     log.With().Str("component", "server").Logger(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

// setupMiddleware configures middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(securityHeaders)

	if s.config.CORS.Enabled {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.config.CORS.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"Link"},
			AllowCredentials: false,
			MaxAge:           300, // Maximum value not ignored by any major browsers
		}))
	}
}

// setupRoutes configures routes for the server
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(noCache)

		r.Get("/profiles", s.handleListProfiles)
		r.Get("/stats", s.handleStats)

		r.Route("/articles", func(r chi.Router) {
			r.Get("/", s.handleListArticles)
			r.Post("/", s.handleSubmitArticle)
			r.Get("/{id}", s.handleGetArticle)
			r.Delete("/{id}", s.handleDeleteArticle)
			r.Post("/{id}/process", s.handleProcessArticle)
		})

		r.Get("/jobs/{id}", s.handleGetJob)

		r.Route("/briefings", func(r chi.Router) {
			r.Get("/", s.handleListBriefings)
			r.Get("/latest", s.handleLatestBriefing)
			r.Post("/generate", s.handleGenerateBriefing)
			r.Get("/{id}", s.handleGetBriefing)
			r.Get("/{id}/html", s.handleBriefingHTML)
		})

		r.Route("/transcriptions", func(r chi.Router) {
			r.Get("/", s.handleListTranscriptions)
			r.Get("/{id}", s.handleGetTranscription)
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().
		Str("addr", s.httpServer.Addr).
		Dur("read_timeout", s.config.ReadTimeout).
		Dur("write_timeout", s.config.WriteTimeout).
		Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed to start: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server gracefully...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.log.Info().Msg("HTTP server stopped")
	return nil
}

// Router returns the chi router instance (useful for testing)
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down within the grace period.
func (s *Server) Run(ctx context.Context, grace time.Duration) error {
	errc := make(chan error, 1)
	go func() { errc <- s.Start() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), grace)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errc
}
