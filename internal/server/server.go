// Package server provides the HTTP facade the wizard UI consumes. It maps
// the draft store's action set, the enrichment and submission services and
// the persistence trio onto REST endpoints. No business logic lives here.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/foliodraft/foliodraft/internal/clients/folioapi"
	"github.com/foliodraft/foliodraft/internal/draft"
	"github.com/foliodraft/foliodraft/internal/enrich"
	"github.com/foliodraft/foliodraft/internal/persist"
	"github.com/foliodraft/foliodraft/internal/submit"
)

// Config holds server configuration.
type Config struct {
	Port         int
	Log          zerolog.Logger
	Store        *draft.Store
	Enrichment   *enrich.Service
	Orchestrator *submit.Orchestrator
	Persistence  *persist.Adapter
	Backend      *folioapi.Client
	DevMode      bool
}

// Server is the HTTP server for the wizard UI.
type Server struct {
	router       *chi.Mux
	server       *http.Server
	log          zerolog.Logger
	store        *draft.Store
	enrichment   *enrich.Service
	orchestrator *submit.Orchestrator
	persistence  *persist.Adapter
	backend      *folioapi.Client
	system       *SystemHandlers
}

// New creates a new HTTP server.
func New(cfg Config) *Server {
	s := &Server{
		router:       chi.NewRouter(),
		log:          cfg.Log.With().Str("component", "server").Logger(),
		store:        cfg.Store,
		enrichment:   cfg.Enrichment,
		orchestrator: cfg.Orchestrator,
		persistence:  cfg.Persistence,
		backend:      cfg.Backend,
		system:       NewSystemHandlers(cfg.Log),
	}

	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	s.setupRoutes()

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: s.router,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Get("/api/health", s.system.HandleHealth)

	s.router.Route("/api/draft", func(r chi.Router) {
		r.Get("/", s.handleGetState)
		r.Get("/ready-counts", s.handleReadyCounts)

		r.Post("/items", s.handleAddItem)
		r.Patch("/items/{id}", s.handleUpdateItem)
		r.Delete("/items/{id}", s.handleDeleteItem)
		r.Post("/items/delete", s.handleDeleteItems)
		r.Post("/items/{id}/duplicate", s.handleDuplicateItem)
		r.Post("/items/{id}/select", s.handleToggleSelect)
		r.Post("/items/{id}/apply-result", s.handleApplyResult)

		r.Post("/select-all", s.handleSelectAll)
		r.Post("/clear-selection", s.handleClearSelection)
		r.Post("/clear", s.handleClearAll)
		r.Post("/view", s.handleSetView)

		r.Post("/search", s.handleSearch)
		r.Get("/search/{id}", s.handleGetSearchResults)
		r.Post("/hydrate", s.handleHydrate)

		r.Post("/submit", s.handleSubmit)
		r.Post("/retry", s.handleRetry)

		r.Get("/saved", s.handleCheckForDraft)
		r.Post("/restore", s.handleRestoreDraft)
		r.Post("/dismiss", s.handleDismissDraft)
		r.Delete("/saved", s.handleClearDraft)
	})

	s.router.Get("/api/accounts", s.handleListAccounts)
	s.router.Post("/api/accounts", s.handleCreateAccount)
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP server listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
