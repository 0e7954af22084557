package server

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/michaelbrown/concierge/internal/config"
	"github.com/michaelbrown/concierge/internal/storage"
	"github.com/michaelbrown/concierge/internal/tools"
)

// Server is the HTTP server for the Concierge API.
type Server struct {
	cfg      *config.Config
	store    storage.Store
	registry *tools.Registry
	sessions *SessionManager
	logger   *slog.Logger
	router   chi.Router
	http     *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithProviderFactory overrides how session providers are built.
func WithProviderFactory(f ProviderFactory) Option {
	return func(s *Server) {
		s.sessions.newProvider = f
	}
}

// WithLogger sets the logger handed to session agents.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
		s.sessions.logger = l
	}
}

// New creates a new Server.
func New(cfg *config.Config, store storage.Store, registry *tools.Registry, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		store:    store,
		registry: registry,
		sessions: NewSessionManager(nil),
		logger:   slog.Default(),
		router:   chi.NewRouter(),
	}
	for _, o := range opts {
		o(s)
	}
	s.setupRoutes()
	return s
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	r := s.router

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Route("/api", func(r chi.Router) {
		r.Use(jsonContentType)

		// Sessions
		r.Get("/sessions", s.handleListSessions)
		r.Post("/sessions", s.handleCreateSession)
		r.Get("/sessions/{id}", s.handleGetSession)
		r.Delete("/sessions/{id}", s.handleDeleteSession)

		// Messages
		r.Get("/sessions/{id}/messages", s.handleGetMessages)
		r.Post("/sessions/{id}/messages", s.handleSendMessage)
		r.Get("/sessions/{id}/ws", s.handleWebSocket)

		r.Get("/tools", s.handleListTools)

		// Providers & models
		r.Get("/providers", s.handleListProviders)
		r.Get("/models/{provider}", s.handleListModels)
	})
}

// jsonContentType sets Content-Type to application/json for API routes.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// Start begins listening on the given port.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("Concierge server starting on http://localhost%s", addr)
	return s.http.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down server...")
	s.sessions.CloseAll()
	if s.http == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return s.http.Shutdown(shutdownCtx)
}
