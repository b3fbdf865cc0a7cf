// Package devserver is a self-contained implementation of the mail service
// REST contract backed by SQLite. It lets the client run and be tested end
// to end without a production deployment.
package devserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/wesm/inboxctl/internal/config"
	"github.com/wesm/inboxctl/internal/store"
)

// Server serves the mail REST API.
type Server struct {
	store       *store.Store
	apiKey      string
	addr        string
	logger      *slog.Logger
	router      chi.Router
	server      *http.Server
	rateLimiter *RateLimiter
	now         func() time.Time
}

// NewServer creates a server over st configured from cfg.DevServer.
func NewServer(cfg *config.Config, st *store.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	qps := cfg.DevServer.RateQPS
	if qps <= 0 {
		qps = 50
	}
	s := &Server{
		store:       st,
		apiKey:      cfg.DevServer.APIKey,
		addr:        cfg.DevServerAddr(),
		logger:      logger,
		rateLimiter: NewRateLimiter(float64(qps), qps*2, 10*time.Minute),
		now:         func() time.Time { return time.Now().UTC() },
	}
	s.router = s.setupRouter()
	return s
}

// setupRouter configures the chi router with all routes and middleware.
func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(s.loggerMiddleware)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(RateLimitMiddleware(s.rateLimiter))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Get("/stats", s.handleStats)

		r.Route("/mail", func(r chi.Router) {
			r.Get("/folder/{email}/{folder}", s.handleListFolder)
			r.Get("/sorted/{email}", s.handleListSorted)
			r.Post("/search/{scope}", s.handleSearch)
			r.Post("/filter/{userID}", s.handleFilter)
			r.Post("/send-with-attachments", s.handleSend)
			r.Post("/draft", s.handleCreateDraft)
			r.Put("/draft/{id}", s.handleUpdateDraft)
			r.Get("/attachments/id/{id}", s.handleAttachment)

			r.Delete("/{id}", s.handleDelete)
			r.Delete("/{id}/permanent", s.handlePermanentDelete)
			r.Put("/{id}/read", s.handleSetRead(true))
			r.Put("/{id}/unread", s.handleSetRead(false))
			r.Post("/{id}/move", s.handleMove)
		})

		r.Get("/folders/{email}", s.handleListFolders)
		r.Post("/folders/{email}", s.handleCreateFolder)
		r.Put("/folders/{email}/{name}", s.handleRenameFolder)
		r.Delete("/folders/{email}/{name}", s.handleDeleteFolder)

		r.Get("/contacts", s.handleListContacts)
		r.Post("/contacts", s.handleAddContact)
		r.Put("/contacts/{id}", s.handleEditContact)
		r.Delete("/contacts/{id}", s.handleDeleteContact)
	})

	return r
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	if s.apiKey == "" {
		s.logger.Warn("dev server running without authentication, set [devserver] api_key in config.toml")
	}

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info("starting dev server", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info("shutting down dev server")
	return s.server.Shutdown(ctx)
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
