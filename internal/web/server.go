// Package web provides the HTTP API of the adhesion service.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/guaruja-saneamento/adesoes/internal/config"
	"github.com/guaruja-saneamento/adesoes/internal/core"
	"github.com/guaruja-saneamento/adesoes/internal/photos"
	"github.com/guaruja-saneamento/adesoes/internal/presence"
	mw "github.com/guaruja-saneamento/adesoes/internal/web/middleware"
)

// Service is the business API used by the handlers. *core.Service
// implements it.
type Service interface {
	Import(ctx context.Context, req core.ImportRequest) (*core.ImportReport, error)
	PreviewImport(ctx context.Context, req core.ImportRequest) (*core.ImportPreview, error)

	SearchAdhesions(ctx context.Context, f core.AdhesionFilter) (*core.AdhesionPage, error)
	UpdateAdhesion(ctx context.Context, matricula string, fields map[string]any) (core.Row, error)
	DeleteAdhesion(ctx context.Context, matricula string) error
	GetPhotos(ctx context.Context, matricula string) (*string, error)

	SearchConferences(ctx context.Context, f core.ConferenceFilter) ([]core.Row, error)
	UpsertConference(ctx context.Context, matricula string, in core.ConferenceInput) (core.Row, error)

	ListUsers(ctx context.Context) ([]core.User, error)
	CreateUser(ctx context.Context, in core.NewUser) (*core.User, error)
	UpdateUser(ctx context.Context, id int64, up core.UserUpdate) (*core.User, error)
	DeleteUser(ctx context.Context, id int64) error

	AuditEntries(ctx context.Context, opts core.AuditLogOptions) ([]core.AuditEntry, error)
	Ping(ctx context.Context) error
}

// Authenticator logs users in and out and verifies their tokens.
// *auth.Authenticator implements it.
type Authenticator interface {
	Login(ctx context.Context, login, password string) (string, *core.User, error)
	Verify(ctx context.Context, token string) (core.Caller, error)
	Logout(ctx context.Context, c core.Caller) error
	HashPassword(password string) (string, error)
}

// Deps are the collaborators of a Server. Photos may be nil, in which
// case photo references are returned as stored.
type Deps struct {
	Service  Service
	Auth     Authenticator
	Presence *presence.Registry
	Photos   *photos.Resolver
}

// Server is the HTTP server of the adhesion API.
type Server struct {
	cfg      *config.Config
	service  Service
	auth     Authenticator
	presence *presence.Registry
	photos   *photos.Resolver
	router   *chi.Mux
	server   *http.Server
}

// NewServer creates a Server with its middleware and routes installed.
func NewServer(cfg *config.Config, deps Deps) *Server {
	if deps.Presence == nil {
		deps.Presence = presence.NewRegistry()
	}
	s := &Server{
		cfg:      cfg,
		service:  deps.Service,
		auth:     deps.Auth,
		presence: deps.Presence,
		photos:   deps.Photos,
		router:   chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	s.router.Use(securityHeaders)

	if s.cfg.Rate.Enabled {
		s.router.Use(mw.NewRateLimiter(s.cfg.Rate.RequestsPerMinute).Middleware)
	}
}

func (s *Server) setupRoutes() {
	r := s.router

	r.Get("/healthz", s.handleHealth)

	r.Group(func(r chi.Router) {
		if s.cfg.Rate.Enabled {
			r.Use(mw.NewRateLimiter(s.cfg.Rate.LoginLimit).Middleware)
		}
		r.Post("/login", s.handleLogin)
	})

	// The websocket authenticates inside the connection.
	r.Get("/ws", s.handlePresence)

	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(s.auth))

		// Imports run under the import timeout, not the request timeout.
		r.Post("/api/upload", s.handleUpload)
		r.Post("/api/upload/preview", s.handlePreview)
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(core.RoleAdmin, core.RoleBackoffice))
			r.Post("/api/upload-nova-ligacao-csv", s.handleLegacyUpload)
			r.Post("/api/upload-nova-ligacao-csv/preview", s.handleLegacyPreview)
		})

		r.Group(func(r chi.Router) {
			if s.cfg.Server.RequestTimeout > 0 {
				r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
			}

			r.Post("/logout", s.handleLogout)

			r.Route("/users", func(r chi.Router) {
				r.Use(mw.RequireRole(core.RoleAdmin))
				r.Get("/", s.handleListUsers)
				r.Post("/", s.handleCreateUser)
				r.Put("/{id}", s.handleUpdateUser)
				r.Delete("/{id}", s.handleDeleteUser)
			})

			r.Get("/api/adhesions", s.handleSearchAdhesions)
			r.Put("/api/adhesions/{matricula}", s.handleUpdateAdhesion)
			r.With(mw.RequireRole(core.RoleAdmin)).Delete("/api/adhesions/{matricula}", s.handleDeleteAdhesion)

			r.Get("/api/conferencia", s.handleSearchConferences)
			r.Put("/api/conferencia/{matricula}", s.handleSaveConference)

			r.Get("/api/fotos/{matricula}", s.handlePhotos)
			r.Get("/api/nova_ligacao/{matricula}", s.handleNewConnection)

			r.With(mw.RequireRole(core.RoleAdmin)).Get("/api/audit", s.handleAuditLog)
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	sc := s.cfg.Server
	s.server = &http.Server{
		Addr:         sc.Addr(),
		Handler:      s.router,
		ReadTimeout:  sc.ReadTimeout,
		WriteTimeout: sc.WriteTimeout, // 0 keeps websockets and long imports open
		IdleTimeout:  sc.IdleTimeout,
	}

	slog.Info("starting server", "addr", sc.Addr())
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.service.Ping(ctx); err != nil {
		slog.Warn("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// message is the body of responses that carry only a message.
type message struct {
	Message string `json:"message"`
}

// writeJSON encodes v as JSON with the given status.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
