// Package server wires the dependency graph and the routes, and runs the
// HTTP server with graceful shutdown.
//
// DEPENDENCY INJECTION FLOW:
// cmd/server loads config.Config and hands it to New, which builds
//
//	sqlite.DB → AuthService, GitHubService, identity.Resolver
//	         → AuthHandler, GitHubAPIHandler, DashboardHandler
//
// This is the composition root: nothing else in the tree constructs
// concrete dependencies.
package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/integration-dashboard/internal/auth"
	"github.com/sakif/integration-dashboard/internal/config"
	"github.com/sakif/integration-dashboard/internal/handler"
	"github.com/sakif/integration-dashboard/internal/identity"
	"github.com/sakif/integration-dashboard/internal/middleware"
	sqliteRepo "github.com/sakif/integration-dashboard/internal/repository/sqlite"
	"github.com/sakif/integration-dashboard/internal/service"
	"github.com/sakif/integration-dashboard/web"
)

// backendTimeout bounds each call the dashboard page makes to /api/github.
// A sync walks every repository page, so it is generous.
const backendTimeout = 45 * time.Second

// Server owns the router and the database. The database is closed when
// Start returns.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New opens the database, builds every dependency and registers the routes.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// Handler exposes the router, for tests and for embedding in another server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database. Start calls it on shutdown.
func (s *Server) Close() error {
	return s.db.Close()
}

// setupRoutes configures middleware and routes.
//
// ROUTE STRUCTURE:
//
//	GET  /                                 → 303 /integrations
//	GET  /static/*                         → CSS, JS
//	GET  /sign-in                          → sign-in page
//	GET  /auth/github/login                → 307 GitHub authorize
//	GET  /auth/github/callback             → OAuth callback
//	POST /auth/logout                      → clear session
//	GET  /integrations                     → integrations list      (session)
//	GET  /integrations/github              → dashboard page         (session)
//	POST /integrations/github/sync         → sync, then page        (session)
//	POST /integrations/github/disconnect   → disconnect, redirect   (session)
//	GET  /api/me                           → current user           (JWT, JSON)
//	GET  /api/github/data                  → dashboard payload      (JWT, JSON)
//	POST /api/github/sync                  → {chunks}               (JWT, JSON)
//	POST /api/github/disconnect            → 204                    (JWT, JSON)
//
// MIDDLEWARE ORDER MATTERS: RequestID before Logger so the log line carries
// the ID; Recoverer last so it sits closest to the handlers.
func (s *Server) setupRoutes() error {
	cfg := s.config

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	// === Static Files ===
	staticFS := web.Static()
	if cfg.StaticDir != "" {
		staticFS = os.DirFS(cfg.StaticDir)
	}
	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(staticFS)))

	// === Shared dependencies ===
	tokens, err := auth.NewTokenService(cfg.JWTSecret)
	if err != nil {
		return err
	}
	cipher, err := auth.NewTokenCipher(cfg.TokenEncKey)
	if err != nil {
		return err
	}

	var templates fs.FS = web.Templates()
	if cfg.TemplateDir != "" {
		templates = os.DirFS(cfg.TemplateDir)
	}
	renderer, err := handler.NewRenderer(templates, s.logger)
	if err != nil {
		return err
	}

	secure := strings.HasPrefix(cfg.GitHub.CallbackURL, "https://")
	sessionStore := handler.NewSessionStore([]byte(cfg.SessionKey), secure)

	users, accounts, chunks := s.db.Users(), s.db.Accounts(), s.db.Chunks()

	// === Services ===
	authService := service.NewAuthService(users, accounts, tokens, cipher, s.logger)
	githubService := service.NewGitHubService(
		accounts,
		chunks,
		cipher,
		service.NewClientFactory(cfg.GitHub.APIURL),
		cfg.SyncChunkSize,
		s.logger,
	)

	// === Handlers ===
	authHandler := handler.NewAuthHandler(handler.AuthHandlerConfig{
		GitHub:     auth.NewGitHubProvider(cfg.GitHub.ClientID, cfg.GitHub.ClientSecret, cfg.GitHub.CallbackURL, cfg.GitHub.APIURL),
		Service:    authService,
		Sessions:   sessionStore,
		Renderer:   renderer,
		SessionTTL: int(tokens.TTL().Seconds()),
		Secure:     secure,
		Logger:     s.logger,
	})
	apiHandler := handler.NewGitHubAPIHandler(githubService, s.logger)
	dashboardHandler := handler.NewDashboardHandler(handler.DashboardHandlerConfig{
		Identity: identity.NewResolver(users, accounts, identity.DefaultResolveTimeout, s.logger),
		Backends: handler.NewHTTPBackendFactory(cfg.BackendURL, &http.Client{Timeout: backendTimeout}),
		Renderer: renderer,
		Sessions: sessionStore,
		Secure:   secure,
		Logger:   s.logger,
	})

	// === Routes ===
	s.router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/integrations", http.StatusSeeOther)
	})

	s.router.With(auth.OptionalAuth(tokens)).Get(handler.SignInPath, authHandler.HandleSignIn)
	s.router.Route("/auth", func(r chi.Router) {
		r.Get("/github/login", authHandler.HandleGitHubLogin)
		r.Get("/github/callback", authHandler.HandleGitHubCallback)
		r.Post("/logout", authHandler.HandleLogout)
	})

	s.router.Group(func(r chi.Router) {
		r.Use(auth.RequireSession(tokens, handler.SignInPath))
		r.Get("/integrations", dashboardHandler.HandleIntegrations)
		r.Get("/integrations/github", dashboardHandler.HandlePage)
		r.Post("/integrations/github/sync", dashboardHandler.HandleSync)
		r.Post("/integrations/github/disconnect", dashboardHandler.HandleDisconnect)
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))
		r.Get("/me", authHandler.HandleMe)
		r.Get("/github/data", apiHandler.HandleData)
		r.Post("/github/sync", apiHandler.HandleSync)
		r.Post("/github/disconnect", apiHandler.HandleDisconnect)
	})

	return nil
}

// Start serves until SIGINT/SIGTERM, then shuts down gracefully:
//  1. stop accepting connections
//  2. wait up to 30s for in-flight requests
//  3. close the database
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: backendTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
			slog.String("backend", s.config.BackendURL),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
