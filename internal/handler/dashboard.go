package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/sessions"

	"github.com/sakif/integration-dashboard/internal/auth"
	"github.com/sakif/integration-dashboard/internal/dashboard"
	"github.com/sakif/integration-dashboard/internal/identity"
	"github.com/sakif/integration-dashboard/internal/model"
)

// loadingRefreshSeconds is how often the loading view polls while the
// identity is not resolved yet.
const loadingRefreshSeconds = 2

// IdentityResolver builds the identity of the signed-in user for one request.
// identity.Resolver implements it.
type IdentityResolver interface {
	Resolve(ctx context.Context, userID string) (identity.Provider, error)
}

// BackendFactory builds the dashboard's backend client for one request.
type BackendFactory func(r *http.Request) dashboard.Backend

// NewHTTPBackendFactory returns a factory whose backends call baseURL with
// the browser's cookies, so the API sees the same session as the page.
func NewHTTPBackendFactory(baseURL string, client *http.Client) BackendFactory {
	return func(r *http.Request) dashboard.Backend {
		return dashboard.NewHTTPBackend(baseURL, client, r.Cookies()...)
	}
}

// DashboardHandler serves the integration pages behind RequireSession:
//
//	GET  /integrations                     → integrations list
//	GET  /integrations/github              → dashboard page
//	POST /integrations/github/sync         → dashboard page after a sync
//	POST /integrations/github/disconnect   → 303 /integrations, or the error view
//
// Each request mounts a fresh dashboard.Page bound to the request context.
// The busy guards outlive the page: they are per user.
type DashboardHandler struct {
	identity         IdentityResolver
	backends         BackendFactory
	renderer         *Renderer
	sessions         sessions.Store
	secure           bool
	syncGuards       *dashboard.GuardSet
	disconnectGuards *dashboard.GuardSet
	logger           *slog.Logger
}

type DashboardHandlerConfig struct {
	Identity IdentityResolver
	Backends BackendFactory
	Renderer *Renderer
	Sessions sessions.Store
	Secure   bool // must match the AuthHandler's, so a cleared cookie replaces the real one
	Logger   *slog.Logger
}

func NewDashboardHandler(cfg DashboardHandlerConfig) *DashboardHandler {
	return &DashboardHandler{
		identity:         cfg.Identity,
		backends:         cfg.Backends,
		renderer:         cfg.Renderer,
		sessions:         cfg.Sessions,
		secure:           cfg.Secure,
		syncGuards:       dashboard.NewGuardSet(),
		disconnectGuards: dashboard.NewGuardSet(),
		logger:           cfg.Logger,
	}
}

// requestIdentity resolves the caller. RequireSession guarantees a user ID.
//
// A session for a user that no longer exists is signed out: the token cookie
// is cleared, the browser goes to the sign-in page, and ok is false.
func (h *DashboardHandler) requestIdentity(w http.ResponseWriter, r *http.Request) (userID string, id identity.Provider, ok bool) {
	userID, _ = auth.UserIDFromContext(r.Context())
	id, err := h.identity.Resolve(r.Context(), userID)
	if err != nil {
		h.logger.Info("signing out unknown user", slog.String("userID", userID))
		clearTokenCookie(w, h.secure)
		http.Redirect(w, r, SignInPath, http.StatusSeeOther)
		return userID, nil, false
	}
	return userID, id, true
}

// newPage builds the request's page. release ends it and returns the user's
// guards to their sets.
func (h *DashboardHandler) newPage(r *http.Request, userID string, id identity.Provider) (page *dashboard.Page, release func()) {
	syncGuard, syncDone := h.syncGuards.For(userID)
	disconnectGuard, disconnectDone := h.disconnectGuards.For(userID)

	page = dashboard.NewPage(r.Context(), dashboard.Options{
		Identity:        id,
		Backend:         h.backends(r),
		SyncGuard:       syncGuard,
		DisconnectGuard: disconnectGuard,
		Logger:          h.logger.With(slog.String("userID", userID)),
	})
	return page, func() {
		page.Close()
		syncDone()
		disconnectDone()
	}
}

func (h *DashboardHandler) renderPage(w http.ResponseWriter, r *http.Request, id identity.Provider, page *dashboard.Page) {
	view := page.View()

	data := pageData{
		Title:   "GitHub integration",
		Login:   login(id),
		Flashes: popFlashes(w, r, h.sessions),
		View:    view,
	}
	if view.State == dashboard.StateLoading {
		data.Refresh = loadingRefreshSeconds
	}

	h.renderer.render(w, http.StatusOK, pageGitHub, data)
}

// HandleIntegrations lists the integrations and their link status.
func (h *DashboardHandler) HandleIntegrations(w http.ResponseWriter, r *http.Request) {
	_, id, ok := h.requestIdentity(w, r)
	if !ok {
		return
	}

	data := pageData{
		Title:      "Integrations",
		Login:      login(id),
		Flashes:    popFlashes(w, r, h.sessions),
		ConnectURL: dashboard.ConnectURL,
	}
	if id.IsReady() {
		data.GitHubLinked = id.CurrentUser().HasLinked(model.ProviderGitHub)
	} else {
		data.Refresh = loadingRefreshSeconds
	}

	h.renderer.render(w, http.StatusOK, pageIntegrations, data)
}

// HandlePage mounts the dashboard and renders whichever view is active.
func (h *DashboardHandler) HandlePage(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.requestIdentity(w, r)
	if !ok {
		return
	}

	page, closePage := h.newPage(r, userID, id)
	defer closePage()

	page.Mount()
	h.renderPage(w, r, id, page)
}

// HandleSync mounts the page and dispatches a sync at the same time; neither
// waits for the other. The result renders directly, toast included.
func (h *DashboardHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.requestIdentity(w, r)
	if !ok {
		return
	}

	page, closePage := h.newPage(r, userID, id)
	defer closePage()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		page.Mount()
	}()
	go func() {
		defer wg.Done()
		page.Sync()
	}()
	wg.Wait()

	h.renderPage(w, r, id, page)
}

// HandleDisconnect unlinks GitHub. Success is a full navigation to
// /integrations with a flash; failure renders the disconnect error without
// refetching the data.
func (h *DashboardHandler) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.requestIdentity(w, r)
	if !ok {
		return
	}

	page, closePage := h.newPage(r, userID, id)
	defer closePage()

	if target, ok := page.Disconnect(); ok {
		addFlash(w, r, h.sessions, "GitHub disconnected.")
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}

	h.renderPage(w, r, id, page)
}

func login(id identity.Provider) string {
	if !id.IsReady() || id.CurrentUser() == nil {
		return ""
	}
	return id.CurrentUser().User.Login
}
