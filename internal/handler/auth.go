package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gorilla/sessions"
	"github.com/rs/xid"
	"golang.org/x/oauth2"

	"github.com/sakif/integration-dashboard/internal/auth"
	"github.com/sakif/integration-dashboard/internal/model"
	"github.com/sakif/integration-dashboard/internal/service"
)

// Navigation targets of the auth flow.
const (
	SignInPath     = "/sign-in"
	GitHubLoginURL = "/auth/github/login"
	defaultLanding = "/integrations"
)

// OAuthProvider is the part of auth.GitHubProvider the handler uses.
type OAuthProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GitHubUser, *oauth2.Token, error)
}

// AuthService is the part of service.AuthService the handler uses.
type AuthService interface {
	LoginOrRegisterGitHub(ctx context.Context, ghUser *auth.GitHubUser, token *oauth2.Token) (*service.AuthResult, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// AuthHandler manages sign-in, the GitHub OAuth round trip, and logout.
//
//   - HandleSignIn          → GET  /sign-in?redirect=...
//   - HandleGitHubLogin     → GET  /auth/github/login?redirect=...
//   - HandleGitHubCallback  → GET  /auth/github/callback?code=...&state=...
//   - HandleLogout          → POST /auth/logout
//   - HandleMe              → GET  /api/me
type AuthHandler struct {
	github     OAuthProvider
	svc        AuthService
	sessions   sessions.Store
	renderer   *Renderer
	sessionTTL int // seconds
	secure     bool
	logger     *slog.Logger
}

type AuthHandlerConfig struct {
	GitHub     OAuthProvider
	Service    AuthService
	Sessions   sessions.Store
	Renderer   *Renderer
	SessionTTL int  // token cookie MaxAge in seconds
	Secure     bool // mark cookies Secure (HTTPS deployments)
	Logger     *slog.Logger
}

func NewAuthHandler(cfg AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		github:     cfg.GitHub,
		svc:        cfg.Service,
		sessions:   cfg.Sessions,
		renderer:   cfg.Renderer,
		sessionTTL: cfg.SessionTTL,
		secure:     cfg.Secure,
		logger:     cfg.Logger,
	}
}

// HandleSignIn renders the sign-in page. The login link carries the redirect
// target through to the OAuth flow. Behind OptionalAuth: a signed-in user goes
// straight to the target.
func (h *AuthHandler) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	redirect := safeRedirect(r.URL.Query().Get("redirect"), defaultLanding)

	if _, ok := auth.UserIDFromContext(r.Context()); ok {
		http.Redirect(w, r, redirect, http.StatusSeeOther)
		return
	}

	h.renderer.render(w, http.StatusOK, pageSignIn, pageData{
		Title:    "Sign in",
		Flashes:  popFlashes(w, r, h.sessions),
		LoginURL: GitHubLoginURL + "?" + url.Values{"redirect": {redirect}}.Encode(),
	})
}

// HandleGitHubLogin sends the browser to GitHub.
//
// CSRF PROTECTION VIA STATE:
// A random state goes into the signed oauth session and into the GitHub URL.
// The callback accepts only a state matching the session. The redirect target
// rides along in the same session.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	session, _ := h.sessions.Get(r, oauthSessionName) // a bad cookie yields a fresh session
	session.Values[oauthStateKey] = state
	session.Values[oauthRedirectKey] = safeRedirect(r.URL.Query().Get("redirect"), defaultLanding)
	if err := session.Save(r, w); err != nil {
		h.logger.Error("auth login: saving oauth session", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth flow:
//
//  1. check the state against the oauth session (single use)
//  2. exchange the code for a token and the GitHub profile
//  3. sign the user in and link the account (service)
//  4. set the JWT cookie and return to the saved redirect target
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	session, _ := h.sessions.Get(r, oauthSessionName)
	expected, _ := session.Values[oauthStateKey].(string)
	redirect, _ := session.Values[oauthRedirectKey].(string)

	// Single use: drop the session whatever happens next.
	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		h.logger.Warn("auth callback: clearing oauth session", slog.String("error", err.Error()))
	}

	q := r.URL.Query()
	if expected == "" || q.Get("state") != expected {
		h.logger.Warn("auth callback: state mismatch", slog.String("got", q.Get("state")))
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	if errParam := q.Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		addFlash(w, r, h.sessions, "GitHub authorization was cancelled.")
		http.Redirect(w, r, SignInPath+"?"+url.Values{"redirect": {safeRedirect(redirect, defaultLanding)}}.Encode(), http.StatusSeeOther)
		return
	}

	code := q.Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	ghUser, token, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusBadGateway)
		return
	}

	result, err := h.svc.LoginOrRegisterGitHub(r.Context(), ghUser, token)
	if err != nil {
		h.logger.Error("auth callback: sign-in failed",
			slog.Int64("githubID", ghUser.ID),
			slog.String("error", err.Error()),
		)
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookie,
		Value:    result.Token,
		Path:     "/",
		MaxAge:   h.sessionTTL,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, safeRedirect(redirect, defaultLanding), http.StatusSeeOther)
}

// HandleLogout deletes the JWT cookie. The token itself stays valid until it
// expires, but the browser no longer sends it.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	clearTokenCookie(w, h.secure)

	http.Redirect(w, r, SignInPath, http.StatusSeeOther)
}

// HandleMe returns the signed-in user. Behind RequireAuth.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "valid authentication required", Code: "unauthorized"})
		return
	}

	user, err := h.svc.GetUserByID(r.Context(), userID)
	if err != nil {
		h.logger.Error("HandleMe: user lookup failed", slog.String("userID", userID), slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}
