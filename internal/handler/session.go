package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/sessions"

	"github.com/sakif/integration-dashboard/internal/auth"
)

// Cookie sessions (gorilla/sessions, signed with SESSION_KEY). They hold
// short-lived browser state only; the signed-in identity is the JWT cookie.
const (
	oauthSessionName = "oauth"
	flashSessionName = "flash"

	oauthStateKey    = "state"
	oauthRedirectKey = "redirect"
)

// NewSessionStore returns the cookie store used for OAuth state and flashes.
func NewSessionStore(key []byte, secure bool) *sessions.CookieStore {
	store := sessions.NewCookieStore(key)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// addFlash queues msg for the next page render. A failure only loses the message.
func addFlash(w http.ResponseWriter, r *http.Request, store sessions.Store, msg string) {
	session, err := store.Get(r, flashSessionName)
	if err != nil && session == nil {
		slog.Warn("flash session unavailable", slog.String("error", err.Error()))
		return
	}
	session.AddFlash(msg)
	if err := session.Save(r, w); err != nil {
		slog.Warn("saving flash failed", slog.String("error", err.Error()))
	}
}

// popFlashes returns and clears the queued messages.
func popFlashes(w http.ResponseWriter, r *http.Request, store sessions.Store) []string {
	session, err := store.Get(r, flashSessionName)
	if err != nil && session == nil {
		return nil
	}

	raw := session.Flashes()
	if len(raw) == 0 {
		return nil
	}
	if err := session.Save(r, w); err != nil {
		slog.Warn("clearing flashes failed", slog.String("error", err.Error()))
	}

	out := make([]string, 0, len(raw))
	for _, f := range raw {
		if s, ok := f.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// safeRedirect returns target when it is a path on this site, fallback
// otherwise. "//evil.com" and "https://evil.com" are rejected.
func safeRedirect(target, fallback string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return fallback
	}
	u, err := url.Parse(target)
	if err != nil || u.IsAbs() || u.Host != "" {
		return fallback
	}
	return target
}

// clearTokenCookie tells the browser to drop the JWT cookie.
func clearTokenCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
