package handler_test

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/require"

	"github.com/sakif/integration-dashboard/internal/auth"
	"github.com/sakif/integration-dashboard/internal/handler"
	"github.com/sakif/integration-dashboard/web"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRenderer(t *testing.T) *handler.Renderer {
	t.Helper()
	r, err := handler.NewRenderer(web.Templates(), testLogger())
	require.NoError(t, err)
	return r
}

func testSessions() *sessions.CookieStore {
	return handler.NewSessionStore([]byte(strings.Repeat("s", 32)), false)
}

// asUser returns r as seen behind RequireAuth / RequireSession for userID.
func asUser(r *http.Request, userID string) *http.Request {
	return r.WithContext(auth.ContextWithUserID(r.Context(), userID))
}

// withCookies copies the Set-Cookie values of a previous response onto r.
func withCookies(r *http.Request, resp *http.Response) *http.Request {
	for _, c := range resp.Cookies() {
		r.AddCookie(c)
	}
	return r
}

