package server

import (
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/integration-dashboard/internal/auth"
	"github.com/sakif/integration-dashboard/internal/config"
	"github.com/sakif/integration-dashboard/internal/model"
)

const testJWTSecret = "test-secret-at-least-32-characters!!"

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := config.Default()
	cfg.DBPath = ":memory:"
	cfg.JWTSecret = testJWTSecret
	cfg.SessionKey = strings.Repeat("s", 32)
	cfg.TokenEncKey = base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))
	cfg.GitHub.ClientID = "client-id"
	cfg.GitHub.ClientSecret = "client-secret"
	cfg.GitHub.CallbackURL = "http://localhost:8080/auth/github/callback"
	cfg.BackendURL = "http://127.0.0.1:1"
	require.NoError(t, cfg.Validate())

	s, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// noRedirect returns the first response instead of following redirects.
func noRedirect(srv *httptest.Server) *http.Client {
	c := srv.Client()
	c.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	return c
}

func TestRoutes_Anonymous(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t).Handler())
	defer srv.Close()
	client := noRedirect(srv)

	tests := []struct {
		method       string
		path         string
		wantStatus   int
		wantLocation string
	}{
		{http.MethodGet, "/", http.StatusSeeOther, "/integrations"},
		{http.MethodGet, "/integrations/github", http.StatusSeeOther, "/sign-in?redirect=%2Fintegrations%2Fgithub"},
		{http.MethodPost, "/integrations/github/sync", http.StatusSeeOther, "/sign-in"},
		{http.MethodGet, "/api/github/data", http.StatusUnauthorized, ""},
		{http.MethodPost, "/api/github/sync", http.StatusUnauthorized, ""},
		{http.MethodGet, "/sign-in", http.StatusOK, ""},
		{http.MethodGet, "/static/css/style.css", http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, srv.URL+tt.path, nil)
			require.NoError(t, err)

			resp, err := client.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantLocation != "" {
				assert.Equal(t, tt.wantLocation, resp.Header.Get("Location"))
			}
		})
	}
}

func TestRoutes_LoginRedirectsToGitHub(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t).Handler())
	defer srv.Close()

	resp, err := noRedirect(srv).Get(srv.URL + "/auth/github/login?redirect=/integrations/github")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Location"), "https://github.com/login/oauth/authorize"))
	assert.NotEmpty(t, resp.Cookies())
}

func TestRoutes_SignedInWithoutGitHubLink(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	user := &model.User{GitHubID: 42, Login: "octocat"}
	require.NoError(t, s.db.Users().Upsert(t.Context(), user))

	tokens, err := auth.NewTokenService(testJWTSecret)
	require.NoError(t, err)
	jwt, err := tokens.Generate(user.ID)
	require.NoError(t, err)

	get := func(path string) *http.Response {
		req, err := http.NewRequest(http.MethodGet, srv.URL+path, nil)
		require.NoError(t, err)
		req.AddCookie(&http.Cookie{Name: auth.TokenCookie, Value: jwt})
		resp, err := noRedirect(srv).Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	// The JSON API reports the missing link.
	resp := get("/api/github/data")
	assert.Equal(t, http.StatusPreconditionFailed, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"error":"github account is not connected","code":"not_connected","details":{"provider":"github"}}`, string(body))

	// The page shows the connect prompt without calling the API
	// (BackendURL points nowhere, so a call would render the error panel).
	resp = get("/integrations/github")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	page, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(page), "GitHub is not connected")

	resp = get("/api/me")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// OptionalAuth on the sign-in page sends a signed-in user onwards.
	resp = get("/sign-in?redirect=/integrations/github")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/integrations/github", resp.Header.Get("Location"))
}

// A valid token for a user that no longer exists signs the browser out
// instead of leaving the pages polling in their loading state.
func TestRoutes_DeletedUserIsSignedOut(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t).Handler())
	defer srv.Close()

	tokens, err := auth.NewTokenService(testJWTSecret)
	require.NoError(t, err)
	jwt, err := tokens.Generate("deleted-user")
	require.NoError(t, err)

	for _, path := range []string{"/integrations", "/integrations/github"} {
		t.Run(path, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, srv.URL+path, nil)
			require.NoError(t, err)
			req.AddCookie(&http.Cookie{Name: auth.TokenCookie, Value: jwt})

			resp, err := noRedirect(srv).Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
			assert.Equal(t, "/sign-in", resp.Header.Get("Location"))

			var cleared bool
			for _, c := range resp.Cookies() {
				if c.Name == auth.TokenCookie && c.MaxAge < 0 {
					cleared = true
				}
			}
			assert.True(t, cleared, "token cookie not cleared")
		})
	}
}
