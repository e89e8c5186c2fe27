package dashboard

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBackendServer(t *testing.T, handler http.HandlerFunc) *HTTPBackend {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPBackend(srv.URL+"/", srv.Client(), &http.Cookie{Name: "token", Value: "jwt-value"})
}

func TestHTTPBackend_FetchData(t *testing.T) {
	backend := newBackendServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, DataPath, r.URL.Path)

		c, err := r.Cookie("token")
		require.NoError(t, err)
		assert.Equal(t, "jwt-value", c.Value)

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"user": {"login": "octocat", "name": null, "avatar_url": "https://avatars/1", "bio": "hi", "public_repos": 8},
			"repos": [{"id": 1, "name": "widget", "full_name": "acme/widget", "description": null,
			           "stargazers_count": 5, "forks_count": 1, "updated_at": "2024-05-01T10:00:00Z",
			           "html_url": "https://github.com/acme/widget"}],
			"notifications": [{"id": "n1", "repository": {"full_name": "acme/widget"},
			                   "subject": {"title": "Bug", "url": "https://api.github.com/repos/acme/widget/issues/3"},
			                   "reason": "mention", "updated_at": "2024-05-02T10:00:00Z"}]
		}`)
	})

	data, err := backend.FetchData(context.Background())
	require.NoError(t, err)

	require.NotNil(t, data.User)
	assert.Equal(t, "octocat", data.User.Login)
	assert.Nil(t, data.User.Name)
	require.NotNil(t, data.User.Bio)
	assert.Equal(t, "hi", *data.User.Bio)
	require.Len(t, data.Repos, 1)
	assert.Equal(t, "acme/widget", data.Repos[0].FullName)
	assert.Nil(t, data.Repos[0].Description)
	require.Len(t, data.Notifications, 1)
	assert.Equal(t, "https://api.github.com/repos/acme/widget/issues/3", *data.Notifications[0].Subject.URL)
}

func TestHTTPBackend_FetchData_RateLimited(t *testing.T) {
	backend := newBackendServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error": "Rate limited", "details": {"retryAfter": 30}}`)
	})

	_, err := backend.FetchData(context.Background())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
	assert.Equal(t, "Rate limited", apiErr.Message)
	assert.Equal(t, map[string]any{"retryAfter": float64(30)}, apiErr.Details)
}

func TestHTTPBackend_Sync(t *testing.T) {
	backend := newBackendServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, SyncPath, r.URL.Path)
		io.WriteString(w, `{"chunks": 42}`)
	})

	res, err := backend.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, res.Chunks)
}

func TestHTTPBackend_Disconnect(t *testing.T) {
	backend := newBackendServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, DisconnectPath, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, backend.Disconnect(context.Background()))
}

func TestHTTPBackend_UndecodableSuccessBody(t *testing.T) {
	backend := newBackendServer(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html>proxy page</html>`)
	})

	_, err := backend.Sync(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
	assert.Equal(t, UnknownErrorMessage, errorState(err).Message)
}

func TestHTTPBackend_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	backend := NewHTTPBackend(url, nil)
	_, err := backend.FetchData(context.Background())

	require.Error(t, err)
	assert.Equal(t, UnknownErrorMessage, errorState(err).Message)
}

func TestParseAPIError(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantMessage string
		wantDetails any
	}{
		{
			name:        "details member",
			body:        `{"error": "Rate limited", "details": {"retryAfter": 30}}`,
			wantMessage: "Rate limited",
			wantDetails: map[string]any{"retryAfter": float64(30)},
		},
		{
			name:        "sibling members become details",
			body:        `{"error": "Forbidden", "scope": "repo"}`,
			wantMessage: "Forbidden",
			wantDetails: map[string]any{"scope": "repo"},
		},
		{
			name:        "error only",
			body:        `{"error": "Not connected"}`,
			wantMessage: "Not connected",
		},
		{
			name:        "missing error falls back",
			body:        `{"code": "internal"}`,
			wantMessage: "fallback",
			wantDetails: map[string]any{"code": "internal"},
		},
		{
			name:        "not json",
			body:        `Bad Gateway`,
			wantMessage: "fallback",
		},
		{
			name:        "json array",
			body:        `[1, 2]`,
			wantMessage: "fallback",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseAPIError(http.StatusBadRequest, []byte(tt.body), "fallback")

			assert.Equal(t, http.StatusBadRequest, got.Status)
			assert.Equal(t, tt.wantMessage, got.Message)
			assert.Equal(t, tt.wantDetails, got.Details)
		})
	}
}
