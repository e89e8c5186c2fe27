package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/sakif/integration-dashboard/internal/model"
)

// Backend endpoints the page talks to.
const (
	DataPath       = "/api/github/data"
	SyncPath       = "/api/github/sync"
	DisconnectPath = "/api/github/disconnect"
)

// Messages used when a failed response carries no "error" field.
const (
	fallbackFetchMessage      = "Failed to fetch GitHub data"
	fallbackSyncMessage       = "Failed to sync GitHub data"
	fallbackDisconnectMessage = "Failed to disconnect GitHub"
)

// Backend is the page's view of the three /api/github endpoints.
type Backend interface {
	FetchData(ctx context.Context) (*model.GitHubData, error)
	Sync(ctx context.Context) (*model.SyncResult, error)
	Disconnect(ctx context.Context) error
}

// APIError is a non-2xx answer from the backend, parsed from a
// `{"error": "...", ...details}` body.
type APIError struct {
	Status  int
	Message string
	// Details is the "details" member when present, otherwise every other
	// top-level member besides "error". Nil when there is nothing else.
	Details any
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

// HTTPBackend calls the endpoints over HTTP on behalf of one user, replaying
// that user's cookies so the backend sees the same session.
type HTTPBackend struct {
	baseURL string
	client  *http.Client
	cookies []*http.Cookie
}

var _ Backend = (*HTTPBackend)(nil)

func NewHTTPBackend(baseURL string, client *http.Client, cookies ...*http.Cookie) *HTTPBackend {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPBackend{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
		cookies: cookies,
	}
}

func (b *HTTPBackend) FetchData(ctx context.Context) (*model.GitHubData, error) {
	var data model.GitHubData
	if err := b.do(ctx, http.MethodGet, DataPath, fallbackFetchMessage, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func (b *HTTPBackend) Sync(ctx context.Context) (*model.SyncResult, error) {
	var res model.SyncResult
	if err := b.do(ctx, http.MethodPost, SyncPath, fallbackSyncMessage, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (b *HTTPBackend) Disconnect(ctx context.Context) error {
	return b.do(ctx, http.MethodPost, DisconnectPath, fallbackDisconnectMessage, nil)
}

// do sends one request. out may be nil when the success body is ignored.
func (b *HTTPBackend) do(ctx context.Context, method, path, fallback string, out any) error {
	var body io.Reader
	if method == http.MethodPost {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("dashboard: building %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	for _, c := range b.cookies {
		req.AddCookie(c)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("dashboard: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("dashboard: reading %s response: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseAPIError(resp.StatusCode, raw, fallback)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("dashboard: decoding %s response: %w", path, err)
	}
	return nil
}

// parseAPIError never fails: a body that is not a JSON object still yields
// an APIError with the fallback message.
func parseAPIError(status int, body []byte, fallback string) *APIError {
	apiErr := &APIError{Status: status, Message: fallback}

	if !gjson.ValidBytes(body) {
		return apiErr
	}
	res := gjson.ParseBytes(body)
	if !res.IsObject() {
		return apiErr
	}

	if msg := res.Get("error"); msg.Type == gjson.String && msg.String() != "" {
		apiErr.Message = msg.String()
	}

	if details := res.Get("details"); details.Exists() && details.Type != gjson.Null {
		apiErr.Details = details.Value()
		return apiErr
	}

	rest := map[string]any{}
	res.ForEach(func(key, value gjson.Result) bool {
		if key.String() != "error" {
			rest[key.String()] = value.Value()
		}
		return true
	})
	if len(rest) > 0 {
		apiErr.Details = rest
	}

	return apiErr
}
