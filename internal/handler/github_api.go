package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/integration-dashboard/internal/auth"
	"github.com/sakif/integration-dashboard/internal/model"
)

// GitHubService is what the /api/github endpoints need from service.GitHubService.
type GitHubService interface {
	Data(ctx context.Context, userID string) (*model.GitHubData, error)
	Sync(ctx context.Context, userID string) (*model.SyncResult, error)
	Disconnect(ctx context.Context, userID string) error
}

// GitHubAPIHandler serves the JSON endpoints behind RequireAuth:
//
//	GET  /api/github/data        → 200 {user, repos, notifications}
//	POST /api/github/sync        → 200 {chunks}
//	POST /api/github/disconnect  → 204
//
// Failures use writeError's {"error", "code", "details"} body.
type GitHubAPIHandler struct {
	svc    GitHubService
	logger *slog.Logger
}

func NewGitHubAPIHandler(svc GitHubService, logger *slog.Logger) *GitHubAPIHandler {
	return &GitHubAPIHandler{svc: svc, logger: logger}
}

// userID reads the caller set by RequireAuth, answering 401 itself when absent.
func (h *GitHubAPIHandler) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "valid authentication required", Code: "unauthorized"})
	}
	return id, ok
}

func (h *GitHubAPIHandler) HandleData(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	data, err := h.svc.Data(r.Context(), userID)
	if err != nil {
		h.logFailure("data", userID, err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, data)
}

func (h *GitHubAPIHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	res, err := h.svc.Sync(r.Context(), userID)
	if err != nil {
		h.logFailure("sync", userID, err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (h *GitHubAPIHandler) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	if err := h.svc.Disconnect(r.Context(), userID); err != nil {
		h.logFailure("disconnect", userID, err)
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *GitHubAPIHandler) logFailure(op, userID string, err error) {
	status, _ := errorStatus(err)
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(context.Background(), level, "github api request failed",
		slog.String("op", op),
		slog.String("userID", userID),
		slog.Int("status", status),
		slog.String("error", err.Error()),
	)
}
