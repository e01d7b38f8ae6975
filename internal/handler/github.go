package handler

import (
	"log/slog"
	"net/http"

	"github.com/gohost/backend/internal/auth"
	"github.com/gohost/backend/internal/service"
)

// GitHubHandler proxies GitHub API reads through the caller's stored
// credential.
type GitHubHandler struct {
	svc    *service.GitHubService
	logger *slog.Logger
}

func NewGitHubHandler(svc *service.GitHubService, logger *slog.Logger) *GitHubHandler {
	return &GitHubHandler{svc: svc, logger: logger}
}

// HandleListRepos lists the repositories the caller's GitHub token can
// see. Users without a linked GitHub credential get a 404 telling them
// to sign in with GitHub.
//
// HTTP: GET /api/v1/github/list/repo
func (h *GitHubHandler) HandleListRepos(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	repos, err := h.svc.ListRepos(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, repos)
}
