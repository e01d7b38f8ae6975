package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gohost/backend/internal/auth"
	"github.com/gohost/backend/internal/service"
)

// ProjectHandler serves project CRUD inside workspaces.
type ProjectHandler struct {
	svc    *service.ProjectService
	logger *slog.Logger
}

func NewProjectHandler(svc *service.ProjectService, logger *slog.Logger) *ProjectHandler {
	return &ProjectHandler{svc: svc, logger: logger}
}

// HandleCreate adds a project to a workspace the caller belongs to.
// The deployment domain is derived from the name server-side.
//
// HTTP: POST /api/v1/project/create
// BODY: {"workspaceId": "...", "name": "My App", "description": "...",
//
//	"environments": ["production"]}
func (h *ProjectHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req struct {
		WorkspaceID  string   `json:"workspaceId"`
		Name         string   `json:"name"`
		Description  string   `json:"description"`
		Environments []string `json:"environments"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	p, err := h.svc.Create(r.Context(), userID, req.WorkspaceID, req.Name, req.Description, req.Environments)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// HandleEach returns one project visible to the caller.
//
// HTTP: GET /api/v1/project/each/{projectId}
func (h *ProjectHandler) HandleEach(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	p, err := h.svc.Get(r.Context(), userID, chi.URLParam(r, "projectId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleMine lists the caller's projects in one workspace.
//
// HTTP: GET /api/v1/project/my/{workspaceId}
func (h *ProjectHandler) HandleMine(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	list, err := h.svc.ListMine(r.Context(), userID, chi.URLParam(r, "workspaceId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// HandleUpdate edits a project. Owner only; absent fields keep their
// current values and the domain is never editable.
//
// HTTP: PUT /api/v1/project/update/{projectId}
func (h *ProjectHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req struct {
		Name         *string  `json:"name"`
		Description  *string  `json:"description"`
		Environments []string `json:"environments"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	p, err := h.svc.Update(r.Context(), userID, chi.URLParam(r, "projectId"), service.ProjectUpdate{
		Name:         req.Name,
		Description:  req.Description,
		Environments: req.Environments,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleDelete removes a project. Owner only.
//
// HTTP: DELETE /api/v1/project/delete/{projectId}
func (h *ProjectHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	if err := h.svc.Delete(r.Context(), userID, chi.URLParam(r, "projectId")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "project deleted"})
}
