package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gohost/backend/internal/auth"
	"github.com/gohost/backend/internal/service"
)

// WorkspaceHandler serves workspace CRUD and membership management.
// Every route is guarded; the service enforces membership and role.
type WorkspaceHandler struct {
	svc    *service.WorkspaceService
	logger *slog.Logger
}

func NewWorkspaceHandler(svc *service.WorkspaceService, logger *slog.Logger) *WorkspaceHandler {
	return &WorkspaceHandler{svc: svc, logger: logger}
}

// HandleCreate makes a new workspace owned by the caller.
//
// HTTP: POST /api/v1/workspace/create
// BODY: {"name": "side-projects"}
func (h *WorkspaceHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	ws, err := h.svc.Create(r.Context(), userID, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ws)
}

// HandleEach returns one workspace the caller belongs to.
//
// HTTP: GET /api/v1/workspace/each/{workspaceId}
func (h *WorkspaceHandler) HandleEach(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	ws, err := h.svc.Get(r.Context(), userID, chi.URLParam(r, "workspaceId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

// HandleAll lists the caller's workspaces.
//
// HTTP: GET /api/v1/workspace/all
func (h *WorkspaceHandler) HandleAll(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	list, err := h.svc.ListMine(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// HandleUpdate renames a workspace. Master only.
//
// HTTP: PUT /api/v1/workspace/update/{workspaceId}
// BODY: {"name": "new-name"}
func (h *WorkspaceHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	ws, err := h.svc.Rename(r.Context(), userID, chi.URLParam(r, "workspaceId"), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

// HandleDelete removes a workspace and its memberships. Master only.
//
// HTTP: DELETE /api/v1/workspace/delete/{workspaceId}
func (h *WorkspaceHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	if err := h.svc.Delete(r.Context(), userID, chi.URLParam(r, "workspaceId")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "workspace deleted"})
}

// HandleAddMember invites a user (by ID, username or email) into the
// workspace. Master only.
//
// HTTP: POST /api/v1/workspace/member/{workspaceId}
// BODY: {"user": "ada@example.com"}
func (h *WorkspaceHandler) HandleAddMember(w http.ResponseWriter, r *http.Request) {
	actorID, _ := auth.UserIDFromContext(r.Context())

	var req struct {
		User string `json:"user"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	m, err := h.svc.AddMember(r.Context(), actorID, chi.URLParam(r, "workspaceId"), req.User)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// HandleRemoveMember removes a member, or lets a member leave.
//
// HTTP: DELETE /api/v1/workspace/member/{workspaceId}/{userId}
func (h *WorkspaceHandler) HandleRemoveMember(w http.ResponseWriter, r *http.Request) {
	actorID, _ := auth.UserIDFromContext(r.Context())

	err := h.svc.RemoveMember(r.Context(), actorID, chi.URLParam(r, "workspaceId"), chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "member removed"})
}
