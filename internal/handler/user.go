package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gohost/backend/internal/auth"
	"github.com/gohost/backend/internal/repository"
	"github.com/gohost/backend/internal/service"
)

// UserHandler serves account signup and profile reads/edits.
type UserHandler struct {
	authSvc *service.AuthService
	users   *service.UserService
	logger  *slog.Logger
}

func NewUserHandler(authSvc *service.AuthService, users *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{authSvc: authSvc, users: users, logger: logger}
}

// HandleCreate registers a local account. The username is derived from
// the display name server-side; the account stays inactive until the
// email verification loop completes.
//
// HTTP: POST /api/v1/user/create
// BODY: {"name": "Ada Lovelace", "email": "ada@example.com", "password": "..."}
func (h *UserHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.authSvc.Signup(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// HandleMe returns the authenticated user's own record.
//
// HTTP: GET /api/v1/user/me
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	user, err := h.authSvc.GetUserByID(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleEach looks up any user by ID, username or email.
//
// HTTP: GET /api/v1/user/each/{userRef}
func (h *UserHandler) HandleEach(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "userRef")

	user, err := h.users.Get(r.Context(), ref)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleAll lists users with optional username filtering and paging.
//
// HTTP: GET /api/v1/user/all?username=&page=&limit=
func (h *UserHandler) HandleAll(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := repository.ListOptions{
		Username: q.Get("username"),
		Page:     intParam(q.Get("page"), 1),
		Limit:    intParam(q.Get("limit"), 20),
	}

	users, err := h.users.List(r.Context(), opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// HandleUpdate edits the caller's own display name and email.
//
// HTTP: PUT /api/v1/user/update
// BODY: {"name": "...", "email": "..."} — empty fields are unchanged.
func (h *UserHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), userID, req.Name, req.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// intParam parses a positive integer query parameter, falling back to
// def on anything else.
func intParam(raw string, def int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	return n
}
