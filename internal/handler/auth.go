package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/xid"

	"github.com/gohost/backend/internal/auth"
	"github.com/gohost/backend/internal/service"
)

// Cookie names used by the OAuth round trip. All are short-lived and
// single-use: set on the start request, consumed by the callback.
const (
	cookieState  = "oauth_state"  // CSRF nonce
	cookieCreate = "oauth_create" // google only: provision on unknown email?
	cookieLink   = "oauth_link"   // github only: session token of the account to link
)

// AuthHandler owns the authentication surface: local login, the email
// verification loop, and the GitHub/Google OAuth round trips.
//
// Browser-facing OAuth endpoints redirect to FRONTEND_URL on success
// with the session token in the query string; JSON endpoints return the
// token in the body.
type AuthHandler struct {
	svc         *service.AuthService
	github      auth.Provider
	google      auth.Provider
	tokens      *auth.TokenService
	frontendURL string
	logger      *slog.Logger
}

func NewAuthHandler(
	svc *service.AuthService,
	github auth.Provider,
	google auth.Provider,
	tokens *auth.TokenService,
	frontendURL string,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		svc:         svc,
		github:      github,
		google:      google,
		tokens:      tokens,
		frontendURL: frontendURL,
		logger:      logger,
	}
}

// HandleLogin authenticates a username-or-email plus password pair.
//
// HTTP: POST /api/v1/auth/login
// BODY: {"username": "alovelace", "password": "..."} — the username
// field also accepts an email address.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	ref := req.Username
	if ref == "" {
		ref = req.Email
	}

	result, err := h.svc.Login(r.Context(), ref, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token": result.Token,
		"user":  result.User,
	})
}

// HandleSendCode issues and emails a verification code.
//
// HTTP: POST /api/v1/auth/send-code-verification
// BODY: {"email": "ada@example.com"}
func (h *AuthHandler) HandleSendCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.svc.SendVerificationCode(r.Context(), req.Email); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "verification code sent"})
}

// HandleVerifyCode checks a submitted code and activates the account.
//
// HTTP: POST /api/v1/auth/verify-code
// BODY: {"email": "ada@example.com", "code": "123456"}
func (h *AuthHandler) HandleVerifyCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.svc.VerifyCode(r.Context(), req.Email, req.Code); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "account verified"})
}

// HandleGitHubStart begins the GitHub OAuth round trip.
//
// HTTP: GET /api/v1/auth/github
//
// Two modes share this endpoint:
//   - no session → sign in (or sign up) with GitHub
//   - a valid session token in the Authorization header or ?token=
//     query → link GitHub to that existing account
//
// The random state lands in a short-lived HttpOnly cookie and is
// checked on callback; for linking, the session token rides along in a
// second cookie and is re-validated before use.
func (h *AuthHandler) HandleGitHubStart(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()
	setFlowCookie(w, cookieState, state)

	if token := sessionTokenFrom(r); token != "" {
		if _, err := h.tokens.Validate(token); err == nil {
			setFlowCookie(w, cookieLink, token)
		} else {
			h.logger.Warn("github start: ignoring invalid link token")
		}
	}

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the GitHub round trip: CSRF check,
// code exchange, then either linking or login depending on the cookies
// set at the start. Either way the browser ends up at
// {FRONTEND_URL}/auth/success?token=...
//
// HTTP: GET /api/v1/auth/github/callback?code=xxx&state=yyy
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	if !h.checkState(w, r) {
		return
	}

	linkToken := consumeFlowCookie(w, r, cookieLink)

	profile, ok := h.exchange(w, r, h.github)
	if !ok {
		return
	}

	var result *service.AuthResult
	var err error
	if linkToken != "" {
		claims, verr := h.tokens.Validate(linkToken)
		if verr != nil {
			h.logger.Warn("github callback: stale link token", slog.String("error", verr.Error()))
			h.redirectError(w, r, "session expired, sign in and try linking again")
			return
		}
		result, err = h.svc.LinkGitHub(r.Context(), claims.Subject, profile)
	} else {
		result, err = h.svc.LoginOAuth(r.Context(), profile, true)
	}
	if err != nil {
		h.logger.Error("github callback failed", slog.String("error", err.Error()))
		h.redirectError(w, r, "github authentication failed")
		return
	}

	h.redirectSuccess(w, r, result.Token)
}

// HandleGoogleStart begins the Google OAuth round trip.
//
// HTTP: GET /api/v1/auth/google?create=true|false
//
// The create flag decides what happens when the Google email is not on
// file: provision a new account (sign-up button) or fail with 404
// (sign-in button). It is carried across the redirect in a cookie.
func (h *AuthHandler) HandleGoogleStart(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()
	setFlowCookie(w, cookieState, state)
	setFlowCookie(w, cookieCreate, r.URL.Query().Get("create"))

	http.Redirect(w, r, h.google.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGoogleCallback completes the Google round trip.
//
// HTTP: GET /api/v1/auth/google/callback?code=xxx&state=yyy
func (h *AuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if !h.checkState(w, r) {
		return
	}

	create := consumeFlowCookie(w, r, cookieCreate) == "true"

	profile, ok := h.exchange(w, r, h.google)
	if !ok {
		return
	}

	result, err := h.svc.LoginOAuth(r.Context(), profile, create)
	if err != nil {
		h.logger.Error("google callback failed", slog.String("error", err.Error()))
		h.redirectError(w, r, "google authentication failed")
		return
	}

	h.redirectSuccess(w, r, result.Token)
}

// checkState validates and clears the CSRF state cookie. A missing or
// mismatched state ends the flow with 400.
func (h *AuthHandler) checkState(w http.ResponseWriter, r *http.Request) bool {
	stateCookie, err := r.Cookie(cookieState)
	if err != nil || stateCookie.Value == "" {
		h.logger.Warn("oauth callback: missing state cookie")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return false
	}
	if r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("oauth callback: state mismatch")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return false
	}
	clearFlowCookie(w, cookieState)
	return true
}

// exchange turns the callback code into a provider profile. Denials and
// exchange failures redirect back to the frontend error page.
func (h *AuthHandler) exchange(w http.ResponseWriter, r *http.Request, provider auth.Provider) (*auth.Profile, bool) {
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("oauth callback: user denied authorization",
			slog.String("provider", provider.Name()),
			slog.String("error", errParam),
		)
		h.redirectError(w, r, "authorization denied")
		return nil, false
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return nil, false
	}

	profile, err := provider.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("oauth exchange failed",
			slog.String("provider", provider.Name()),
			slog.String("error", err.Error()),
		)
		h.redirectError(w, r, "authentication failed")
		return nil, false
	}
	return profile, true
}

func (h *AuthHandler) redirectSuccess(w http.ResponseWriter, r *http.Request, token string) {
	http.Redirect(w, r, h.frontendURL+"/auth/success?token="+url.QueryEscape(token), http.StatusSeeOther)
}

func (h *AuthHandler) redirectError(w http.ResponseWriter, r *http.Request, message string) {
	http.Redirect(w, r, h.frontendURL+"/auth/error?message="+url.QueryEscape(message), http.StatusSeeOther)
}

// sessionTokenFrom pulls a session token from the Authorization header
// or, for plain browser navigations, the token query parameter.
func sessionTokenFrom(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func setFlowCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   600, // 10 minutes, enough to finish the provider consent page
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearFlowCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{Name: name, Value: "", Path: "/", MaxAge: -1})
}

// consumeFlowCookie reads and clears a single-use flow cookie, returning
// its value or "" when absent.
func consumeFlowCookie(w http.ResponseWriter, r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	clearFlowCookie(w, name)
	return c.Value
}
