package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gohost/backend/internal/apperror"
	"github.com/gohost/backend/internal/model"
)

// contextKey is an unexported type for context keys in this package, so
// no other package can read or shadow the values stored under them.
type contextKey string

const userIDKey contextKey = "userID"

// UserLookup is the single read the guard needs against the user store.
// *repository/sqlite.DB satisfies it; tests use a func-backed fake.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// RequireAuth enforces authentication on protected routes.
//
// Per-request state machine:
//
//	no bearer token            → 401
//	signature invalid          → 401
//	subject not in user store  → 401
//	user found, inactive       → 400 (account exists but is unverified)
//	user found, active         → userID injected into the request context
//
// The user lookup runs on every request — no caching — so deactivating
// an account takes effect immediately even though session tokens never
// expire.
func RequireAuth(tokens *TokenService, users UserLookup, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := bearerClaims(r, tokens)
			if err != nil {
				writeGuardError(w, http.StatusUnauthorized, "unauthenticated", "valid authentication required")
				return
			}

			user, err := users.GetByID(r.Context(), claims.Subject)
			if err != nil {
				if !errors.Is(err, apperror.ErrNotFound) {
					logger.Error("auth guard: user lookup failed",
						slog.String("userID", claims.Subject),
						slog.String("error", err.Error()),
					)
				}
				writeGuardError(w, http.StatusUnauthorized, "unauthenticated", "user not found, please log in again")
				return
			}

			if !user.IsActive {
				writeGuardError(w, http.StatusBadRequest, "inactive_account", "account is inactive, please verify your email")
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, user.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext retrieves the authenticated user's ID from the
// request context. Returns ("", false) on unauthenticated requests.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// bearerClaims extracts and validates the session token from the
// Authorization header. Sessions travel as "Authorization: Bearer
// <token>" — this is a headless API consumed by a separate front end,
// so no cookies are involved.
func bearerClaims(r *http.Request, tokens *TokenService) (*SessionClaims, error) {
	header := r.Header.Get("Authorization")
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return nil, errors.New("auth: missing bearer token")
	}
	return tokens.Validate(strings.TrimPrefix(header, "Bearer "))
}

// writeGuardError emits the guard's fixed-shape JSON error without
// pulling in the handler package (which would be an import cycle).
func writeGuardError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + kind + `","message":"` + message + `"}`))
}
