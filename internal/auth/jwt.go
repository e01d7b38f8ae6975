// Package auth provides session tokens, password hashing, email
// verification codes, OAuth providers and the request guard middleware.
//
// SESSION MODEL:
// Sessions are stateless JWTs — no server-side session store. The token
// carries everything the guard needs ({id, is_active, username, email,
// provider}) and is trusted on signature alone. The guard still performs
// a per-request user lookup so that deactivation takes effect
// immediately, but no session row ever exists.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/gohost/backend/internal/model"
)

const issuer = "gohost"

// SessionClaims is the JWT payload for a session token.
//
// The subject claim carries the user's internal UUID; the remaining
// fields are a projection of the canonical user record at issue time.
//
// NO EXPIRY CLAIM: tokens are valid until the signing secret changes.
// This reproduces the deployed design as observed — revocation happens
// through the guard's per-request activation check, not through token
// lifetime.
type SessionClaims struct {
	IsActive bool   `json:"is_active"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Provider string `json:"provider"`
	jwt.RegisteredClaims
}

// TokenService signs and validates session tokens with a server-held
// HMAC secret.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given secret.
// The secret should be at least 32 bytes of random data in production.
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// Issue builds and signs a session token for the given user.
// The provider argument records which origin this session came from; it
// may differ from user.Provider mid-linking (e.g. a local account that
// just completed a GitHub link gets a "github" session).
func (s *TokenService) Issue(user *model.User, provider string) (string, error) {
	c := SessionClaims{
		IsActive: user.IsActive,
		Username: user.Username,
		Email:    user.Email,
		Provider: provider,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: user.ID,
			Issuer:  issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a session token, returning its claims.
//
// Verification pins the algorithm to HS256 (jwt.WithValidMethods) so a
// token claiming alg=none or an asymmetric method is rejected, and pins
// the issuer so tokens minted by other applications sharing a secret by
// accident do not validate.
func (s *TokenService) Validate(tokenStr string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&SessionClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
	)
	if err != nil {
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth: invalid token claims")
	}
	if c.Subject == "" {
		return nil, fmt.Errorf("auth: token has no subject")
	}
	return c, nil
}
