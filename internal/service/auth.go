// Package service holds the business logic between the HTTP handlers
// and the store:
//
//	handlers (HTTP) → services (rules) → repositories (DB)
//	                ↘ auth (tokens, hashes, OAuth)
//	                ↘ vault (credential encryption)
//	                ↘ mail  (out-of-band delivery)
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gohost/backend/internal/apperror"
	"github.com/gohost/backend/internal/auth"
	"github.com/gohost/backend/internal/handle"
	"github.com/gohost/backend/internal/mail"
	"github.com/gohost/backend/internal/model"
	"github.com/gohost/backend/internal/repository"
	"github.com/gohost/backend/internal/vault"
)

// AuthService owns every identity flow: local signup and login, OAuth
// login/linking, and the email verification loop.
type AuthService struct {
	users     repository.UserRepository
	usernames *handle.Generator
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	otp       *auth.OTPService
	vault     *vault.Vault
	mailer    mail.Mailer
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	usernames *handle.Generator,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	otp *auth.OTPService,
	v *vault.Vault,
	mailer mail.Mailer,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		usernames: usernames,
		tokens:    tokens,
		passwords: passwords,
		otp:       otp,
		vault:     v,
		mailer:    mailer,
		logger:    logger,
	}
}

// AuthResult bundles the user record with the issued session token.
type AuthResult struct {
	User  *model.User
	Token string
}

// Signup registers a local account. The username is derived from the
// display name; the account starts inactive and stays locked out of
// protected routes until the email verification loop completes.
//
// An existing email or a username collision (pre-checked or raced)
// surfaces as Conflict.
func (s *AuthService) Signup(ctx context.Context, name, email, password string) (*model.User, error) {
	if email == "" {
		return nil, fmt.Errorf("service/auth: %w", apperror.ValidationFailed("email", "email is required"))
	}
	if password == "" {
		return nil, fmt.Errorf("service/auth: %w", apperror.ValidationFailed("password", "password is required"))
	}

	username, err := s.usernames.Generate(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("service/auth: deriving username: %w", err)
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("service/auth: %w", apperror.Conflict("user", email))
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: checking email: %w", err)
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	user := &model.User{
		Name:         name,
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Provider:     model.ProviderLocal,
		IsActive:     false,
	}
	if err := s.users.Create(ctx, user); err != nil {
		// The email pre-check and the insert are not atomic; a raced
		// duplicate lands here as Conflict from the store.
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)
	return user, nil
}

// Login checks a username-or-email plus password pair and issues a
// session token. Unknown user and wrong password are indistinguishable
// to the caller — both come back Unauthenticated.
func (s *AuthService) Login(ctx context.Context, ref, password string) (*AuthResult, error) {
	user, err := s.users.Resolve(ctx, ref)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, fmt.Errorf("service/auth: %w", apperror.Unauthenticated("invalid username or password"))
		}
		return nil, fmt.Errorf("service/auth: resolving login: %w", err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		return nil, fmt.Errorf("service/auth: %w", apperror.Unauthenticated("invalid username or password"))
	}

	token, err := s.tokens.Issue(user, user.Provider)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing token: %w", err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

// LoginOAuth reconciles an external profile with the user store.
//
//   - Email already known → refresh provider, provider_id and (GitHub)
//     the encrypted access token on the existing identity.
//   - Unknown email, create=false → NotFound.
//   - Unknown email, create=true → new active account with a generated
//     username and an unusable local password.
//
// The access token is encrypted before the user row is ever written; a
// plaintext provider token never reaches the store. A username race
// during creation (Conflict) is retried once with a freshly derived
// handle before giving up.
func (s *AuthService) LoginOAuth(ctx context.Context, profile *auth.Profile, create bool) (*AuthResult, error) {
	if profile == nil {
		return nil, fmt.Errorf("service/auth: %w", apperror.Unauthenticated("no profile returned by provider"))
	}
	if profile.Email == "" {
		return nil, fmt.Errorf("service/auth: %w", apperror.Unauthenticated("provider returned no email"))
	}

	user, err := s.users.GetByEmail(ctx, profile.Email)
	switch {
	case err == nil:
		if err := s.applyProviderLink(ctx, user, profile); err != nil {
			return nil, err
		}
	case errors.Is(err, apperror.ErrNotFound):
		if !create {
			return nil, fmt.Errorf("service/auth: %w", apperror.NotFound("user", profile.Email))
		}
		user, err = s.createFromProfile(ctx, profile)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("service/auth: looking up %s: %w", profile.Email, err)
	}

	token, err := s.tokens.Issue(user, profile.Provider)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing token: %w", err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

// LinkGitHub attaches a GitHub identity (and its encrypted access
// token) to an already-authenticated account. Re-linking the same
// provider is idempotent — the stored token is simply refreshed.
func (s *AuthService) LinkGitHub(ctx context.Context, userID string, profile *auth.Profile) (*AuthResult, error) {
	if profile == nil {
		return nil, fmt.Errorf("service/auth: %w", apperror.Unauthenticated("no profile returned by provider"))
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", userID, err)
	}

	if err := s.applyProviderLink(ctx, user, profile); err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(user, model.ProviderGitHub)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing token: %w", err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

// applyProviderLink updates the provider columns on an existing user,
// encrypting the access token first when one was supplied.
func (s *AuthService) applyProviderLink(ctx context.Context, user *model.User, profile *auth.Profile) error {
	user.Provider = profile.Provider
	user.ProviderID = profile.ID

	if profile.Provider == model.ProviderGitHub && profile.AccessToken != "" {
		enc, err := s.vault.Encrypt(profile.AccessToken)
		if err != nil {
			return fmt.Errorf("service/auth: encrypting github token: %w", err)
		}
		user.GitHubTokenEnc = enc
	}

	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("service/auth: updating provider link: %w", err)
	}

	s.logger.Info("provider linked",
		slog.String("userID", user.ID),
		slog.String("provider", profile.Provider),
	)
	return nil
}

// createFromProfile provisions a new account from an OAuth profile.
func (s *AuthService) createFromProfile(ctx context.Context, profile *auth.Profile) (*model.User, error) {
	name := profile.Name
	if name == "" {
		name = profile.Email
	}

	// OAuth accounts authenticate through the provider; the local
	// password slot gets a hash of random bytes so it can never match.
	placeholder, err := s.passwords.HashUnusable()
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	tokenEnc := ""
	if profile.Provider == model.ProviderGitHub && profile.AccessToken != "" {
		tokenEnc, err = s.vault.Encrypt(profile.AccessToken)
		if err != nil {
			return nil, fmt.Errorf("service/auth: encrypting github token: %w", err)
		}
	}

	// One retry on username conflict: a concurrent creation can win the
	// same derived handle between our probe and the insert.
	for attempt := 0; attempt < 2; attempt++ {
		username, err := s.usernames.Generate(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("service/auth: deriving username: %w", err)
		}

		user := &model.User{
			Name:           name,
			Username:       username,
			Email:          profile.Email,
			PasswordHash:   placeholder,
			Provider:       profile.Provider,
			ProviderID:     profile.ID,
			GitHubTokenEnc: tokenEnc,
			IsActive:       true,
		}
		err = s.users.Create(ctx, user)
		if err == nil {
			s.logger.Info("user created via oauth",
				slog.String("userID", user.ID),
				slog.String("provider", profile.Provider),
				slog.String("username", user.Username),
			)
			return user, nil
		}
		if errors.Is(err, apperror.ErrConflict) && attempt == 0 {
			s.logger.Warn("username conflict on oauth create, retrying",
				slog.String("username", username),
			)
			continue
		}
		return nil, fmt.Errorf("service/auth: creating oauth user: %w", err)
	}
	// Unreachable: the loop either returns the user or the error.
	return nil, fmt.Errorf("service/auth: creating oauth user: retries exhausted")
}

// SendVerificationCode issues a fresh OTP for the account behind email,
// persists only its hash, and hands the raw code to the mailer exactly
// once. Reissuing replaces any pending code.
func (s *AuthService) SendVerificationCode(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("service/auth: %w", err)
	}

	raw, hash, err := s.otp.Issue()
	if err != nil {
		return fmt.Errorf("service/auth: %w", err)
	}

	// Persist the hash before delivery: a code the user received but we
	// failed to store would be unverifiable.
	if err := s.users.SetVerificationCode(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("service/auth: storing code: %w", err)
	}

	msg := mail.Message{
		To:      email,
		Subject: "Verification Code - GoHost",
		Text:    fmt.Sprintf("Verification Code\n\nYour verification code is: %s", raw),
		HTML:    fmt.Sprintf("Your verification code is: <strong>%s</strong>.", raw),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("service/auth: sending code: %w", err)
	}

	s.logger.Info("verification code sent", slog.String("userID", user.ID))
	return nil
}

// VerifyCode checks a submitted OTP. On match the account is activated
// and the hash cleared in one store update, making the code single-use;
// on mismatch nothing changes.
func (s *AuthService) VerifyCode(ctx context.Context, email, code string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("service/auth: %w", err)
	}

	if !s.otp.Verify(code, user.VerificationCodeHash) {
		return fmt.Errorf("service/auth: %w", apperror.ValidationFailed("code", "invalid verification code"))
	}

	if err := s.users.Activate(ctx, user.ID); err != nil {
		return fmt.Errorf("service/auth: activating user: %w", err)
	}

	s.logger.Info("email verified", slog.String("userID", user.ID))
	return nil
}

// GetUserByID returns the user behind an internal ID — the /user/me
// lookup after the guard has validated the session.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}
	return user, nil
}
