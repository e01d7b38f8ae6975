// Package model defines the data structures used throughout the application.
package model

import "time"

// Authentication providers. Provider records the last origin a user
// authenticated with; it is not an ownership lock — a local account can
// later link GitHub or Google without changing its identity row.
const (
	ProviderLocal  = "local"
	ProviderGitHub = "github"
	ProviderGoogle = "google"
)

// User is the canonical identity record.
//
// Three authentication origins (local password, GitHub OAuth, Google
// OAuth) all resolve to this one aggregate. Username and Email are each
// globally unique; Username is derived from the display name by
// internal/handle and is always lower-case.
//
// Secret-bearing fields never hold plaintext:
//   - PasswordHash is a bcrypt hash (OAuth-created accounts get a hash
//     of random bytes so the password can never be used to log in).
//   - GitHubTokenEnc is the AES-GCM ciphertext of the GitHub OAuth
//     access token, produced by internal/vault. Empty until linked.
//   - VerificationCodeHash is the bcrypt hash of a pending email OTP.
//     Empty when no verification is pending.
//
// IsActive is false for local signups until the email OTP is verified;
// OAuth-created accounts are active from the start. Inactive accounts
// are rejected by the auth middleware before any protected handler runs.
type User struct {
	ID                   string    `json:"id"         db:"id"` // UUID
	Name                 string    `json:"name"       db:"name"`
	Username             string    `json:"username"   db:"username"`
	Email                string    `json:"email"      db:"email"`
	PasswordHash         string    `json:"-"          db:"password_hash"`
	Provider             string    `json:"provider"   db:"provider"`
	ProviderID           string    `json:"providerId" db:"provider_id"`
	GitHubTokenEnc       string    `json:"-"          db:"github_token_enc"`
	VerificationCodeHash string    `json:"-"          db:"verification_code_hash"`
	IsActive             bool      `json:"isActive"   db:"is_active"`
	CreatedAt            time.Time `json:"createdAt"  db:"created_at"`
	UpdatedAt            time.Time `json:"updatedAt"  db:"updated_at"`
}
