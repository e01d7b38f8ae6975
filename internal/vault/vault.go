// Package vault encrypts third-party access tokens before they are
// persisted and decrypts them on demand.
//
// Scheme: AES-256-GCM. GCM is an AEAD — authenticated encryption — so a
// ciphertext tampered with or decrypted under the wrong key fails loudly
// instead of yielding garbage that might get sent to the GitHub API.
//
// The stored form is base64(nonce || ciphertext). The nonce is random
// per encryption, so encrypting the same token twice yields different
// ciphertexts; only decryption is deterministic.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/gohost/backend/internal/apperror"
)

// Vault performs symmetric encryption of credential strings.
// Operations are pure and safe for concurrent use.
type Vault struct {
	aead cipher.AEAD
}

// New builds a Vault from the configured secret string.
//
// The secret is a passphrase, not a raw key — it is stretched to a
// 32-byte AES-256 key with SHA-256 so operators can configure any
// sufficiently long random string.
func New(secret string) (*Vault, error) {
	if len(secret) < 16 {
		return nil, fmt.Errorf("vault: secret must be at least 16 characters")
	}

	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("vault: creating cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault: creating GCM: %w", err)
	}
	return &Vault{aead: aead}, nil
}

// Encrypt seals a plaintext credential for storage.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	// GCM requires a unique nonce per encryption under the same key.
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("vault: reading nonce: %w", err)
	}

	ciphertext := v.aead.Seal(nil, nonce, []byte(plaintext), nil)
	payload := append(nonce, ciphertext...)
	return base64.RawStdEncoding.EncodeToString(payload), nil
}

// Decrypt opens a previously encrypted credential.
//
// Any failure — malformed base64, truncated payload, wrong key,
// tampered ciphertext — is reported as a credential error so callers
// can distinguish "the stored token is unusable" from store failures.
func (v *Vault) Decrypt(encrypted string) (string, error) {
	payload, err := base64.RawStdEncoding.DecodeString(encrypted)
	if err != nil {
		return "", fmt.Errorf("vault: %w", apperror.Credential("stored token is not valid base64"))
	}

	nonceSize := v.aead.NonceSize()
	if len(payload) < nonceSize {
		return "", fmt.Errorf("vault: %w", apperror.Credential("stored token is truncated"))
	}

	nonce, ciphertext := payload[:nonceSize], payload[nonceSize:]
	plaintext, err := v.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		// GCM authentication failed: wrong key or tampered data.
		return "", fmt.Errorf("vault: %w", apperror.Credential("stored token cannot be decrypted"))
	}
	return string(plaintext), nil
}
