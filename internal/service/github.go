package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gohost/backend/internal/apperror"
	"github.com/gohost/backend/internal/repository"
	"github.com/gohost/backend/internal/vault"
)

const githubAPIBase = "https://api.github.com"

// Repo is the slice of the GitHub repository payload the frontend
// consumes when picking a repo to deploy.
type Repo struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	Private       bool   `json:"private"`
	HTMLURL       string `json:"html_url"`
	Description   string `json:"description"`
	DefaultBranch string `json:"default_branch"`
	Language      string `json:"language"`
	UpdatedAt     string `json:"updated_at"`
}

// GitHubService proxies repository listings through the caller's stored
// GitHub credential. The encrypted token is unsealed per request and
// the plaintext never leaves this package.
type GitHubService struct {
	users   repository.UserRepository
	vault   *vault.Vault
	client  *http.Client
	baseURL string
	logger  *slog.Logger
}

func NewGitHubService(users repository.UserRepository, v *vault.Vault, logger *slog.Logger) *GitHubService {
	return &GitHubService{
		users:   users,
		vault:   v,
		client:  &http.Client{Timeout: 15 * time.Second},
		baseURL: githubAPIBase,
		logger:  logger,
	}
}

// ListRepos returns the repositories the user's GitHub token can see.
// A user with no stored token, or a token sealed under a different
// vault secret, gets a credential error telling them to sign in with
// GitHub again.
func (s *GitHubService) ListRepos(ctx context.Context, userID string) ([]Repo, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/github: fetching user %s: %w", userID, err)
	}
	if user.GitHubTokenEnc == "" {
		return nil, fmt.Errorf("service/github: %w", apperror.Credential("no github token on file, sign in with github"))
	}

	token, err := s.vault.Decrypt(user.GitHubTokenEnc)
	if err != nil {
		return nil, fmt.Errorf("service/github: unsealing token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/user/repos?sort=updated&per_page=100", nil)
	if err != nil {
		return nil, fmt.Errorf("service/github: building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("service/github: calling github: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		// The token was revoked or lost its scopes upstream.
		return nil, fmt.Errorf("service/github: %w", apperror.Credential("github rejected the stored token, sign in with github again"))
	default:
		return nil, fmt.Errorf("service/github: github returned status %d", resp.StatusCode)
	}

	var repos []Repo
	if err := json.NewDecoder(resp.Body).Decode(&repos); err != nil {
		return nil, fmt.Errorf("service/github: decoding response: %w", err)
	}

	s.logger.Info("github repos listed",
		slog.String("userID", userID),
		slog.Int("count", len(repos)),
	)
	return repos, nil
}
