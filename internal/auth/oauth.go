package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"

	"github.com/gohost/backend/internal/model"
)

// Profile is the provider-neutral identity returned by a completed
// OAuth handshake. IdentityLinker depends only on this shape — it never
// sees provider-specific payloads.
type Profile struct {
	Provider    string // model.ProviderGitHub or model.ProviderGoogle
	ID          string // provider's stable subject identifier
	Email       string
	Name        string // display name, feeds the handle generator
	Login       string // GitHub username; empty for Google
	AccessToken string // raw token — encrypted by the vault before persistence
}

// Provider is the capability every OAuth origin implements. The two
// variants (GitHub, Google) differ only in endpoints and in how the
// user-info response maps onto a Profile.
type Provider interface {
	// Name returns the provider identifier used in user records.
	Name() string
	// AuthURL returns the authorization redirect URL for the given
	// CSRF state.
	AuthURL(state string) string
	// Exchange trades the authorization code for a Profile.
	Exchange(ctx context.Context, code string) (*Profile, error)
}

// ---------------------------------------------------------------------
// GitHub
// ---------------------------------------------------------------------

// githubUser is the portion of the GitHub /user response we care about.
type githubUser struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// githubEmail is one entry of the GitHub /user/emails response.
type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// GitHubProvider implements Provider over GitHub's authorization code
// flow. The "repo" scope is requested because the stored token is later
// used by the repo-listing proxy.
type GitHubProvider struct {
	config  *oauth2.Config
	apiBase string
}

func NewGitHubProvider(clientID, clientSecret, callbackURL string) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user", "user:email", "repo"},
			Endpoint:     github.Endpoint,
		},
		apiBase: "https://api.github.com",
	}
}

func (p *GitHubProvider) Name() string { return model.ProviderGitHub }

func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the code for an access token, fetches /user and maps
// it to a Profile. The access token rides along in the Profile so the
// caller can encrypt and persist it.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*Profile, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging GitHub code: %w", err)
	}

	// config.Client returns an *http.Client that adds the Bearer
	// header to every request.
	client := p.config.Client(ctx, token)
	resp, err := client.Get(p.apiBase + "/user")
	if err != nil {
		return nil, fmt.Errorf("auth: calling GitHub /user API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: GitHub /user API returned status %d", resp.StatusCode)
	}

	var gh githubUser
	if err := json.NewDecoder(resp.Body).Decode(&gh); err != nil {
		return nil, fmt.Errorf("auth: decoding GitHub /user response: %w", err)
	}
	if gh.ID == 0 {
		return nil, fmt.Errorf("auth: GitHub returned an invalid user (ID = 0)")
	}

	email := gh.Email
	if email == "" {
		// Accounts with a private profile email return null from /user;
		// the user:email scope still grants access to /user/emails.
		email, err = p.primaryEmail(client)
		if err != nil {
			return nil, err
		}
	}

	name := gh.Name
	if name == "" {
		name = gh.Login // profile name is optional on GitHub
	}

	return &Profile{
		Provider:    model.ProviderGitHub,
		ID:          strconv.FormatInt(gh.ID, 10),
		Email:       email,
		Name:        name,
		Login:       gh.Login,
		AccessToken: token.AccessToken,
	}, nil
}

// primaryEmail fetches /user/emails and picks the primary verified
// address, falling back to any verified one. Returns "" when the
// account exposes no verified email at all.
func (p *GitHubProvider) primaryEmail(client *http.Client) (string, error) {
	resp, err := client.Get(p.apiBase + "/user/emails")
	if err != nil {
		return "", fmt.Errorf("auth: calling GitHub /user/emails API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("auth: GitHub /user/emails API returned status %d", resp.StatusCode)
	}

	var emails []githubEmail
	if err := json.NewDecoder(resp.Body).Decode(&emails); err != nil {
		return "", fmt.Errorf("auth: decoding GitHub /user/emails response: %w", err)
	}

	verified := ""
	for _, e := range emails {
		if !e.Verified {
			continue
		}
		if e.Primary {
			return e.Email, nil
		}
		if verified == "" {
			verified = e.Email
		}
	}
	return verified, nil
}

// ---------------------------------------------------------------------
// Google
// ---------------------------------------------------------------------

// googleUser is the portion of the Google userinfo response we use.
type googleUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// GoogleProvider implements Provider over Google's authorization code
// flow using the standard userinfo endpoint.
type GoogleProvider struct {
	config *oauth2.Config
}

func NewGoogleProvider(clientID, clientSecret, callbackURL string) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
	}
}

func (p *GoogleProvider) Name() string { return model.ProviderGoogle }

func (p *GoogleProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*Profile, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging Google code: %w", err)
	}

	resp, err := p.config.Client(ctx, token).Get("https://www.googleapis.com/oauth2/v2/userinfo")
	if err != nil {
		return nil, fmt.Errorf("auth: calling Google userinfo API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: Google userinfo API returned status %d", resp.StatusCode)
	}

	var gu googleUser
	if err := json.NewDecoder(resp.Body).Decode(&gu); err != nil {
		return nil, fmt.Errorf("auth: decoding Google userinfo response: %w", err)
	}
	if gu.ID == "" {
		return nil, fmt.Errorf("auth: Google returned an invalid user (empty ID)")
	}

	name := gu.Name
	if name == "" && gu.Email != "" {
		// Fall back to the mailbox local part as a display name.
		for i, r := range gu.Email {
			if r == '@' {
				name = gu.Email[:i]
				break
			}
		}
	}

	return &Profile{
		Provider:    model.ProviderGoogle,
		ID:          gu.ID,
		Email:       gu.Email,
		Name:        name,
		AccessToken: token.AccessToken,
	}, nil
}
