// Package config loads the server configuration from environment
// variables. Every knob lives on one struct so cmd/server stays a thin
// entry point.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config is the full server configuration. Secrets have no defaults:
// a deployment that forgets them fails at startup, not at first use.
type Config struct {
	Port   int    `env:"PORT" envDefault:"8080"`
	DBPath string `env:"DATABASE_PATH" envDefault:"gohost.db"`

	// JWTSecret signs session tokens; VaultSecret seals stored
	// third-party credentials. Rotating VaultSecret orphans every
	// sealed token, so the two are deliberately separate knobs.
	JWTSecret   string `env:"JWT_SECRET,required"`
	VaultSecret string `env:"VAULT_SECRET,required"`

	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`

	GitHubClientID     string `env:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string `env:"GITHUB_CLIENT_SECRET"`
	GitHubCallbackURL  string `env:"GITHUB_CALLBACK_URL"`

	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleCallbackURL  string `env:"GOOGLE_CALLBACK_URL"`

	// SMTP settings for the verification mailer. With SMTPHost empty
	// the server falls back to logging codes, for local development.
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM"`
}

// Load parses the environment into a Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}
	return cfg, nil
}
