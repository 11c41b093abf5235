// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds every environment knob the service consumes.
type Config struct {
	Addr        string `env:"ADDR" envDefault:":8080"`
	DatabaseURL string `env:"DATABASE_URL"`

	// QRSecret signs scan codes. The process refuses to start without it.
	QRSecret            string `env:"QR_SECRET"`
	QRExpirationMinutes int    `env:"QR_EXPIRATION_MINUTES" envDefault:"60"`

	JWTSecret   string `env:"JWT_SECRET"`
	JWTTTLHours int    `env:"JWT_TTL_HOURS" envDefault:"24"`

	// RedisAddr enables the leaderboard cache when set.
	RedisAddr string `env:"REDIS_ADDR"`

	// AdminEmail/AdminPIN bootstrap the first admin on an empty database.
	AdminEmail string `env:"ADMIN_EMAIL"`
	AdminPIN   string `env:"ADMIN_PIN"`

	// OIDC enables SSO login for the admin console when all three are set.
	OIDCIssuer       string `env:"OIDC_ISSUER"`
	OIDCClientID     string `env:"OIDC_CLIENT_ID"`
	OIDCClientSecret string `env:"OIDC_CLIENT_SECRET"`
	OIDCRedirectURL  string `env:"OIDC_REDIRECT_URL"`
}

// Load parses and validates configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.QRSecret == "" {
		return nil, errors.New("QR_SECRET is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.QRExpirationMinutes <= 0 {
		return nil, errors.New("QR_EXPIRATION_MINUTES must be positive")
	}
	return &cfg, nil
}

// OIDCEnabled reports whether SSO login is configured.
func (c *Config) OIDCEnabled() bool {
	return c.OIDCIssuer != "" && c.OIDCClientID != "" && c.OIDCClientSecret != ""
}
