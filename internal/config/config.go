package config

import (
	"errors"
	"os"
	"strings"
)

// Config holds the application configuration.
type Config struct {
	Environment string
	DatabaseURL string
	AuditDB     string
}

// Load loads configuration from environment variables.
// For development/testing the audit database is optional; audit records then
// stay in memory only.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: os.Getenv("APP_ENV"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		AuditDB:     os.Getenv("AUDIT_DB"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	var missing []string

	if c.Environment == "" {
		missing = append(missing, "APP_ENV")
	}
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return errors.New("missing required environment variables: " + strings.Join(missing, ", "))
	}

	// Production and staging must keep a durable audit trail.
	if c.Environment == "production" || c.Environment == "staging" {
		if c.AuditDB == "" {
			return errors.New("missing required environment variables for " + c.Environment + ": AUDIT_DB")
		}
	}

	return nil
}
