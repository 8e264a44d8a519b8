package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresEnvAndDatabase(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("AUDIT_DB", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "APP_ENV")
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoadDevelopmentAllowsMissingAuditDB(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("DATABASE_URL", "postgres://localhost/treasury")
	t.Setenv("AUDIT_DB", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Environment)
	assert.Empty(t, cfg.AuditDB)
}

func TestLoadProductionRequiresAuditDB(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://localhost/treasury")
	t.Setenv("AUDIT_DB", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUDIT_DB")

	t.Setenv("AUDIT_DB", "/var/lib/treasury/audit.db")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/treasury/audit.db", cfg.AuditDB)
}
