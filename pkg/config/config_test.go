package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/info-creator-nilreb/dpp-sub002/pkg/observability"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_STR", "custom")
	t.Setenv("TEST_BOOL", "1")
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_BAD_INT", "forty")
	t.Setenv("TEST_DUR", "90s")
	t.Setenv("TEST_BAD_DUR", "soon")

	assert.Equal(t, "custom", getEnv("TEST_STR", "default"))
	assert.Equal(t, "default", getEnv("TEST_STR_NOT_SET", "default"))
	assert.True(t, getEnvBool("TEST_BOOL", false))
	assert.True(t, getEnvBool("TEST_BOOL_NOT_SET", true))
	assert.Equal(t, 42, getEnvInt("TEST_INT", 1))
	assert.Equal(t, 1, getEnvInt("TEST_BAD_INT", 1))
	assert.Equal(t, 90*time.Second, getEnvDuration("TEST_DUR", time.Second))
	assert.Equal(t, time.Second, getEnvDuration("TEST_BAD_DUR", time.Second))
}

func TestLoad_RequiresDSNForSQL(t *testing.T) {
	t.Setenv("DPP_CONFIG_FILE", "")
	_, err := Load("")
	assert.ErrorContains(t, err, "database DSN is required")
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("DPP_CONFIG_FILE", "")
	t.Setenv("DPP_DB_DRIVER", "sqlite3")
	t.Setenv("DPP_DB_DSN", "file:dpp.db")
	t.Setenv("DPP_PORT", "8181")
	t.Setenv("DPP_LOG_LEVEL", "debug")
	t.Setenv("DPP_CACHE_TTL", "2m")
	t.Setenv("DPP_RATE_LIMIT_ENABLED", "false")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, "file:dpp.db", cfg.Database.DSN)
	assert.Equal(t, "8181", cfg.Server.Port)
	assert.Equal(t, observability.DebugLevel, cfg.Observability.Level())
	assert.Equal(t, 2*time.Minute, cfg.Cache.TTL)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, "@every 1m", cfg.Templates.StatusSchedule)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	path := writeFile(t, `
server:
  port: "8000"
  read_timeout: 5s
database:
  storage: memory
audit:
  database: false
templates:
  key_translations_file: /etc/dpp/keys.yaml
memberships:
  - user_id: alice
    organization_id: acme
    role: ORG_ADMIN
  - user_id: bob
    organization_id: acme
    role: org_owner
`)
	t.Setenv("DPP_PORT", "8001")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "8001", cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, StorageMemory, cfg.Database.Storage)
	assert.Equal(t, "/etc/dpp/keys.yaml", cfg.Templates.KeyTranslationsFile)
	require.Len(t, cfg.Memberships, 2)
	assert.Equal(t, "alice", cfg.Memberships[0].UserID)
	assert.Equal(t, "org_owner", cfg.Memberships[1].Role)

	// Untouched sections keep their defaults
	assert.Equal(t, 10000, cfg.Cache.Size)
}

func TestLoad_ConfigFileFromEnv(t *testing.T) {
	path := writeFile(t, "database:\n  storage: memory\naudit:\n  database: false\n")
	t.Setenv("DPP_CONFIG_FILE", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, StorageMemory, cfg.Database.Storage)
}

func TestLoad_FileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")

	_, err = Load(writeFile(t, "database:\n  storage: memory\n  unknown_key: 1\n"))
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Database.DSN = "postgres://localhost/dpp"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing port", func(c *Config) { c.Server.Port = "" }, "server port is required"},
		{"missing health port", func(c *Config) { c.Server.HealthPort = "" }, "health port is required"},
		{"same ports", func(c *Config) { c.Server.HealthPort = c.Server.Port }, "must be different"},
		{"bad storage", func(c *Config) { c.Database.Storage = "s3" }, "invalid storage"},
		{"bad driver", func(c *Config) { c.Database.Driver = "mysql" }, "invalid database driver"},
		{"memory with db audit", func(c *Config) { c.Database.Storage = StorageMemory }, "database audit requires sql storage"},
		{"memory without db audit", func(c *Config) {
			c.Database.Storage = StorageMemory
			c.Database.DSN = ""
			c.Audit.Database = false
		}, ""},
		{"cache without size", func(c *Config) { c.Cache.Size = 0 }, "cache size and TTL"},
		{"cache disabled", func(c *Config) { c.Cache.Enabled = false; c.Cache.Size = 0 }, ""},
		{"rate limit without window", func(c *Config) { c.RateLimit.Window = 0 }, "rate limit"},
		{"missing schedule", func(c *Config) { c.Templates.StatusSchedule = "" }, "status schedule"},
		{"membership unknown role", func(c *Config) {
			c.Memberships = []MembershipSeed{{UserID: "u", OrganizationID: "o", Role: "SUPERUSER"}}
		}, `unknown role "SUPERUSER"`},
		{"membership missing org", func(c *Config) {
			c.Memberships = []MembershipSeed{{UserID: "u", Role: "VIEWER"}}
		}, "user_id and organization_id are required"},
		{"otel without endpoint", func(c *Config) {
			c.Observability.OTelEnabled = true
			c.Observability.OTelEndpoint = ""
		}, "OpenTelemetry endpoint is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
