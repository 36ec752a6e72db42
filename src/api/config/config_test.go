package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("BANDGOV_JWT_SECRET", "s3cret")
	t.Setenv("BANDGOV_PORT", "9090")
	t.Setenv("BANDGOV_CORS_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("BANDGOV_LOG_LEVEL", "debug")
	t.Setenv("BANDGOV_GOVERNANCE_MAX_SUBMISSIONS", "5")
	t.Setenv("BANDGOV_NOTIFY_DISCORD_TOKEN", "bot-token")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 5, cfg.Governance.MaxSubmissions)
	assert.Equal(t, 10, cfg.Governance.MinRejectReasonLen)
	assert.Equal(t, "bot-token", cfg.Notify.DiscordToken)
	assert.Equal(t, "bandgov.notifications", cfg.Notify.Stream)
}

func TestLoadFileThenEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bandgov.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
jwt_secret: from-file
port: "7000"
public_url: https://gov.example.org
log:
  format: json
governance:
  min_reject_reason_len: 20
notify:
  concurrency: 8
`), 0o600))
	t.Setenv("BANDGOV_CONFIG", path)
	t.Setenv("BANDGOV_PORT", "7001")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.JWTSecret)
	assert.Equal(t, "7001", cfg.Port, "environment wins over the file")
	assert.Equal(t, "https://gov.example.org", cfg.PublicURL)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 20, cfg.Governance.MinRejectReasonLen)
	assert.Equal(t, 3, cfg.Governance.MaxSubmissions)
	assert.Equal(t, 8, cfg.Notify.Concurrency)
}

func TestLoadBadFile(t *testing.T) {
	t.Setenv("BANDGOV_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [1, 2"), 0o600))
	t.Setenv("BANDGOV_CONFIG", path)
	_, err = Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.JWTSecret = "x"
	require.NoError(t, valid.Validate())

	tests := map[string]func(*Config){
		"no secret":        func(c *Config) { c.JWTSecret = "" },
		"no dsn":           func(c *Config) { c.MySQLDSN = "" },
		"no port":          func(c *Config) { c.Port = "" },
		"cert without key": func(c *Config) { c.TLSCertFile = "cert.pem" },
		"key without cert": func(c *Config) { c.TLSKeyFile = "key.pem" },
		"zero submissions": func(c *Config) { c.Governance.MaxSubmissions = 0 },
		"negative min len": func(c *Config) { c.Governance.MinRejectReasonLen = -1 },
	}
	for name, edit := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := valid
			edit(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
