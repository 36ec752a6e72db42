package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "BANDGOV_"

// LogConfig selects the logger level and format.
type LogConfig struct {
	// Level is one of debug, info, warn or error.
	Level string `env:"LEVEL" yaml:"level"`

	// Format is one of text, json or logfmt.
	Format string `env:"FORMAT" yaml:"format"`
}

// GovernanceConfig holds the proposal lifecycle limits.
type GovernanceConfig struct {
	MaxSubmissions     int `env:"MAX_SUBMISSIONS" yaml:"max_submissions"`
	MinRejectReasonLen int `env:"MIN_REJECT_REASON_LEN" yaml:"min_reject_reason_len"`
}

// NotifyConfig controls post-commit notification delivery.
type NotifyConfig struct {
	// Stream is the Redis stream notifications are appended to.
	Stream string `env:"STREAM" yaml:"stream"`

	// Concurrency bounds parallel deliveries per dispatch.
	Concurrency int `env:"CONCURRENCY" yaml:"concurrency"`

	// DiscordToken enables band channel announcements when set.
	DiscordToken string `env:"DISCORD_TOKEN" yaml:"discord_token"`
}

type Config struct {
	MySQLDSN    string   `env:"MYSQL_DSN" yaml:"mysql_dsn"`
	RedisURL    string   `env:"REDIS_URL" yaml:"redis_url"`
	JWTSecret   string   `env:"JWT_SECRET" yaml:"jwt_secret"`
	Port        string   `env:"PORT" yaml:"port"`
	PublicURL   string   `env:"PUBLIC_URL" yaml:"public_url"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," yaml:"cors_origins"`
	TLSCertFile string   `env:"TLS_CERT_FILE" yaml:"tls_cert_file"`
	TLSKeyFile  string   `env:"TLS_KEY_FILE" yaml:"tls_key_file"`

	Log        LogConfig        `envPrefix:"LOG_" yaml:"log"`
	Governance GovernanceConfig `envPrefix:"GOVERNANCE_" yaml:"governance"`
	Notify     NotifyConfig     `envPrefix:"NOTIFY_" yaml:"notify"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		MySQLDSN:    "bandgov:bandgov@tcp(127.0.0.1:3306)/bandgov?parseTime=true",
		RedisURL:    "redis://127.0.0.1:6379/0",
		Port:        "8080",
		PublicURL:   "http://localhost:3000",
		CORSOrigins: []string{"http://localhost:3000"},
		Log:         LogConfig{Level: "info", Format: "text"},
		Governance:  GovernanceConfig{MaxSubmissions: 3, MinRejectReasonLen: 10},
		Notify:      NotifyConfig{Stream: "bandgov.notifications", Concurrency: 4},
	}
}

// Validate reports configuration the service cannot start with.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("jwt secret is required")
	}
	if c.MySQLDSN == "" {
		return errors.New("mysql dsn is required")
	}
	if c.Port == "" {
		return errors.New("port is required")
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return errors.New("tls cert and key files must be set together")
	}
	if c.Governance.MaxSubmissions < 1 {
		return fmt.Errorf("governance.max_submissions must be positive, got %d", c.Governance.MaxSubmissions)
	}
	if c.Governance.MinRejectReasonLen < 0 {
		return fmt.Errorf("governance.min_reject_reason_len must not be negative, got %d", c.Governance.MinRejectReasonLen)
	}
	return nil
}

func parseFile(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}

	defer f.Close() // nolint: errcheck
	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// Load builds the configuration from defaults, then the YAML file named by
// BANDGOV_CONFIG if any, then BANDGOV_* environment variables.
func Load() (Config, error) {
	cfg := Default()
	if path := os.Getenv(EnvPrefix + "CONFIG"); path != "" {
		if err := parseFile(&cfg, path); err != nil {
			return cfg, err
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("parse environment variables: %w", err)
	}
	return cfg, cfg.Validate()
}
