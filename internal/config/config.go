// Package config loads the service configuration from YAML with environment
// variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Providers ProvidersConfig `yaml:"providers"`
	Auth      AuthConfig      `yaml:"auth"`
	Sync      SyncConfig      `yaml:"sync"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	ListenAddr     string   `yaml:"listen_addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DatabaseConfig configures persistence. An empty URL selects the in-memory
// store.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// ProvidersConfig configures the upstream price sources.
type ProvidersConfig struct {
	CryptoURL string `yaml:"crypto_url"`
	CryptoKey string `yaml:"crypto_key"`
	ForexURL  string `yaml:"forex_url"`
	ForexKey  string `yaml:"forex_key"`
}

// AuthConfig configures request authentication.
type AuthConfig struct {
	JWTSecret  string `yaml:"jwt_secret"`
	SyncSecret string `yaml:"sync_secret"`
}

// SyncConfig configures the background refresher.
type SyncConfig struct {
	Schedule string        `yaml:"schedule"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:     ":8080",
			AllowedOrigins: []string{"*"},
		},
		Sync: SyncConfig{
			Schedule: "@every 1m",
			CacheTTL: 30 * time.Second,
		},
	}
}

// Load reads the configuration from path and applies environment overrides.
// A missing file is not an error; defaults plus environment are used.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Fall through to environment overrides.
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Server.ListenAddr, "LISTEN_ADDR")
	setString(&c.Database.URL, "DATABASE_URL")
	setString(&c.Providers.CryptoURL, "CRYPTO_PRICE_URL")
	setString(&c.Providers.CryptoKey, "CRYPTO_PRICE_KEY")
	setString(&c.Providers.ForexURL, "FOREX_RATE_URL")
	setString(&c.Providers.ForexKey, "FOREX_RATE_KEY")
	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setString(&c.Auth.SyncSecret, "SYNC_SECRET")
	setString(&c.Sync.Schedule, "SYNC_SCHEDULE")
}

func (c *Config) validate() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr is required")
	}
	if c.Auth.JWTSecret == "" && c.Auth.SyncSecret == "" {
		return fmt.Errorf("at least one of auth.jwt_secret or auth.sync_secret is required")
	}
	if c.Sync.Schedule == "" {
		c.Sync.Schedule = "@every 1m"
	}
	return nil
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}
