// Package config provides configuration management for the imagefork redirect service.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the main configuration structure
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Cache      CacheConfig      `yaml:"cache"`
	Posters    PostersConfig    `yaml:"posters"`
	Portal     PortalConfig     `yaml:"portal"`
	Logging    LoggingConfig    `yaml:"logging"`
	Management ManagementConfig `yaml:"management"`
}

// ServerConfig contains public HTTP server settings
type ServerConfig struct {
	Listen string `yaml:"listen"`

	// RequestTimeoutSeconds bounds every cache and poster store call made
	// while resolving one redirect.
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds"`
}

// RequestTimeout returns the per-request store call deadline
func (s ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSeconds) * time.Second
}

// CacheConfig contains coherency token cache settings
type CacheConfig struct {
	Type  string      `yaml:"type"` // "memory" or "redis"
	Redis RedisConfig `yaml:"redis"`

	// TokenKeepaliveSeconds is the sliding expiration window for
	// coherency token entries.
	TokenKeepaliveSeconds int `yaml:"token_keepalive_seconds"`
}

// TokenKeepalive returns the coherency token TTL
func (c CacheConfig) TokenKeepalive() time.Duration {
	return time.Duration(c.TokenKeepaliveSeconds) * time.Second
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// PostersConfig contains durable poster store settings
type PostersConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

// PortalConfig contains poster portal API settings
type PortalConfig struct {
	Enabled  bool        `yaml:"enabled"`
	AdminKey string      `yaml:"admin_key"`
	Audit    AuditConfig `yaml:"audit"`
}

// AuditConfig contains portal audit logging settings
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Output  string `yaml:"output"` // "stdout", "stderr", or a file path
	Format  string `yaml:"format"` // "json" or "text"
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "console"
}

// ManagementConfig contains the health/metrics server settings
type ManagementConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:                ":8080",
			RequestTimeoutSeconds: 5,
		},
		Cache: CacheConfig{
			Type:                  "redis",
			TokenKeepaliveSeconds: 600,
			Redis: RedisConfig{
				Address: "localhost:6379",
				DB:      0,
			},
		},
		Posters: PostersConfig{
			SQLitePath: "./posters.db",
		},
		Portal: PortalConfig{
			Enabled: false,
			Audit: AuditConfig{
				Enabled: true,
				Output:  "stdout",
				Format:  "json",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Management: ManagementConfig{
			Enabled: true,
			Addr:    ":9090",
		},
	}
}

// Load loads the configuration from file or environment
func Load() (*Config, error) {
	cfg := DefaultConfig()

	// Check for config file path in environment or use default
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	// Sanitize and validate path to prevent path traversal
	configPath = sanitizeConfigPath(configPath)

	data, err := os.ReadFile(configPath) //#nosec G304 -- config path is sanitized above
	if err != nil {
		if os.IsNotExist(err) {
			// No config file, use defaults
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks configuration invariants that defaults alone cannot guarantee
func (c *Config) Validate() error {
	if c.Cache.TokenKeepaliveSeconds <= 0 {
		return fmt.Errorf("cache.token_keepalive_seconds must be positive, got %d", c.Cache.TokenKeepaliveSeconds)
	}
	if c.Cache.Type != "memory" && c.Cache.Type != "redis" {
		return fmt.Errorf("cache.type must be \"memory\" or \"redis\", got %q", c.Cache.Type)
	}
	if c.Server.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("server.request_timeout_seconds must be positive, got %d", c.Server.RequestTimeoutSeconds)
	}
	if c.Portal.Enabled && c.Portal.AdminKey == "" {
		return fmt.Errorf("portal.admin_key is required when the portal is enabled")
	}
	return nil
}

// sanitizeConfigPath cleans and validates a config file path
func sanitizeConfigPath(path string) string {
	// Clean the path to remove any . or .. components
	cleaned := filepath.Clean(path)

	// If path is absolute, use it as-is (operator explicitly set full path)
	// If relative, ensure it doesn't escape the current directory
	if !filepath.IsAbs(cleaned) {
		for len(cleaned) > 2 && cleaned[:3] == "../" {
			cleaned = cleaned[3:]
		}
		if cleaned == ".." {
			cleaned = "config.yaml"
		}
	}

	return cleaned
}
