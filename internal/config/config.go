package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server       ServerConfig    `yaml:"server"`
	Roots        []string        `yaml:"roots"`
	Backend      string          `yaml:"backend"`
	Fallback     FallbackConfig  `yaml:"fallback"`
	CacheControl int             `yaml:"cache_control"`
	WelcomeFile  string          `yaml:"welcome_file"`
	Health       string          `yaml:"health_endpoint"`
	HashAlgo     string          `yaml:"hash_algo"`
	Auth         AuthConfig      `yaml:"auth"`
	Logging      LoggingConfig   `yaml:"logging"`
	Metrics      MetricsConfig   `yaml:"metrics"`
	Messaging    MessagingConfig `yaml:"messaging"`
}

// ServerConfig contains listener configuration
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// FallbackConfig controls upstream redirection for unknown projects
type FallbackConfig struct {
	Disable bool   `yaml:"disable"`
	URL     string `yaml:"url"`
}

// AuthConfig contains authentication configuration. Authenticate lists
// the operations that require credentials; a password file of "."
// disables password checking entirely.
type AuthConfig struct {
	Authenticate []string `yaml:"authenticate"`
	PasswordFile string   `yaml:"password_file"`
	JWTSecret    string   `yaml:"jwt_secret"`
}

// LoggingConfig contains logging configuration. Verbose selects debug
// request logging when no explicit gin mode is set.
type LoggingConfig struct {
	Output  string `yaml:"output"`
	GinMode string `yaml:"gin_mode"`
	Verbose bool   `yaml:"verbose"`
}

// MetricsConfig contains metrics configuration
type MetricsConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Path           string `yaml:"path"`
	SeparateServer bool   `yaml:"separate_server"`
	Port           int    `yaml:"port"`
}

// MessagingConfig contains RabbitMQ settings for event publishing
type MessagingConfig struct {
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
}

type RabbitMQConfig struct {
	Enabled      bool   `yaml:"enabled"`
	URL          string `yaml:"url"`
	Exchange     string `yaml:"exchange"`
	ExchangeType string `yaml:"exchange_type"`
	RoutingKey   string `yaml:"routing_key"`
}

// Default returns the configuration used when no file or flag overrides
// a value.
func Default() *Config {
	return &Config{
		Server:  ServerConfig{Host: "0.0.0.0", Port: 8080},
		Backend: "cached-dir",
		Fallback: FallbackConfig{
			URL: "https://pypi.org/simple/",
		},
		Health:   "/health",
		HashAlgo: "sha256",
		Auth: AuthConfig{
			Authenticate: []string{"update"},
			PasswordFile: ".",
		},
		Metrics: MetricsConfig{Path: "/metrics", Port: 9090},
	}
}

// Load loads configuration from a YAML file on top of the defaults.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return config, nil
}

// Validate checks invariants that must hold before the server starts.
func (c *Config) Validate() error {
	if len(c.Roots) == 0 {
		return fmt.Errorf("at least one package root is required")
	}
	if c.Health == "" || c.Health[0] != '/' {
		return fmt.Errorf("health endpoint must be an absolute path: %q", c.Health)
	}
	if c.CacheControl < 0 {
		return fmt.Errorf("cache_control must be zero or a positive number of seconds")
	}
	return nil
}

// AuthDisabled reports whether password checking is turned off.
func (c *AuthConfig) AuthDisabled() bool {
	return c.PasswordFile == "" || c.PasswordFile == "."
}

// Requires reports whether the named operation needs authentication.
func (c *AuthConfig) Requires(operation string) bool {
	if c.AuthDisabled() && c.JWTSecret == "" {
		return false
	}
	for _, op := range c.Authenticate {
		if op == operation {
			return true
		}
	}
	return false
}
