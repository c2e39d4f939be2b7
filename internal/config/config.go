// ABOUTME: Configuration loading and parsing for campus-chat
// ABOUTME: Supports YAML files with .env loading and environment variable expansion

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete campus-chat client configuration
type Config struct {
	API      APIConfig      `yaml:"api"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// APIConfig holds the REST backend location
type APIConfig struct {
	BaseURL string `yaml:"base_url"`
}

// RealtimeConfig holds the websocket endpoint location
type RealtimeConfig struct {
	URL string `yaml:"url"`
}

// AuthConfig holds bearer token configuration. Token takes precedence over
// TokenFile; both empty means the CAMPUS_TOKEN env var or the default token
// file is consulted at session setup.
type AuthConfig struct {
	Token     string `yaml:"token"`
	TokenFile string `yaml:"token_file"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Defaults point at a locally running fake-backend so the TUI works with no
// config file at all.
const (
	DefaultAPIBaseURL  = "http://localhost:8800"
	DefaultRealtimeURL = "ws://localhost:8800"
)

// Load reads a configuration file from the given path and returns a parsed
// Config. A .env file in the working directory is loaded first, then
// ${VAR_NAME} patterns in the YAML are expanded from the environment. An
// empty path yields a default configuration.
func Load(path string) (*Config, error) {
	// Ignore a missing .env; plain environment variables still apply.
	_ = godotenv.Load()

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		expanded := expandEnvVars(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// DefaultPath returns the conventional config location,
// $XDG_CONFIG_HOME/campus-chat/config.yaml, or "" if it does not exist.
func DefaultPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configDir = filepath.Join(home, ".config")
	}

	path := filepath.Join(configDir, "campus-chat", "config.yaml")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding
// environment variable values. Unset variables expand to an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyDefaults() {
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultAPIBaseURL
	}
	if c.Realtime.URL == "" {
		c.Realtime.URL = DefaultRealtimeURL
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks that all required configuration fields are present and
// well-formed. Returns an error describing the first failure encountered.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		return fmt.Errorf("api.base_url must be an http(s) URL, got %q", c.API.BaseURL)
	}

	if !strings.HasPrefix(c.Realtime.URL, "ws://") && !strings.HasPrefix(c.Realtime.URL, "wss://") {
		return fmt.Errorf("realtime.url must be a ws(s) URL, got %q", c.Realtime.URL)
	}

	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}
