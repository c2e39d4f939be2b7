// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, defaults, and validation

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_ValidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
api:
  base_url: "https://market.example.edu"

realtime:
  url: "wss://market.example.edu"

auth:
  token_file: "/tmp/campus-token"

logging:
  level: "debug"
  format: "json"
  file: "/tmp/campus-chat.log"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	if err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.BaseURL != "https://market.example.edu" {
		t.Errorf("API.BaseURL = %q, want %q", cfg.API.BaseURL, "https://market.example.edu")
	}
	if cfg.Realtime.URL != "wss://market.example.edu" {
		t.Errorf("Realtime.URL = %q, want %q", cfg.Realtime.URL, "wss://market.example.edu")
	}
	if cfg.Auth.TokenFile != "/tmp/campus-token" {
		t.Errorf("Auth.TokenFile = %q, want %q", cfg.Auth.TokenFile, "/tmp/campus-token")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "json")
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	t.Setenv("TEST_CAMPUS_API", "http://localhost:9900")
	t.Setenv("TEST_CAMPUS_TOKEN", "tok-from-env")

	configContent := `
api:
  base_url: "${TEST_CAMPUS_API}"

auth:
  token: "${TEST_CAMPUS_TOKEN}"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	if err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.BaseURL != "http://localhost:9900" {
		t.Errorf("API.BaseURL = %q, want expanded env var", cfg.API.BaseURL)
	}
	if cfg.Auth.Token != "tok-from-env" {
		t.Errorf("Auth.Token = %q, want expanded env var", cfg.Auth.Token)
	}
}

func TestLoad_UnsetEnvVarExpandsEmpty(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
auth:
  token: "${DEFINITELY_NOT_SET_CAMPUS_VAR}"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	if err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Auth.Token != "" {
		t.Errorf("Auth.Token = %q, want empty for unset env var", cfg.Auth.Token)
	}
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}

	if cfg.API.BaseURL != DefaultAPIBaseURL {
		t.Errorf("API.BaseURL = %q, want %q", cfg.API.BaseURL, DefaultAPIBaseURL)
	}
	if cfg.Realtime.URL != DefaultRealtimeURL {
		t.Errorf("Realtime.URL = %q, want %q", cfg.Realtime.URL, DefaultRealtimeURL)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "text")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("Load() should fail for a missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	err := os.WriteFile(configPath, []byte("api: [unclosed"), 0644)
	if err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err = Load(configPath)
	if err == nil {
		t.Fatal("Load() should fail for invalid YAML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "api url must be http",
			mutate:  func(c *Config) { c.API.BaseURL = "ftp://market.example.edu" },
			wantErr: "api.base_url",
		},
		{
			name:    "realtime url must be ws",
			mutate:  func(c *Config) { c.Realtime.URL = "http://market.example.edu" },
			wantErr: "realtime.url",
		},
		{
			name:    "unknown log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "logging.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			if err != nil {
				t.Fatalf("Load(\"\") error = %v", err)
			}
			tt.mutate(cfg)

			err = cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}
