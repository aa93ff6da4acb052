package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DERNEK_SYNC_ENABLED", "false") // defaults alone fail remote validation

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Expected default log level info, got %s", cfg.Logging.Level)
	}
	if cfg.Sync.Interval != 15*time.Minute {
		t.Errorf("Expected default interval 15m, got %v", cfg.Sync.Interval)
	}
	if cfg.Remote.RequestTimeout != 30*time.Second || cfg.Remote.ProbeTimeout != 5*time.Second {
		t.Errorf("Unexpected default timeouts: %v / %v", cfg.Remote.RequestTimeout, cfg.Remote.ProbeTimeout)
	}
	if cfg.API.ListenPort != 8090 {
		t.Errorf("Expected default port 8090, got %d", cfg.API.ListenPort)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
remote:
  baseUrl: https://api.example.org
  tenantId: tenant-42
sync:
  interval: 5m
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected debug level, got %s", cfg.Logging.Level)
	}
	if cfg.Remote.BaseURL != "https://api.example.org" || cfg.Remote.TenantID != "tenant-42" {
		t.Errorf("Unexpected remote config: %+v", cfg.Remote)
	}
	if cfg.Sync.Interval != 5*time.Minute {
		t.Errorf("Expected 5m interval, got %v", cfg.Sync.Interval)
	}
	// Unset fields keep their defaults.
	if cfg.Database.DataDir != "./data" {
		t.Errorf("Expected default data dir, got %s", cfg.Database.DataDir)
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, `
remote:
  baseUrl: https://file.example.org
  tenantId: tenant-file
`)
	t.Setenv("DERNEK_REMOTE_BASE_URL", "https://env.example.org")
	t.Setenv("DERNEK_API_TOKEN", "secret-token")
	t.Setenv("DERNEK_SYNC_INTERVAL", "90s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Remote.BaseURL != "https://env.example.org" {
		t.Errorf("Expected env override to win, got %s", cfg.Remote.BaseURL)
	}
	if cfg.Remote.TenantID != "tenant-file" {
		t.Errorf("Expected file value to survive, got %s", cfg.Remote.TenantID)
	}
	if cfg.Remote.Token != "secret-token" {
		t.Error("Expected token from environment")
	}
	if cfg.Sync.Interval != 90*time.Second {
		t.Errorf("Expected 90s interval, got %v", cfg.Sync.Interval)
	}
}

// The bearer token never comes from the file, only from the environment.
func TestTokenNotReadFromFile(t *testing.T) {
	path := writeConfig(t, `
remote:
  baseUrl: https://api.example.org
  tenantId: tenant-42
  token: leaked-token
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Remote.Token == "leaked-token" {
		t.Error("Expected token field to be ignored in YAML")
	}
}

func TestValidation(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing base url with sync enabled",
			mutate:  func(c *Config) { c.Remote.BaseURL = "" },
			wantErr: "base URL",
		},
		{
			name:    "missing tenant with sync enabled",
			mutate:  func(c *Config) { c.Remote.TenantID = "" },
			wantErr: "tenant id",
		},
		{
			name:    "interval too short",
			mutate:  func(c *Config) { c.Sync.Interval = 100 * time.Millisecond },
			wantErr: "too short",
		},
		{
			name:    "missing data dir",
			mutate:  func(c *Config) { c.Database.DataDir = "" },
			wantErr: "data directory",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Remote.BaseURL = "https://api.example.org"
			cfg.Remote.TenantID = "tenant-42"
			tc.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Expected error mentioning %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestSyncDisabledRelaxesRemoteChecks(t *testing.T) {
	cfg := defaultConfig()
	cfg.Sync.Enabled = false
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected disabled sync to pass without remote settings, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Expected error for a missing config file")
	}
}
