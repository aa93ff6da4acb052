// Package config loads the sync agent configuration from an optional YAML
// file with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config is the full agent configuration.
type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	Database DatabaseConfig `yaml:"database"`
	Remote   RemoteConfig   `yaml:"remote"`
	Sync     SyncConfig     `yaml:"sync"`
	API      APIConfig      `yaml:"api"`
}

type LoggingConfig struct {
	Level string `yaml:"level" envconfig:"LOG_LEVEL"`
}

type DatabaseConfig struct {
	DataDir string `yaml:"dataDir" envconfig:"DATA_DIR"`
}

// RemoteConfig describes the remote sync API and the identity inputs the
// auth/session layer supplies. The bearer token is env-only so it never
// lands in a config file on disk.
type RemoteConfig struct {
	BaseURL        string        `yaml:"baseUrl"        envconfig:"REMOTE_BASE_URL"`
	TenantID       string        `yaml:"tenantId"       envconfig:"TENANT_ID"`
	Token          string        `yaml:"-"              envconfig:"API_TOKEN"`
	RequestTimeout time.Duration `yaml:"requestTimeout" envconfig:"REMOTE_REQUEST_TIMEOUT"`
	ProbeTimeout   time.Duration `yaml:"probeTimeout"   envconfig:"REMOTE_PROBE_TIMEOUT"`
}

type SyncConfig struct {
	Enabled       bool          `yaml:"enabled"       envconfig:"SYNC_ENABLED"`
	Interval      time.Duration `yaml:"interval"      envconfig:"SYNC_INTERVAL"`
	ProbeInterval time.Duration `yaml:"probeInterval" envconfig:"SYNC_PROBE_INTERVAL"`
	CycleTimeout  time.Duration `yaml:"cycleTimeout"  envconfig:"SYNC_CYCLE_TIMEOUT"`
}

// APIConfig is the local surface the UI clients talk to.
type APIConfig struct {
	ListenAddress string `yaml:"listenAddress" envconfig:"API_LISTEN_ADDRESS"`
	ListenPort    uint   `yaml:"listenPort"    envconfig:"API_LISTEN_PORT"`
}

func defaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level: "info",
		},
		Database: DatabaseConfig{
			DataDir: "./data",
		},
		Remote: RemoteConfig{
			RequestTimeout: 30 * time.Second,
			ProbeTimeout:   5 * time.Second,
		},
		Sync: SyncConfig{
			Enabled:       true,
			Interval:      15 * time.Minute,
			ProbeInterval: time.Minute,
			CycleTimeout:  2 * time.Minute,
		},
		API: APIConfig{
			ListenAddress: "127.0.0.1",
			ListenPort:    8090,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file when path is
// non-empty, then environment overrides with the DERNEK_ prefix.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := envconfig.Process("dernek", cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the invariants the agent depends on.
func (c *Config) Validate() error {
	if c.Sync.Enabled && c.Remote.BaseURL == "" {
		return fmt.Errorf("remote base URL is required when sync is enabled")
	}
	if c.Sync.Enabled && c.Remote.TenantID == "" {
		return fmt.Errorf("tenant id is required when sync is enabled")
	}
	if c.Sync.Interval < time.Second {
		return fmt.Errorf("sync interval %s is too short", c.Sync.Interval)
	}
	if c.Database.DataDir == "" {
		return fmt.Errorf("data directory is required")
	}
	return nil
}
